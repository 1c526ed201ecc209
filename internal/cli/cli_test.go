package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelreader/labelreader/internal/config"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/pkg/types"
)

// executeCommand runs the CLI with args and captures stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Keep ambient configuration out of the test process.
	t.Setenv("LABELREADER_REMOTE_URL", "")
	t.Setenv("LABELREADER_REMOTE_KEY", "")
	t.Setenv("LABELREADER_ENV", "production")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "catalog.db")
}

func seedDB(t *testing.T, path string, products ...types.Product) {
	t.Helper()
	store, err := storage.New(path)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceProducts(context.Background(), products))
	require.NoError(t, store.Close())
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "labelreader")
	assert.Contains(t, out, "SQLite Driver: "+storage.DriverName)
	assert.Contains(t, out, "Build Mode: "+storage.BuildMode)
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	_, err := executeCommand(t, "search", "--db", tempDB(t))
	assert.Error(t, err)
}

func TestSearchCommand_NoResults(t *testing.T) {
	out, err := executeCommand(t, "search", "MISSING", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No products found.")
}

func TestSearchCommand_ExactHit(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db, types.Product{Code: "P001", Description: "Olive Oil 1L", UnitPrice: 8.95})

	out, err := executeCommand(t, "search", "P001", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Olive Oil 1L")
	assert.NotContains(t, out, "Ambiguous")
}

func TestSearchCommand_AmbiguousListsAll(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db,
		types.Product{Code: "P001", Description: "a", SecondaryCode: "SHARED"},
		types.Product{Code: "P002", Description: "b", SecondaryCode: "SHARED"},
	)

	out, err := executeCommand(t, "search", "SHARED", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Ambiguous code, 2 candidates:")
	assert.Contains(t, out, "P001")
	assert.Contains(t, out, "P002")
}

func TestSearchCommand_SmartMode(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db,
		types.Product{Code: "0130", Description: "a"},
		types.Product{Code: "0138", Description: "b"},
	)

	out, err := executeCommand(t, "search", "013", "--mode", "smart", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0130")
	assert.Contains(t, out, "0138")
}

func TestSearchCommand_DescriptionFilter(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db,
		types.Product{Code: "P001", Description: "Aceite de Oliva"},
		types.Product{Code: "P002", Description: "Vinagre"},
	)

	out, err := executeCommand(t, "search", "--desc", "aceite", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "P001")
	assert.NotContains(t, out, "P002")
}

func TestStatsCommand(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db, types.Product{Code: "P001", Description: "x"})

	out, err := executeCommand(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Products:        1")
	assert.Contains(t, out, "Last sync:       never")
}

func TestSyncCommand_WithoutRemote(t *testing.T) {
	_, err := executeCommand(t, "sync", "--db", tempDB(t))
	assert.ErrorIs(t, err, config.ErrIncomplete)
}

func TestResetCommand_RequiresConfirmation(t *testing.T) {
	db := tempDB(t)
	seedDB(t, db, types.Product{Code: "P001", Description: "x"})

	_, err := executeCommand(t, "reset", "--db", db)
	assert.Error(t, err)

	out, err := executeCommand(t, "reset", "--yes", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = executeCommand(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Products:        0")
}
