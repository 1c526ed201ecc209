package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/labelreader/labelreader/internal/app"
	"github.com/labelreader/labelreader/pkg/types"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		mode  string
		desc  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search [CODE]",
		Short: "Look up products in the local mirror",
		Long: `Look up a product by code, description, or both.

Exact mode resolves the code as typed against primary codes and aliases.
Smart mode normalizes case, accents and whitespace, falls back to prefix
matching, and treats 13-digit numeric queries as barcodes.

Example:
  labelreader search P0042
  labelreader search 8412345678905
  labelreader search --mode smart 013
  labelreader search --desc "aceite oliva"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 1 {
				code = args[0]
			}
			if code == "" && desc == "" {
				return fmt.Errorf("provide a CODE argument, --desc, or both")
			}
			return runSearch(cmd, rootOpts, code, desc, mode, limit)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "exact", "search mode (exact|smart)")
	cmd.Flags().StringVar(&desc, "desc", "", "filter by description words (implies smart mode)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum smart-mode results")
	return cmd
}

func runSearch(cmd *cobra.Command, rootOpts *RootOptions, code, desc, mode string, limit int) error {
	a, _, err := buildApp(rootOpts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	var results []types.Product
	switch {
	case desc != "":
		results, err = a.SearchSmart(ctx, code, desc, limit)
	default:
		results, err = a.Search(ctx, code, app.Mode(mode))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No products found.")
		return nil
	}
	// Multiple exact hits mean the code is ambiguous; every candidate is
	// listed and the caller picks.
	if len(results) > 1 && desc == "" && mode == "exact" {
		fmt.Fprintf(out, "Ambiguous code, %d candidates:\n", len(results))
	}
	printProducts(out, results)
	return nil
}

func printProducts(out io.Writer, products []types.Product) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tDESCRIPTION\tPRICE\tCATEGORY")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", p.Code, p.Description, p.UnitPrice, p.Category)
	}
	_ = w.Flush()
}
