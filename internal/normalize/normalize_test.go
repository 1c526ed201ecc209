package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercase passthrough", "abc123", "abc123"},
		{"uppercase folded", "ABC-123", "abc-123"},
		{"diacritics stripped", "Café con Azúcar", "cafe con azucar"},
		{"spanish tilde", "PIÑA", "pina"},
		{"whitespace collapsed", "  a \t b\n\nc  ", "a b c"},
		{"mixed", "  CRÈME   Brûlée ", "creme brulee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "ABC", "Café  Olé", "  x\ty  ", "5901234123457",
		"ÀÉÎÕÜ ñ Ç", "already normal",
	}
	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestIsGTIN(t *testing.T) {
	assert.True(t, IsGTIN("5901234123457"))
	assert.True(t, IsGTIN(" 5901234123457 ")) // scanner padding tolerated
	assert.False(t, IsGTIN("590123412345"))   // 12 digits
	assert.False(t, IsGTIN("59012341234578")) // 14 digits
	assert.False(t, IsGTIN("590123412345a"))
	assert.False(t, IsGTIN(""))
}
