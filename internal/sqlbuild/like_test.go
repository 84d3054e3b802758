package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
)

func TestTranslateLike(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"abc", "abc"},
		{"a*", "a%"},
		{"?b*", "_b%"},
		{"20%", `20\%`},
		{"a_b", `a\_b`},
		{`\*`, "*"},
		{`\?x`, "?x"},
		{`a\\b`, `a\\b`},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := TranslateLike(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateLike_Invalid(t *testing.T) {
	for _, p := range []string{`abc\`, `a\b`, `\%`} {
		t.Run(p, func(t *testing.T) {
			_, err := TranslateLike(p)
			require.Error(t, err)
			assert.True(t, aql.IsIllegal(err))
		})
	}
}

func TestTranslateLikeJSON(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"abc*", `"abc%"`},
		{"*", `"%"`},
		{`say "hi"`, `"say \\"hi\\""`},
		{"<a&b>", `"<a&b>"`},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := TranslateLikeJSON(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
