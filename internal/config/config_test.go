package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, name := range []string{"empty.cue", "empty.yaml"} {
		t.Run(name, func(t *testing.T) {
			opts, err := Load(writeFile(t, name, ""))
			require.NoError(t, err)
			assert.Equal(t, Default(), opts)
		})
	}
}

func TestLoad_Values(t *testing.T) {
	want := Options{
		DefaultLimit:    100,
		MaxLimit:        1000,
		MaxFetch:        500,
		FetchPrecedence: FetchMinFetch,
		FolderEnabled:   true,
		SystemID:        "test.ehrbase.org",
		PgLljWorkaround: true,
	}
	tests := []struct {
		name    string
		content string
	}{
		{"opts.cue", `
default_limit:     100
max_limit:         1000
max_fetch:         500
fetch_precedence:  "MIN_FETCH"
folder_enabled:    true
system_id:         "test.ehrbase.org"
pg_llj_workaround: true
`},
		{"opts.yml", `
default_limit: 100
max_limit: 1000
max_fetch: 500
fetch_precedence: MIN_FETCH
folder_enabled: true
system_id: test.ehrbase.org
pg_llj_workaround: true
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := Load(writeFile(t, tt.name, tt.content))
			require.NoError(t, err)
			assert.Equal(t, want, opts)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"negative limit", "o.yaml", "max_limit: -1\n", ErrCodeSchema},
		{"unknown precedence", "o.cue", `fetch_precedence: "LATEST"`, ErrCodeSchema},
		{"unknown field", "o.yaml", "limit: 3\n", ErrCodeSchema},
		{"system id with colon", "o.yaml", "system_id: 'a::b'\n", ErrCodeSchema},
		{"bad cue", "o.cue", "default_limit: ", ErrCodeSyntax},
		{"bad yaml", "o.yaml", "default_limit: [", ErrCodeSyntax},
		{"bad extension", "o.json", "{}", ErrCodeFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.code, cfgErr.Code)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeRead, cfgErr.Code)
}
