package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// FetchPrecedence decides how a request fetch parameter interacts with an
// AQL LIMIT.
type FetchPrecedence string

const (
	// FetchReject fails when both are given.
	FetchReject FetchPrecedence = "REJECT"
	// FetchMinFetch uses the smaller of both.
	FetchMinFetch FetchPrecedence = "MIN_FETCH"
)

// DefaultSystemID is the system id assumed when none is configured.
const DefaultSystemID = "local.ehrbase.org"

// Options configure a compiler. Options are passed by value.
type Options struct {
	DefaultLimit    int64           `json:"default_limit" yaml:"default_limit"`
	MaxLimit        int64           `json:"max_limit" yaml:"max_limit"`
	MaxFetch        int64           `json:"max_fetch" yaml:"max_fetch"`
	FetchPrecedence FetchPrecedence `json:"fetch_precedence" yaml:"fetch_precedence"`
	FolderEnabled   bool            `json:"folder_enabled" yaml:"folder_enabled"`
	SystemID        string          `json:"system_id" yaml:"system_id"`
	PgLljWorkaround bool            `json:"pg_llj_workaround" yaml:"pg_llj_workaround"`
	DryRun          bool            `json:"dry_run" yaml:"dry_run"`
}

// Default returns the options used when no file is given.
func Default() Options {
	return Options{
		FetchPrecedence: FetchReject,
		SystemID:        DefaultSystemID,
	}
}

// Error is a configuration error with a stable code.
type Error struct {
	Code    string
	Message string
	File    string
}

// Error codes.
const (
	ErrCodeRead     = "C001"
	ErrCodeSyntax   = "C002"
	ErrCodeSchema   = "C003"
	ErrCodeFileType = "C004"
)

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads options from a .cue, .yaml or .yml file and validates them
// against the embedded schema.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, &Error{Code: ErrCodeRead, Message: err.Error(), File: path}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	default:
		return Options{}, &Error{Code: ErrCodeFileType, Message: "expected a .cue, .yaml or .yml file", File: path}
	}
}

// ParseCUE validates CUE source against the schema.
func ParseCUE(data []byte, filename string) (Options, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Options{}, &Error{Code: ErrCodeSyntax, Message: err.Error(), File: filename}
	}
	return decode(ctx, v, filename)
}

// ParseYAML validates a YAML document against the schema.
func ParseYAML(data []byte, filename string) (Options, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, &Error{Code: ErrCodeSyntax, Message: err.Error(), File: filename}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	ctx := cuecontext.New()
	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return Options{}, &Error{Code: ErrCodeSyntax, Message: err.Error(), File: filename}
	}
	return decode(ctx, v, filename)
}

func decode(ctx *cue.Context, v cue.Value, filename string) (Options, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Options{}, fmt.Errorf("compile embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Options"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Options{}, &Error{Code: ErrCodeSchema, Message: err.Error(), File: filename}
	}
	var opts Options
	if err := unified.Decode(&opts); err != nil {
		return Options{}, &Error{Code: ErrCodeSchema, Message: err.Error(), File: filename}
	}
	return opts, nil
}
