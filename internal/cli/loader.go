package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/config"
	"github.com/roach88/aqlc/internal/knowledge"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Input file unreadable
	ErrCodeBadParams   = "E003" // Params file malformed
	ErrCodeConfig      = "E004" // Options file invalid
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeKnowledge   = "E006" // Knowledge store unusable
	ErrCodeWriteFailed = "E007" // File write error

	// Query errors, one per aql.ErrorKind.
	ErrCodeParse          = "E101"
	ErrCodeIllegal        = "E102"
	ErrCodeNotImplemented = "E103"
	ErrCodeParameter      = "E104"
	ErrCodePagination     = "E105"
	ErrCodeInternal       = "E199"

	// Scenario runs.
	ErrCodeScenarioFailed = "E201"
)

// ErrorCodeFor maps an error kind to its CLI error code.
func ErrorCodeFor(kind aql.ErrorKind) string {
	switch kind {
	case aql.KindParse:
		return ErrCodeParse
	case aql.KindIllegal:
		return ErrCodeIllegal
	case aql.KindNotImplemented:
		return ErrCodeNotImplemented
	case aql.KindParameter:
		return ErrCodeParameter
	case aql.KindPagination:
		return ErrCodePagination
	case aql.KindInternal:
		return ErrCodeInternal
	default:
		return ErrCodeGeneric
	}
}

// LoadError is an input error carrying its CLI error code.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// InputOptions are the flags shared by commands reading a query.
type InputOptions struct {
	File      string // read the query from a file, "-" for stdin
	Params    string // YAML or JSON params file
	Config    string // .cue or .yaml options file
	Knowledge string // SQLite knowledge store
}

// readQuery returns the query text from the arguments or the --file flag.
func readQuery(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", &LoadError{Code: ErrCodeGeneric, Message: "give the query either as argument or with --file"}
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading stdin: %v", err)}
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", notFoundOr(err, ErrCodeReadFailed, file)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", &LoadError{Code: ErrCodeGeneric, Message: "no query given"}
	}
}

// readParams decodes a params file. JSON is valid YAML, so both formats
// go through the YAML decoder.
func readParams(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFoundOr(err, ErrCodeReadFailed, path)
	}
	var params map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&params); err != nil && err != io.EOF {
		return nil, &LoadError{Code: ErrCodeBadParams, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return params, nil
}

// readOptions loads the options file, or the defaults without one.
func readOptions(path string) (config.Options, error) {
	if path == "" {
		return config.Default(), nil
	}
	opts, err := config.Load(path)
	if err != nil {
		return config.Options{}, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	return opts, nil
}

// openKnowledge opens the knowledge store. The returned close function is
// never nil.
func openKnowledge(path string) (knowledge.Lookup, func() error, error) {
	noop := func() error { return nil }
	if path == "" {
		return nil, noop, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, noop, notFoundOr(err, ErrCodeKnowledge, path)
	}
	db, err := knowledge.OpenSQLite(path)
	if err != nil {
		return nil, noop, &LoadError{Code: ErrCodeKnowledge, Message: err.Error()}
	}
	return db, db.Close, nil
}

// importTemplates loads a YAML template file into the store at dbPath,
// creating it if needed, and returns the number of templates.
func importTemplates(ctx context.Context, dbPath, file string) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, notFoundOr(err, ErrCodeReadFailed, file)
	}
	defer f.Close()
	templates, err := knowledge.ReadTemplates(f)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}
	db, err := knowledge.OpenSQLite(dbPath)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeKnowledge, Message: err.Error()}
	}
	defer db.Close()
	if err := db.Import(ctx, templates); err != nil {
		return 0, &LoadError{Code: ErrCodeKnowledge, Message: err.Error()}
	}
	return len(templates), nil
}

func notFoundOr(err error, code, path string) error {
	if os.IsNotExist(err) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not found: %s", path)}
	}
	return &LoadError{Code: code, Message: err.Error()}
}
