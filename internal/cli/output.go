package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/aqlc/internal/aql"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // query rejected or scenarios failed
	ExitCommandError = 2 // unreadable input, config or knowledge
	ExitInternal     = 3 // compiler defect
)

// ExitError carries the exit code a command fails with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of an ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics, Writer when nil
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command. Kind is the compiler error kind and
// is empty for file and configuration errors.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data; text output uses its default formatting.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Text output names the kind only when verbose.
func (f *OutputFormatter) Error(code, message string, kind aql.ErrorKind) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: message, Kind: string(kind)}})
	}
	if f.Verbose && kind != "" {
		code += " " + string(kind)
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

// QueryError writes a compilation error and returns the ExitError the
// command fails with.
func (f *OutputFormatter) QueryError(err error) error {
	kind := aql.KindOf(err)
	code := ErrorCodeFor(kind)
	_ = f.Error(code, err.Error(), kind)
	switch kind {
	case "":
		return WrapExitError(ExitCommandError, code, err)
	case aql.KindInternal:
		return WrapExitError(ExitInternal, code, err)
	}
	return WrapExitError(ExitFailure, code, err)
}

// VerboseLog writes a diagnostic line in verbose mode, to ErrWriter so
// that JSON on Writer stays intact.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
