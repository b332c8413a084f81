package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // all scenarios passed or validated
	ExitFailure      = 1 // a scenario failed or is invalid
	ExitCommandError = 2 // bad flags, missing paths, unreachable database
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors without an
// *ExitError in their chain exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Report is the result of a command. In JSON mode it becomes the data of
// the response envelope; in text mode it renders itself.
type Report interface {
	// Failure returns why the command failed, or nil on success.
	Failure() *CLIError

	// WriteText renders the report for a terminal.
	WriteText(w io.Writer) error
}

// CLIResponse is the JSON envelope written for every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in the JSON envelope.
type CLIError struct {
	Code    string `json:"code"` // ErrCodeLoad, ErrCodeInvalid, ErrCodeScenarioFailed
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes reports in the format chosen by --format.
// Diagnostics go to ErrWriter so they never mix with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Emit writes r and converts a failed report into an ExitFailure error.
func (f *OutputFormatter) Emit(r Report) error {
	failure := r.Failure()

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: r}
		if failure != nil {
			resp.Status = "error"
			resp.Error = failure
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else if err := r.WriteText(f.Writer); err != nil {
		return err
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// Error writes a command error that stopped the command before it produced
// a report.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set.
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

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
