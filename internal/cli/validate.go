package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/splitwrite/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// Failure implements Report.
func (r ValidationResult) Failure() *CLIError {
	if r.Valid {
		return nil
	}
	return &CLIError{Code: ErrCodeInvalid, Message: "one or more scenarios are invalid"}
}

// WriteText implements Report.
func (r ValidationResult) WriteText(w io.Writer) error {
	for _, fv := range r.Files {
		if fv.Valid {
			fmt.Fprintf(w, "OK      %s (%s)\n", fv.File, fv.Name)
		} else {
			fmt.Fprintf(w, "INVALID %s\n  %s\n", fv.File, fv.Error)
		}
	}
	if !r.Valid {
		return nil
	}
	_, err := fmt.Fprintf(w, "%d scenario(s) valid\n", len(r.Files))
	return err
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema and the step rules
(exactly one action per step, known error codes, valid identifiers)
without opening a database.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, filter, cmd)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runValidate(opts *RootOptions, args []string, filter string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := findScenarioFiles(args, filter)
	if err != nil {
		if outErr := formatter.Error(ErrCodeLoad, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := FileValidation{File: file}
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			fv.Error = err.Error()
			result.Valid = false
		} else {
			fv.Name = scenario.Name
			fv.Valid = true
		}
		result.Files = append(result.Files, fv)
	}

	return formatter.Emit(result)
}
