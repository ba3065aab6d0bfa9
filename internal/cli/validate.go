package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/scene"
)

// Error codes reported by the CLI. Scene loading uses E101-E105.
const (
	ErrCodeGeneric = "E001"
	ErrCodeScript  = "E106"
)

// FileResult is the validation outcome of one scene file.
type FileResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Scene   string `json:"scene,omitempty"`
	Hash    string `json:"hash,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Files []FileResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-file>...",
		Short: "Validate scene files without running them",
		Long: `Validate YAML or CUE scene files without running them.

Checks syntax, the scene schema, cross references between samples and
properties, and compiles every alias and storage script.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileResult, 0, len(paths))}
	missing := false
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		fr := validateScene(path)
		if !fr.Valid {
			result.Valid = false
			missing = missing || fr.Code == scene.ErrCodeNotFound
		}
		result.Files = append(result.Files, fr)
	}

	if err := outputValidation(formatter, result); err != nil {
		return err
	}
	if result.Valid {
		return nil
	}

	failed := 0
	for _, fr := range result.Files {
		if !fr.Valid {
			failed++
		}
	}
	// A missing file is a usage problem rather than an invalid scene.
	code := ExitFailure
	if missing {
		code = ExitCommandError
	}
	return NewExitError(code, fmt.Sprintf("validation failed for %d scene(s)", failed))
}

// validateScene loads, hashes and builds one scene against a scratch state.
func validateScene(path string) FileResult {
	fr := FileResult{Path: path}

	sc, err := scene.Load(path)
	if err != nil {
		fr.Code, fr.Message = describeLoadError(err)
		return fr
	}
	fr.Scene = sc.Name

	if _, err := scene.Build(sc, frp.New()); err != nil {
		fr.Code, fr.Message = ErrCodeScript, err.Error()
		return fr
	}

	hash, err := sc.Hash()
	if err != nil {
		fr.Code, fr.Message = ErrCodeGeneric, err.Error()
		return fr
	}
	fr.Hash = hash
	fr.Valid = true
	return fr
}

// describeLoadError splits a load error into its code and message.
func describeLoadError(err error) (string, string) {
	var le *scene.LoadError
	if !errors.As(err, &le) {
		return ErrCodeGeneric, err.Error()
	}
	msg := le.Message
	if le.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, le.Err)
	}
	return le.Code, msg
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}

		var first FileResult
		for _, fr := range result.Files {
			if !fr.Valid {
				first = fr
				break
			}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
				Details: first.Path,
			},
		})
	}

	for _, fr := range result.Files {
		if fr.Valid {
			fmt.Fprintf(formatter.Writer, "✓ %s (scene %s)\n", fr.Path, fr.Scene)
			formatter.VerboseLog("  hash %s", fr.Hash)
			continue
		}
		fmt.Fprintf(formatter.Writer, "✗ %s\n", fr.Path)
		fmt.Fprintf(formatter.Writer, "  Error [%s]: %s\n", fr.Code, fr.Message)
	}
	if result.Valid {
		fmt.Fprintln(formatter.Writer, "✓ All scenes valid")
	}
	return nil
}
