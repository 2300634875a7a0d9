package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/harness"
)

// ScenarioOptions holds flags for scenario run.
type ScenarioOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Summary string   `json:"summary,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult holds the overall scenario run result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run scripted conformance scenarios",
	}
	cmd.AddCommand(newScenarioRunCommand(rootOpts))
	return cmd
}

func newScenarioRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run scenario files",
		Long: `Run one scenario file or every scenario in a directory. Each
scenario runs against a fresh in-memory database with a deterministic
clock and id sequence.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hera scenario run ./testdata/scenarios
  hera scenario run ./testdata/scenarios --filter "bulk_*"
  hera scenario run ./testdata/scenarios/transaction_lifecycle.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *ScenarioOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	w := cmd.OutOrStdout()

	var runOpts []harness.Option
	if opts.Verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			runOpts = append(runOpts, harness.WithLogger(l))
		}
	}

	entries, err := harness.RunSuite(path, runOpts...)
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(entries))}
	for _, e := range entries {
		if opts.Filter != "" {
			name := strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
			matched, err := filepath.Match(opts.Filter, name)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter pattern", err)
			}
			if !matched {
				continue
			}
		}

		sr := ScenarioResult{Name: e.Scenario, Path: e.Path, Pass: e.Passed()}
		if sr.Name == "" {
			sr.Name = filepath.Base(e.Path)
		}
		switch {
		case e.Err != "":
			sr.Errors = []string{e.Err}
		case e.Result != nil:
			sr.Summary = harness.Summary(sr.Name, e.Result)
			sr.Errors = e.Result.Errors
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}

		if opts.Format != "json" {
			mark := "✓"
			if !sr.Pass {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
			for _, msg := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", msg)
			}
			if sr.Summary != "" {
				f.VerboseLog("  %s", sr.Summary)
			}
		}
	}

	if opts.Format == "json" {
		if err := outputTestJSON(w, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestJSON writes the run result in the CLI response envelope.
func outputTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
