package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hera-erp/hera/internal/smartcode"
)

// SmartCodeOptions holds flags for smartcode validate.
type SmartCodeOptions struct {
	*RootOptions
	Level        int
	Organization string
}

// NewSmartCodeCommand creates the smartcode command group.
func NewSmartCodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "smartcode",
		Aliases: []string{"sc"},
		Short:   "Inspect smart codes",
	}
	cmd.AddCommand(newSmartCodeValidateCommand(rootOpts))
	return cmd
}

func newSmartCodeValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SmartCodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <code>",
		Short: "Validate a smart code",
		Long: `Validate a smart code up to the given level:

  1 syntax       grammar of HERA.{MODULE}.{SUB}.{FUNCTION}.{TYPE}.v{N}
  2 semantic     module, sub-module and type are known to the catalog
  3 performance  complexity within the configured ceiling
  4 integration  required providers exist for the organization

Exit codes:
  0 - Code is valid
  1 - Code is invalid
  2 - Command error

Example:
  hera smartcode validate HERA.FIN.GL.JOURNAL.ENTRY.v1 --level 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmartCodeValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Level, "level", "l", int(smartcode.LevelSemantic), "validation level (1-4)")
	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization id (default: system organization)")

	return cmd
}

func runSmartCodeValidate(opts *SmartCodeOptions, code string, cmd *cobra.Command) error {
	level := smartcode.Level(opts.Level)
	if !level.Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid level %d: must be between 1 and 4", opts.Level))
	}

	a, err := opts.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	org := opts.Organization
	if org == "" {
		org = a.Store.SystemOrganizationID()
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := a.Governor.Validate(ctx, code, org, level)
	if err != nil {
		return WrapExitError(ExitCommandError, "validation could not run", err)
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		writeReport(f, report)
	}
	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s is not a valid smart code", code))
	}
	return nil
}

func writeReport(f *OutputFormatter, r *smartcode.Report) {
	w := f.Writer
	passed := make([]string, 0, len(r.PassedLevels))
	for _, l := range r.PassedLevels {
		passed = append(passed, l.String())
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ %s valid at level %s\n", r.Code, r.Level)
	} else {
		fmt.Fprintf(w, "✗ %s invalid at level %s\n", r.Code, r.Level)
	}
	if len(passed) > 0 {
		fmt.Fprintf(w, "  passed: %s\n", strings.Join(passed, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error [%s] %s: %s\n", e.Level, e.Code, e.Message)
	}
	for _, e := range r.Warnings {
		fmt.Fprintf(w, "  warning [%s] %s: %s\n", e.Level, e.Code, e.Message)
	}
	for _, s := range r.Suggestions {
		fmt.Fprintf(w, "  suggestion: %s\n", s)
	}
	f.VerboseLog("complexity %d, cached %t", r.Complexity, r.Cached)
}
