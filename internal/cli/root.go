package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/app"
	"github.com/hera-erp/hera/internal/config"
	"github.com/hera-erp/hera/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides database.path when set
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hera CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hera",
		Short: "HERA - universal ERP data model",
		Long: `A universal ERP data model over six tables, governed by smart codes.

Every business record is an organization, an entity with dynamic fields,
a relationship between entities, or a transaction with lines. Each write
carries a smart code classifying it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewOrgCommand(opts))
	cmd.AddCommand(NewSmartCodeCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the effective configuration for a command.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	return cfg, nil
}

// logger builds the command logger. One-shot commands stay quiet unless
// --verbose is given; serve always logs.
func (o *RootOptions) logger(cfg *config.Config, always bool) (*zap.Logger, error) {
	if !always && !o.Verbose {
		return zap.NewNop(), nil
	}
	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Config{
		Level:       level,
		Environment: cfg.Log.Environment,
		ServiceName: "hera",
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	return l, nil
}

// openApp loads configuration and assembles the application.
func (o *RootOptions) openApp(extra ...app.Option) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	l, err := o.logger(cfg, false)
	if err != nil {
		return nil, err
	}
	a, err := app.Open(cfg, append([]app.Option{app.WithLogger(l)}, extra...)...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return a, nil
}

// formatter returns the output formatter of a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
