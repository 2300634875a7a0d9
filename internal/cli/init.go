package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hera-erp/hera/internal/app"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// InitResult describes what init created.
type InitResult struct {
	Config               string `json:"config"`
	Database             string `json:"database"`
	SystemOrganizationID string `json:"system_organization_id"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and create the database",
		Long: `Write the effective configuration to a YAML file and create the
SQLite database with its schema and the system organization.

Example:
  hera init --config ./hera.yaml --db ./hera.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	path := opts.ConfigPath
	if path == "" {
		path = "hera.yaml"
	}
	if _, err := os.Stat(path); err == nil && !opts.Force {
		_ = f.Error(ErrCodeExists, fmt.Sprintf("config file already exists: %s", path), nil)
		return NewExitError(ExitCommandError, "config file already exists (use --force)")
	}

	// The file does not exist yet, so only defaults, env and flags apply.
	initOpts := *opts.RootOptions
	initOpts.ConfigPath = ""
	cfg, err := initOpts.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.SaveToFile(path); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}
	f.VerboseLog("wrote %s", path)

	a, err := app.Open(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create database", err)
	}
	defer a.Close()

	res := InitResult{
		Config:               path,
		Database:             cfg.Database.Path,
		SystemOrganizationID: a.Store.SystemOrganizationID(),
	}
	if opts.Format == "json" {
		return f.Success(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ wrote %s\n✓ database %s ready (system organization %s)\n",
		res.Config, res.Database, res.SystemOrganizationID)
	return nil
}
