package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hera-erp/hera/internal/engine"
)

// OrgOptions holds flags for org create.
type OrgOptions struct {
	*RootOptions
	ID   string
	Name string
	Code string
	Type string
}

// NewOrgCommand creates the org command group.
func NewOrgCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(newOrgCreateCommand(rootOpts))
	return cmd
}

func newOrgCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrgOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant organization",
		Long: `Create an organization as the system tenant.

Example:
  hera org create --name "Acme Ltd" --code ACME`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "organization id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "organization name (required)")
	cmd.Flags().StringVar(&opts.Code, "code", "", "organization code (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "organization type (default business)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runOrgCreate(opts *OrgOptions, cmd *cobra.Command) error {
	a, err := opts.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	payload := map[string]any{
		"organization_name": opts.Name,
		"organization_code": opts.Code,
	}
	if opts.ID != "" {
		payload["id"] = opts.ID
	}
	if opts.Type != "" {
		payload["organization_type"] = opts.Type
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res := a.Engine.Execute(ctx, engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreOrganization,
		OrganizationID: a.Store.SystemOrganizationID(),
		Payload:        payload,
	})
	return finishEnvelope(opts.formatter(cmd), res)
}

// finishEnvelope renders res and turns an error envelope into ExitFailure.
func finishEnvelope(f *OutputFormatter, res *engine.Result) error {
	if err := f.Envelope(res); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if !res.OK() {
		return NewExitError(ExitFailure, string(res.Error.Kind)+": "+res.Error.Message)
	}
	return nil
}
