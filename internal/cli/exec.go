package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hera-erp/hera/internal/engine"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	File  string
	Actor string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute one universal request",
		Long: `Execute one universal request read from a YAML or JSON file
("-" reads stdin) and print the response envelope.

Exit codes:
  0 - Request succeeded
  1 - Request returned an error envelope
  2 - Command error (unreadable file, malformed request, etc.)

Example:
  hera exec -f create-customer.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "request file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "actor stamped into created_by/updated_by")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runExec(opts *ExecOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	raw, err := readRequestFile(opts.File, cmd.InOrStdin())
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}
	req, err := ParseRequest(raw)
	if err != nil {
		_ = f.Error(ErrCodeParse, err.Error(), nil)
		return WrapExitError(ExitCommandError, "malformed request", err)
	}
	if opts.Actor != "" {
		req.Actor = opts.Actor
	}

	a, err := opts.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f.VerboseLog("executing %s.%s for %s", req.Store, req.Operation, req.OrganizationID)
	return finishEnvelope(f, a.Engine.Execute(ctx, req))
}

func readRequestFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// ParseRequest decodes a universal request from YAML. JSON documents are
// valid YAML and decode the same way. Unknown keys are rejected.
func ParseRequest(raw []byte) (engine.Request, error) {
	var req engine.Request
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return engine.Request{}, fmt.Errorf("parse request: %w", err)
	}
	if req.Operation == "" {
		return engine.Request{}, fmt.Errorf("operation is required")
	}
	if req.Store == "" {
		return engine.Request{}, fmt.Errorf("store is required")
	}
	return req, nil
}
