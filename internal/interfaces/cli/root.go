// Package cli is the command line front end of the billing services.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/freelance/backend/internal/bootstrap"
	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

// AppFactory opens the application for one command. release is called
// when the command is done with it.
type AppFactory func(ctx context.Context) (app *bootstrap.App, release func() error, err error)

// DefaultAppFactory loads configuration from the environment and opens a
// fresh application for every command
func DefaultAppFactory(ctx context.Context) (*bootstrap.App, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logCfg := logger.CLIConfig()
	if cfg.Log.Level == "debug" {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{Documents: true})
	if err != nil {
		return nil, nil, err
	}
	return app, func() error {
		defer func() { _ = logger.Sync(log) }()
		return app.Close(context.WithoutCancel(ctx))
	}, nil
}

type runtime struct {
	open   AppFactory
	output string
}

// withApp opens the application around fn
func (r *runtime) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, app)
}

func (r *runtime) printer(cmd *cobra.Command) *printer {
	return &printer{w: cmd.OutOrStdout(), json: r.output == "json"}
}

// NewRootCmd builds the command tree on top of open
func NewRootCmd(open AppFactory) *cobra.Command {
	r := &runtime{open: open}

	cmd := &cobra.Command{
		Use:           "freelance",
		Short:         "Track clients, projects, invoices and payments",
		Long:          "freelance keeps the books of a freelance practice: clients, billable work, invoices and the payments that settle them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if r.output != "text" && r.output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", r.output)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&r.output, "output", "o", "text", "Output format: text or json")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newClientCmd(r))
	cmd.AddCommand(newProjectCmd(r))
	cmd.AddCommand(newInvoiceCmd(r))
	cmd.AddCommand(newPaymentCmd(r))
	cmd.AddCommand(newReportCmd(r))
	return cmd
}

// Execute runs the command line with the default factory
func Execute(ctx context.Context) error {
	return NewRootCmd(DefaultAppFactory).ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "freelance %s\n", version)
		},
	}
}

// writeTo creates path, or uses out when path is "-" or empty
func writeTo(out io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(out)
	}
	return writeFile(path, fn)
}
