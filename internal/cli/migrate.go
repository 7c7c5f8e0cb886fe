package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

// MigrateResult is the output of the migrate command.
type MigrateResult struct {
	Remote string `json:"remote"`
}

func (r MigrateResult) String() string {
	return "Schema is up to date on " + r.Remote + "."
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the remote order store schema",
		Long: `Create the orders and order_items tables on the remote store if they do
not exist. Safe to run more than once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	gw, err := connectRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	if err := gw.Migrate(ctx); err != nil {
		return WrapExitError(ExitCommandError, "migration failed", err)
	}
	slog.Info("remote schema migrated", "remote", gw.String())
	return newFormatter(opts, cmd).Success(MigrateResult{Remote: gw.String()})
}
