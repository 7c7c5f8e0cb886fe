package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Database string
	Yes      bool
}

// ClearResult is the output of the clear command.
type ClearResult struct {
	Cleared int `json:"cleared"`
}

func (r ClearResult) String() string {
	return fmt.Sprintf("Cleared %d operations.", r.Cleared)
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued operation",
		Long: `Delete every operation from the local log. Queued changes that have not
reached the remote store are lost.

Use this only after an operator has dealt with a stuck queue by hand. The
terminal must not be running.

Example:
  possync clear --db ./till-1.db --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the local operation log (overrides store.path)")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm that queued operations may be lost")

	return cmd
}

func runClear(opts *ClearOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	path, err := storePath(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	st, err := openExistingStore(path)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Count(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operation log", err)
	}
	if n > 0 && !opts.Yes {
		return NewExitError(ExitCommandError, fmt.Sprintf("refusing to discard %d pending operations without --yes", n))
	}
	if err := st.Clear(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear operation log", err)
	}
	slog.Warn("operation log cleared", "path", path, "discarded", n)
	return newFormatter(opts.RootOptions, cmd).Success(ClearResult{Cleared: n})
}
