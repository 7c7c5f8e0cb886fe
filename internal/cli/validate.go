package cli

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/config"
)

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path"`
	Config *config.Config `json:"config,omitempty"`
}

// RenderText implements TextRenderer.
func (r ValidationResult) RenderText(w io.Writer) error {
	c := r.Config
	fmt.Fprintf(w, "✓ %s is valid\n", r.Path)
	fmt.Fprintf(w, "  store.path              %s\n", c.Store.Path)
	fmt.Fprintf(w, "  remote.dsn              %s\n", c.Remote.DSN)
	fmt.Fprintf(w, "  invoice                 %s (%s)\n", c.Invoice.Prefix, c.Invoice.Timezone)
	fmt.Fprintf(w, "  retry                   %d attempts, %s backoff\n", c.Retry.Attempts, c.Retry.Backoff)
	fmt.Fprintf(w, "  connectivity            every %s, offline after %d failures\n", c.Connectivity.Interval, c.Connectivity.FailThreshold)
	fmt.Fprintf(w, "  engine.retry_interval   %s\n", c.Engine.RetryInterval)
	addr := c.Status.Addr
	if addr == "" {
		addr = "disabled"
	}
	_, err := fmt.Fprintf(w, "  status.addr             %s\n", addr)
	return err
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the terminal config file",
		Long: `Load the config file named by --config, apply defaults and the
` + config.EnvDSN + ` override, and check it against the config schema.
Prints the resolved settings. The remote password is masked.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		if outErr := formatter.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	formatter.VerboseLog("Loaded %s", opts.Config)
	cfg.Remote.DSN = maskDSN(cfg.Remote.DSN)
	return formatter.Success(ValidationResult{Valid: true, Path: opts.Config, Config: cfg})
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
