package cli

import (
	"context"
	"errors"
	"os"

	"github.com/roach88/possync/internal/config"
	"github.com/roach88/possync/internal/gateway/postgres"
	"github.com/roach88/possync/internal/store"
)

// loadConfig reads the file named by --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// storePath returns the --db override or the configured store path.
func storePath(opts *RootOptions, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return "", err
	}
	return cfg.Store.Path, nil
}

// openExistingStore opens a log that must already exist. store.Open would
// otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, "database not found: "+path)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// connectRemote opens the configured remote store and pings it.
func connectRemote(ctx context.Context, cfg *config.Config) (*postgres.Gateway, error) {
	if cfg.Remote.DSN == "" {
		return nil, NewExitError(ExitCommandError, "remote.dsn is not configured (or set "+config.EnvDSN+")")
	}
	invOpts, err := cfg.InvoiceOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid invoice settings", err)
	}
	gw, err := postgres.Connect(ctx, cfg.Remote.DSN,
		postgres.WithAllocatorOptions(invOpts...),
		postgres.WithRetryPolicy(cfg.RetryPolicy()),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to remote store", err)
	}
	return gw, nil
}
