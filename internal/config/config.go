// Package config loads the terminal's YAML configuration and validates it
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/possync/internal/gateway"
	"github.com/roach88/possync/internal/invoice"
)

//go:embed schema.cue
var schemaCUE string

// EnvDSN overrides remote.dsn so credentials can stay out of the file.
const EnvDSN = "POSSYNC_REMOTE_DSN"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Store        StoreConfig        `yaml:"store" json:"store"`
	Remote       RemoteConfig       `yaml:"remote" json:"remote"`
	Invoice      InvoiceConfig      `yaml:"invoice" json:"invoice"`
	Retry        RetryConfig        `yaml:"retry" json:"retry"`
	Connectivity ConnectivityConfig `yaml:"connectivity" json:"connectivity"`
	Status       StatusConfig       `yaml:"status" json:"status"`
	Engine       EngineConfig       `yaml:"engine" json:"engine"`
}

type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

type RemoteConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

type InvoiceConfig struct {
	Prefix   string `yaml:"prefix" json:"prefix"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

type RetryConfig struct {
	Attempts int    `yaml:"attempts" json:"attempts"`
	Backoff  string `yaml:"backoff" json:"backoff"`
}

type ConnectivityConfig struct {
	Interval      string `yaml:"interval" json:"interval"`
	FailThreshold int    `yaml:"fail_threshold" json:"fail_threshold"`
}

// StatusConfig controls the local status API. An empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type EngineConfig struct {
	RetryInterval string `yaml:"retry_interval" json:"retry_interval"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		Store:   StoreConfig{Path: "possync.db"},
		Invoice: InvoiceConfig{Prefix: invoice.DefaultPrefix, Timezone: "Local"},
		Retry: RetryConfig{
			Attempts: gateway.DefaultRetryPolicy().Attempts,
			Backoff:  gateway.DefaultRetryPolicy().Backoff.String(),
		},
		Connectivity: ConnectivityConfig{Interval: "5s", FailThreshold: 2},
		Status:       StatusConfig{Addr: "127.0.0.1:8787"},
		Engine:       EngineConfig{RetryInterval: "0s"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r over the defaults, applies the environment
// override, and validates the result. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Remote.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks c against the schema and resolves the timezone.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: invoice.timezone: %v", ErrInvalid, err)
	}
	return nil
}

// Location resolves invoice.timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Invoice.Timezone)
}

// RetryPolicy returns the remote-call retry budget.
func (c Config) RetryPolicy() gateway.RetryPolicy {
	return gateway.RetryPolicy{Attempts: c.Retry.Attempts, Backoff: mustDuration(c.Retry.Backoff)}
}

// ConnectivityInterval returns how often the remote is pinged.
func (c Config) ConnectivityInterval() time.Duration {
	return mustDuration(c.Connectivity.Interval)
}

// EngineRetryInterval returns how often a stuck queue head is retried.
func (c Config) EngineRetryInterval() time.Duration {
	return mustDuration(c.Engine.RetryInterval)
}

// InvoiceOptions returns the allocator options implied by the invoice keys.
func (c Config) InvoiceOptions() ([]invoice.Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return []invoice.Option{invoice.WithPrefix(c.Invoice.Prefix), invoice.WithLocation(loc)}, nil
}

// mustDuration parses a duration the schema has already accepted.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
