// Package connectivity watches the remote store and reports online/offline
// transitions to the sync engine.
package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/possync/internal/gateway"
)

// Defaults for a Monitor.
const (
	DefaultInterval      = 5 * time.Second
	DefaultFailThreshold = 2
)

// Toggler receives connectivity transitions. *engine.Engine implements it.
type Toggler interface {
	SetOnline(ctx context.Context, online bool) error
	Online() bool
}

// Monitor pings the remote store on a fixed interval.
//
// A successful ping brings the target online at once. Going offline needs
// FailThreshold consecutive failed pings, so one dropped packet does not
// flap the indicator.
type Monitor struct {
	Remote        gateway.Pinger
	Target        Toggler
	Interval      time.Duration
	FailThreshold int

	// Timeout bounds one ping. Zero uses Interval.
	Timeout time.Duration

	failures int
}

func (m *Monitor) interval() time.Duration {
	if m.Interval <= 0 {
		return DefaultInterval
	}
	return m.Interval
}

func (m *Monitor) threshold() int {
	if m.FailThreshold < 1 {
		return DefaultFailThreshold
	}
	return m.FailThreshold
}

// Run pings immediately and then every Interval until ctx is done.
// It returns ctx's error, or the first error the target reports.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("connectivity monitor starting",
		"interval", m.interval().String(),
		"fail_threshold", m.threshold(),
	)

	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	for {
		if err := m.Check(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check pings once and applies the resulting transition, if any.
func (m *Monitor) Check(ctx context.Context) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = m.interval()
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	err := m.Remote.Ping(pctx)
	cancel()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err == nil {
		m.failures = 0
		if !m.Target.Online() {
			return m.Target.SetOnline(ctx, true)
		}
		return nil
	}

	m.failures++
	slog.Debug("connectivity check failed",
		"failures", m.failures,
		"error", err,
	)
	if m.Target.Online() && m.failures >= m.threshold() {
		return m.Target.SetOnline(ctx, false)
	}
	return nil
}
