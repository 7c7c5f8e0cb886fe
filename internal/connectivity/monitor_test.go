package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPinger returns the queued results in order, then the last one.
type scriptedPinger struct {
	mu      sync.Mutex
	results []error
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return err
}

type recordingTarget struct {
	mu          sync.Mutex
	online      bool
	transitions []bool
	err         error
}

func (r *recordingTarget) SetOnline(_ context.Context, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = online
	r.transitions = append(r.transitions, online)
	return r.err
}

func (r *recordingTarget) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

func (r *recordingTarget) Transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.transitions...)
}

var errDown = errors.New("connection refused")

func TestMonitor_ComesOnlineOnFirstSuccess(t *testing.T) {
	target := &recordingTarget{}
	m := &Monitor{Remote: &scriptedPinger{}, Target: target}

	require.NoError(t, m.Check(context.Background()))
	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, []bool{true}, target.Transitions(), "only transitions are reported")
}

func TestMonitor_OfflineAfterThreshold(t *testing.T) {
	target := &recordingTarget{online: true}
	pinger := &scriptedPinger{results: []error{errDown, errDown, errDown}}
	m := &Monitor{Remote: pinger, Target: target, FailThreshold: 2}
	ctx := context.Background()

	require.NoError(t, m.Check(ctx))
	assert.Empty(t, target.Transitions(), "one failure does not flap")

	require.NoError(t, m.Check(ctx))
	assert.Equal(t, []bool{false}, target.Transitions())

	require.NoError(t, m.Check(ctx))
	assert.Equal(t, []bool{false}, target.Transitions())
}

func TestMonitor_SuccessResetsFailures(t *testing.T) {
	target := &recordingTarget{online: true}
	pinger := &scriptedPinger{results: []error{errDown, nil, errDown, nil}}
	m := &Monitor{Remote: pinger, Target: target, FailThreshold: 2}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Check(ctx))
	}
	assert.Empty(t, target.Transitions())
}

func TestMonitor_TargetErrorStopsRun(t *testing.T) {
	fatal := errors.New("fatal")
	target := &recordingTarget{err: fatal}
	m := &Monitor{Remote: &scriptedPinger{}, Target: target, Interval: time.Millisecond}

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, fatal)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	target := &recordingTarget{}
	m := &Monitor{Remote: &scriptedPinger{}, Target: target, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, target.Online, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_Defaults(t *testing.T) {
	m := &Monitor{}
	assert.Equal(t, DefaultInterval, m.interval())
	assert.Equal(t, DefaultFailThreshold, m.threshold())
}
