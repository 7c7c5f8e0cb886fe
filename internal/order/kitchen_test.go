package order

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ForwardOnly(t *testing.T) {
	tests := []struct {
		name    string
		from    KitchenStatus
		to      KitchenStatus
		want    KitchenStatus
		wantErr bool
	}{
		{"pending to preparing", StatusPending, StatusPreparing, StatusPreparing, false},
		{"preparing to served", StatusPreparing, StatusServed, StatusServed, false},
		{"pending straight to served", StatusPending, StatusServed, StatusServed, false},
		{"same status is a no-op", StatusPreparing, StatusPreparing, StatusPreparing, false},
		{"served to preparing rejected", StatusServed, StatusPreparing, "", true},
		{"preparing to pending rejected", StatusPreparing, StatusPending, "", true},
		{"served to pending rejected", StatusServed, StatusPending, "", true},
		{"legacy ready closes to served", StatusReady, StatusServed, StatusServed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.to)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrRegression))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_ReadyRewrittenToServed(t *testing.T) {
	got, err := Transition(StatusPreparing, StatusReady)
	require.NoError(t, err)
	assert.Equal(t, StatusServed, got, "new transitions never produce ready")
}

func TestTransition_UnknownStatus(t *testing.T) {
	_, err := Transition(StatusPending, KitchenStatus("burnt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStatus)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusPending, te.From)
}

func TestParseKitchenStatus_AcceptsLegacy(t *testing.T) {
	s, err := ParseKitchenStatus("ready")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s)

	_, err = ParseKitchenStatus("delivered")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestNext(t *testing.T) {
	s, ok := Next(StatusPending)
	assert.True(t, ok)
	assert.Equal(t, StatusPreparing, s)

	s, ok = Next(StatusReady)
	assert.True(t, ok)
	assert.Equal(t, StatusServed, s)

	_, ok = Next(StatusServed)
	assert.False(t, ok)
}

func TestTracksElapsed(t *testing.T) {
	assert.True(t, TracksElapsed(StatusPending))
	assert.True(t, TracksElapsed(StatusPreparing))
	assert.False(t, TracksElapsed(StatusServed))
}

func TestState_Lifecycle(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewState()
	require.True(t, s.Active())

	assert.ErrorIs(t, s.Pay(now), ErrNotServed)

	require.NoError(t, s.Advance(StatusPreparing, now))
	require.NoError(t, s.Advance(StatusServed, now.Add(time.Minute)))
	require.NotNil(t, s.ServedAt)
	assert.Equal(t, now.Add(time.Minute), *s.ServedAt)

	assert.ErrorIs(t, s.Advance(StatusPreparing, now), ErrRegression)
	assert.ErrorIs(t, s.Cancel(now), ErrCancelServed)

	require.NoError(t, s.Pay(now.Add(2*time.Minute)))
	assert.False(t, s.Active())
	assert.ErrorIs(t, s.Pay(now), ErrAlreadyPaid)
}

func TestState_CancelIsTerminal(t *testing.T) {
	now := time.Now()
	s := NewState()
	require.NoError(t, s.Advance(StatusPreparing, now))
	require.NoError(t, s.Cancel(now))
	assert.False(t, s.Active())

	assert.ErrorIs(t, s.Cancel(now), ErrAlreadyCancelled)
	assert.ErrorIs(t, s.Advance(StatusServed, now), ErrAlreadyCancelled)
	assert.ErrorIs(t, s.Pay(now), ErrAlreadyCancelled)
}
