package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource returns a canned max number.
type fixedSource struct {
	max   string
	err   error
	calls int
	seen  string
}

func (s *fixedSource) MaxInvoiceNumber(_ context.Context, dayPrefix string) (string, error) {
	s.calls++
	s.seen = dayPrefix
	return s.max, s.err
}

var newYear = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func TestNext_FirstOfDay(t *testing.T) {
	src := &fixedSource{}
	a := NewAllocator(src, WithLocation(time.UTC))

	got, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0001", got)
	assert.Equal(t, "FAC-20250101-", src.seen)
}

func TestNext_Increments(t *testing.T) {
	src := &fixedSource{max: "FAC-20250101-0006"}
	a := NewAllocator(src, WithLocation(time.UTC))

	got, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0007", got)
}

func TestNext_CustomPrefix(t *testing.T) {
	src := &fixedSource{max: "INV-20250101-0041"}
	a := NewAllocator(src, WithPrefix("INV"), WithLocation(time.UTC))

	got, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	assert.Equal(t, "INV-20250101-0042", got)
	assert.Equal(t, "INV", a.Prefix())
}

func TestNext_DayFollowsLocation(t *testing.T) {
	// 23:30 UTC on Dec 31 is already Jan 1 in UTC+2.
	loc := time.FixedZone("UTC+2", 2*60*60)
	src := &fixedSource{}
	a := NewAllocator(src, WithLocation(loc))

	got, err := a.Next(context.Background(), time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-0001", got)
}

func TestNext_OverflowFallsBackToToken(t *testing.T) {
	src := &fixedSource{max: "FAC-20250101-9999"}
	a := NewAllocator(src, WithLocation(time.UTC), WithTokenFunc(func() string { return "7F3A19C2" }))

	got, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250101-7F3A19C2", got)

	n, err := Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "7F3A19C2", n.Token)
}

func TestNext_OverflowTokensAreUnpredictable(t *testing.T) {
	src := &fixedSource{max: "FAC-20250101-9999"}
	a := NewAllocator(src, WithLocation(time.UTC))

	first, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	second, err := a.Next(context.Background(), newYear)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, first, len("FAC-20250101-")+8)
}

func TestNext_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewAllocator(&fixedSource{err: boom}, WithLocation(time.UTC))

	_, err := a.Next(context.Background(), newYear)
	assert.ErrorIs(t, err, boom)
}

func TestNext_MalformedMaxIsError(t *testing.T) {
	a := NewAllocator(&fixedSource{max: "FAC-20241231-0003"}, WithLocation(time.UTC))

	_, err := a.Next(context.Background(), newYear)
	assert.ErrorIs(t, err, ErrMalformed, "a max from another day must not restart the sequence")
}

func TestParse(t *testing.T) {
	n, err := Parse("FAC-20250101-0007")
	require.NoError(t, err)
	assert.Equal(t, Number{Prefix: "FAC", Day: "20250101", Seq: 7}, n)
	assert.Equal(t, "FAC-20250101-0007", n.String())

	for _, bad := range []string{"", "FAC", "FAC-20250101", "FAC-2025011-0001", "FAC-20250101-12", "-20250101-0001", "FAC-20251301-0001"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "FAC-20250101-0042", Format("FAC", newYear, 42))
	assert.Equal(t, "FAC-20250101-", DayPrefix("FAC", newYear))
}
