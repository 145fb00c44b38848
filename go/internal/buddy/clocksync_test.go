package buddy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skewedSource is a server whose clock runs ahead of the local one and
// whose round trip takes rtt on the local clock.
type skewedSource struct {
	clock *clockwork.FakeClock
	skew  time.Duration
	rtt   time.Duration
	err   error
	calls int
}

func (s *skewedSource) ServerTime(context.Context) (time.Time, error) {
	s.calls++
	if s.err != nil {
		return time.Time{}, s.err
	}
	s.clock.Advance(s.rtt / 2)
	serverTime := s.clock.Now().Add(s.skew)
	s.clock.Advance(s.rtt / 2)
	return serverTime, nil
}

func TestClockSyncMeasuresOffsetAtMidpoint(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	source := &skewedSource{clock: clock, skew: 5 * time.Second, rtt: 400 * time.Millisecond}
	clockSync := NewClockSync(source, clock)

	assert.False(t, clockSync.Synced())

	offset, err := clockSync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, offset)
	assert.True(t, clockSync.Synced())
	assert.Equal(t, clock.Now().Add(5*time.Second), clockSync.ServerNow())
}

func TestClockSyncStepsAndNotifiesOnChange(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	source := &skewedSource{clock: clock, skew: -3 * time.Second}
	clockSync := NewClockSync(source, clock)

	var seen []time.Duration
	unsubscribe := clockSync.Subscribe(func(offset time.Duration) { seen = append(seen, offset) })

	_, err := clockSync.Sync(context.Background())
	require.NoError(t, err)
	_, err = clockSync.Sync(context.Background())
	require.NoError(t, err)

	source.skew = 2 * time.Second
	_, err = clockSync.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{-3 * time.Second, 2 * time.Second}, seen)

	unsubscribe()
	source.skew = time.Second
	_, err = clockSync.Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestClockSyncFailureKeepsOffset(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	source := &skewedSource{clock: clock, skew: 4 * time.Second}
	clockSync := NewClockSync(source, clock)

	_, err := clockSync.Sync(context.Background())
	require.NoError(t, err)

	source.err = errors.New("connection refused")
	_, err = clockSync.Sync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 4*time.Second, clockSync.Offset())
}

func TestClockSyncRunResyncsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	source := &skewedSource{clock: clock, skew: time.Second}
	clockSync := NewClockSync(source, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- clockSync.Run(ctx, time.Minute) }()

	assert.Eventually(t, clockSync.Synced, 5*time.Second, 10*time.Millisecond)
	source.skew = 7 * time.Second
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return clockSync.Offset() == 7*time.Second }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
