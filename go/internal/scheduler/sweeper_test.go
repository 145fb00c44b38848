package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperExpiresAbandonedSessions(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	hub := session.NewHub()
	app := session.NewApp(session.NewMemoryRepository(), hub, hub, session.WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := app.CreateSession(ctx, session.CreateSessionRequest{ID: "abc123", CreatorID: "u1", Task: "Study", DurationMinutes: 25})
	require.NoError(t, err)

	sweeper := NewSweeper(app, clock, 10*time.Minute)
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	_, err = app.GetSession(ctx, "abc123")
	require.NoError(t, err, "fresh sessions survive the first sweep")

	clock.Advance(25 * time.Hour)
	assert.Eventually(t, func() bool {
		_, err := app.GetSession(ctx, "abc123")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	sweeper := NewSweeper(nil, clockwork.NewFakeClock(), 0)
	assert.Equal(t, 10*time.Minute, sweeper.interval)
}
