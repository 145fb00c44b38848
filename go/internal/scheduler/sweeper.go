package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// WaitingExpirer deletes waiting sessions past their TTL
type WaitingExpirer interface {
	ExpireWaiting(ctx context.Context) ([]string, error)
}

// Sweeper periodically expires sessions that were never started, so their
// links report invalid or expired.
type Sweeper struct {
	app      WaitingExpirer
	clock    clockwork.Clock
	interval time.Duration
}

func NewSweeper(app WaitingExpirer, clock clockwork.Clock, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{app: app, clock: clock, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("waiting-session sweeper started")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper shutting down")
			return nil
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.app.ExpireWaiting(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep waiting sessions")
		return
	}
	if len(ids) > 0 {
		log.Debug().Strs("session_ids", ids).Msg("swept waiting sessions")
	}
}
