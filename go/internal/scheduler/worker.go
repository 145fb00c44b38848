package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Run re-arms timers for every active session, then completes sessions as
// their timers fire until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Str("instance", s.instanceID).
		Int("workers", s.numWorkers).
		Msg("completion scheduler started")

	var wg sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i)
	}

	if err := s.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("failed to re-arm active sessions")
	}

	<-ctx.Done()
	log.Info().Str("instance", s.instanceID).Msg("scheduler shutdown requested")

	close(s.stopCh)
	wg.Wait()

	s.activeTimersMu.Lock()
	for sessionID, timer := range s.activeTimers {
		stopAndDrainTimer(timer)
		log.Debug().Str("session_id", sessionID).Msg("cancelled timer on shutdown")
	}
	s.activeTimers = make(map[string]clockwork.Timer)
	s.activeTimersMu.Unlock()

	log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	return nil
}

// Recover arms a timer for every session that is active in storage
func (s *Scheduler) Recover(ctx context.Context) error {
	sessions, err := s.app.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}
	for _, sess := range sessions {
		if end := sess.EndTime(); end != nil {
			s.Schedule(sess.ID, *end)
		}
	}
	log.Info().Int("sessions", len(sessions)).Msg("re-armed active session timers")
	return nil
}

// worker completes sessions from the work channel
func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sessionID := <-s.workCh:
			log.Debug().
				Str("session_id", sessionID).
				Int("worker_id", workerID).
				Msg("worker handling countdown expiry")
			s.complete(ctx, sessionID)
		}
	}
}

func (s *Scheduler) complete(ctx context.Context, sessionID string) {
	sess, err := s.app.CompleteSession(ctx, session.CompleteSessionRequest{SessionID: sessionID})
	s.metrics.RecordScheduledCompletion(err == nil)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("instance", s.instanceID).
			Msg("scheduled completion failed")
		return
	}
	log.Info().
		Str("session_id", sessionID).
		Str("status", string(sess.Status)).
		Msg("scheduled completion applied")
}
