package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/metrics"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

const workChannelBufferSize = 256

// SessionCompleter is what the scheduler needs from the session application
type SessionCompleter interface {
	ListActiveSessions(ctx context.Context) ([]*models.Session, error)
	CompleteSession(ctx context.Context, req session.CompleteSessionRequest) (*models.Session, error)
}

// Scheduler completes sessions whose countdown ran out on the server clock,
// so a session reaches complete even when neither client is watching.
// Clients may still complete first; completion is idempotent.
type Scheduler struct {
	app        SessionCompleter
	clock      clockwork.Clock
	metrics    metrics.Collector
	instanceID string
	numWorkers int

	workCh chan string
	stopCh chan struct{}

	activeTimers   map[string]clockwork.Timer
	activeTimersMu sync.Mutex

	// deadline each session is currently armed for
	lastScheduled   map[string]time.Time
	lastScheduledMu sync.Mutex
}

// New creates a scheduler with numWorkers completion workers
func New(app SessionCompleter, clock clockwork.Clock, numWorkers int, collector metrics.Collector) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Scheduler{
		app:           app,
		clock:         clock,
		metrics:       collector,
		instanceID:    uuid.NewString()[:8],
		numWorkers:    numWorkers,
		workCh:        make(chan string, workChannelBufferSize),
		stopCh:        make(chan struct{}),
		activeTimers:  make(map[string]clockwork.Timer),
		lastScheduled: make(map[string]time.Time),
	}
}

// HandleEvent is the hub listener that keeps timers in step with sessions.
func (s *Scheduler) HandleEvent(event events.SessionEvent) {
	switch event.Type {
	case events.EventTypeSessionStarted:
		if event.Session == nil {
			return
		}
		if end := event.Session.EndTime(); end != nil {
			s.Schedule(event.SessionID, *end)
		}
	case events.EventTypeSessionCompleted, events.EventTypeSessionExpired:
		s.cancelTimer(event.SessionID)
	}
}

// Schedule arms a one-shot timer that enqueues sessionID at deadline.
// Arming the same deadline twice is a no-op; a past deadline enqueues at once.
func (s *Scheduler) Schedule(sessionID string, deadline time.Time) {
	s.lastScheduledMu.Lock()
	if last, exists := s.lastScheduled[sessionID]; exists && last.Equal(deadline) {
		s.lastScheduledMu.Unlock()
		log.Debug().
			Str("session_id", sessionID).
			Time("deadline", deadline).
			Msg("skipping duplicate schedule - already scheduled for this deadline")
		return
	}
	s.lastScheduled[sessionID] = deadline
	s.lastScheduledMu.Unlock()

	duration := deadline.Sub(s.clock.Now())
	if duration <= 0 {
		s.forget(sessionID)
		go s.enqueue(sessionID)
		return
	}

	timer := s.clock.NewTimer(duration)
	s.replaceTimer(sessionID, timer)

	go func(id string, t clockwork.Timer) {
		select {
		case <-t.Chan():
			s.removeTimer(id, t)
			s.forget(id)
			s.enqueue(id)
		case <-s.stopCh:
			stopAndDrainTimer(t)
		}
	}(sessionID, timer)

	log.Debug().
		Str("session_id", sessionID).
		Time("deadline", deadline).
		Dur("duration", duration).
		Msg("scheduled completion timer")
}

// Pending returns the number of armed timers
func (s *Scheduler) Pending() int {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	return len(s.activeTimers)
}

func (s *Scheduler) enqueue(sessionID string) {
	select {
	case s.workCh <- sessionID:
		log.Debug().Str("session_id", sessionID).Msg("timer fired - enqueued for completion")
	case <-s.stopCh:
	}
}

func (s *Scheduler) forget(sessionID string) {
	s.lastScheduledMu.Lock()
	delete(s.lastScheduled, sessionID)
	s.lastScheduledMu.Unlock()
}

// replaceTimer swaps in a new timer for a session, stopping any existing one
func (s *Scheduler) replaceTimer(sessionID string, newTimer clockwork.Timer) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if existing, exists := s.activeTimers[sessionID]; exists {
		stopAndDrainTimer(existing)
		log.Debug().Str("session_id", sessionID).Msg("replaced existing timer")
	}
	s.activeTimers[sessionID] = newTimer
}

// cancelTimer cancels and removes an active timer for a session
func (s *Scheduler) cancelTimer(sessionID string) {
	s.activeTimersMu.Lock()
	timer, exists := s.activeTimers[sessionID]
	if exists {
		stopAndDrainTimer(timer)
		delete(s.activeTimers, sessionID)
	}
	s.activeTimersMu.Unlock()

	s.forget(sessionID)
	if exists {
		log.Debug().Str("session_id", sessionID).Msg("cancelled completion timer")
	}
}

// removeTimer drops a fired timer unless it was already replaced
func (s *Scheduler) removeTimer(sessionID string, fired clockwork.Timer) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	if current, ok := s.activeTimers[sessionID]; ok && current == fired {
		delete(s.activeTimers, sessionID)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
