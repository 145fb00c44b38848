package buddy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// reportTimeout bounds fire-and-forget status writes.
const reportTimeout = 5 * time.Second

// View is what a participant's screen renders on each tick.
type View struct {
	Session   *models.Session
	Role      models.Role
	Remaining int
	// Running is true once the session has a start instant.
	Running bool
	Expired bool
}

// Participant drives one side of a paired session: it keeps the latest
// record, projects the countdown from the reconciled clock, reports away
// periods and issues the idempotent completion when the countdown ends.
type Participant struct {
	store         Store
	clockSync     *ClockSync
	clock         clockwork.Clock
	sessionID     string
	participantID string

	mu         sync.Mutex
	current    *models.Session
	expired    bool
	away       bool
	completing bool
	onChange   func(View)

	// reports queues status writes in detection order; one drainer at a time
	reports  []models.ParticipantStatus
	draining bool
}

func NewParticipant(store Store, clockSync *ClockSync, clock clockwork.Clock, sessionID, participantID string) *Participant {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Participant{
		store:         store,
		clockSync:     clockSync,
		clock:         clock,
		sessionID:     sessionID,
		participantID: participantID,
	}
}

// OnChange registers fn to be called with a fresh View after every observed change.
func (p *Participant) OnChange(fn func(View)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Attach loads the record and subscribes to its changes. The returned func
// must be called when the participant's screen goes away.
func (p *Participant) Attach(ctx context.Context) (func(), error) {
	s, err := p.store.GetSession(ctx, p.sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.RoleOf(p.participantID); !ok {
		return nil, session.ErrNotParticipant
	}
	p.Observe(events.SessionEvent{SessionID: s.ID, Type: events.EventTypeSnapshot, Session: s})

	unsubscribe, err := p.store.Subscribe(ctx, p.sessionID, p.Observe)
	if err != nil {
		return nil, err
	}
	return unsubscribe, nil
}

// Observe applies a change notification. Older snapshots are ignored, so a
// snapshot racing a newer event cannot roll the record back.
func (p *Participant) Observe(ev events.SessionEvent) {
	p.mu.Lock()
	switch {
	case ev.Type == events.EventTypeSessionExpired:
		p.expired = true
		p.current = nil
	case ev.Session == nil:
		p.mu.Unlock()
		return
	case p.current == nil || !ev.Session.UpdatedAt.Before(p.current.UpdatedAt):
		p.current = ev.Session.Clone()
	}
	fn := p.onChange
	view := p.viewLocked()
	p.mu.Unlock()

	if fn != nil {
		fn(view)
	}
}

// Session returns a copy of the latest observed record.
func (p *Participant) Session() *models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.Clone()
}

// Start begins the shared countdown. Only the creator may start.
func (p *Participant) Start(ctx context.Context) (*models.Session, error) {
	s, err := p.store.StartSession(ctx, session.StartSessionRequest{
		SessionID: p.sessionID,
		CreatorID: p.participantID,
	})
	if err != nil {
		return nil, err
	}
	p.Observe(events.SessionEvent{SessionID: s.ID, Type: events.EventTypeSessionStarted, Session: s})
	return s, nil
}

// SetAway records the app leaving or returning to the foreground. A status
// write is issued only on an actual change, so one away period reports once
// however often the platform signals it. Writes are fire-and-forget but reach
// the store in the order they were detected.
func (p *Participant) SetAway(away bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.away == away {
		return
	}
	if p.current != nil && p.current.Status == models.SessionStatusComplete {
		return
	}
	p.away = away

	status := models.ParticipantStatusFocused
	if away {
		status = models.ParticipantStatusAway
	}
	p.reports = append(p.reports, status)
	if !p.draining {
		p.draining = true
		go p.drainReports()
	}
}

// drainReports sends queued status writes one at a time and exits once the
// queue is empty.
func (p *Participant) drainReports() {
	for {
		p.mu.Lock()
		if len(p.reports) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		status := p.reports[0]
		p.reports = p.reports[1:]
		p.mu.Unlock()

		p.report(status)
	}
}

func (p *Participant) report(status models.ParticipantStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	s, err := p.store.ReportStatus(ctx, session.ReportStatusRequest{
		SessionID:     p.sessionID,
		ParticipantID: p.participantID,
		Status:        status,
	})
	if err != nil {
		log.Debug().Err(err).Str("session_id", p.sessionID).Str("status", string(status)).Msg("status report dropped")
		return
	}
	p.Observe(events.SessionEvent{SessionID: s.ID, Type: events.EventTypeParticipantStatusChanged, Session: s})
}

// Tick projects the countdown and, the first time it reads zero, completes
// the session. A rejected completion is tried again on the next tick.
func (p *Participant) Tick(ctx context.Context) (View, error) {
	p.mu.Lock()
	view := p.viewLocked()
	shouldComplete := view.Running && view.Remaining == 0 &&
		view.Session.Status == models.SessionStatusActive && !p.completing
	if shouldComplete {
		p.completing = true
	}
	p.mu.Unlock()

	if !shouldComplete {
		return view, nil
	}

	s, err := p.store.CompleteSession(ctx, session.CompleteSessionRequest{
		SessionID:     p.sessionID,
		ParticipantID: p.participantID,
	})
	p.mu.Lock()
	p.completing = false
	p.mu.Unlock()
	if err != nil {
		if errors.Is(err, session.ErrCountdownRunning) {
			return view, nil
		}
		return view, fmt.Errorf("failed to complete session: %w", err)
	}

	p.Observe(events.SessionEvent{SessionID: s.ID, Type: events.EventTypeSessionCompleted, Session: s})
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked(), nil
}

// Run ticks once a second until the session completes, expires, or ctx is
// cancelled. onTick may be nil.
func (p *Participant) Run(ctx context.Context, onTick func(View)) error {
	ticker := p.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		view, err := p.Tick(ctx)
		if err != nil {
			log.Warn().Err(err).Str("session_id", p.sessionID).Msg("tick failed")
		}
		if onTick != nil {
			onTick(view)
		}
		if view.Expired || (view.Session != nil && view.Session.Status == models.SessionStatusComplete) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (p *Participant) viewLocked() View {
	view := View{Expired: p.expired}
	if p.current == nil {
		return view
	}
	view.Session = p.current.Clone()
	view.Role, _ = p.current.RoleOf(p.participantID)
	view.Remaining, view.Running = Remaining(p.current, p.clockSync.ServerNow())
	return view
}
