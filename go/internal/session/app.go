package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/metrics"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

const (
	maxTaskLength      = 50
	maxDurationMinutes = 24 * 60
	createAttempts     = 3
)

// SessionRepository defines what the session app layer needs from storage
type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, fn MutateFunc) (*models.Session, bool, error)
	DeleteWaitingBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ListActiveSessions(ctx context.Context) ([]*models.Session, error)
}

// Policy holds the session rules that are configurable per deployment.
type Policy struct {
	// WaitingTTL is how long an unjoined/unstarted session survives.
	WaitingTTL time.Duration
	// CompleteTolerance is the client clock skew accepted on completion.
	CompleteTolerance time.Duration
	// AllowedDurations restricts durations in minutes; empty allows any.
	AllowedDurations []int
	DeepLinkScheme   string
}

// DefaultPolicy returns the default session policy
func DefaultPolicy() Policy {
	return Policy{
		WaitingTTL:        24 * time.Hour,
		CompleteTolerance: 2 * time.Second,
		AllowedDurations:  []int{25, 50},
		DeepLinkScheme:    DefaultDeepLinkScheme,
	}
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the server clock (tests use a fake clock).
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithPolicy overrides the default session policy.
func WithPolicy(policy Policy) Option {
	return func(a *App) { a.policy = policy }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector metrics.Collector, transport string) Option {
	return func(a *App) {
		a.metrics = collector
		a.transport = transport
	}
}

// App handles session business logic
type App struct {
	repo      SessionRepository
	hub       *Hub
	publisher Publisher
	clock     clockwork.Clock
	policy    Policy
	metrics   metrics.Collector
	transport string
}

// NewApp creates a new session App. Changes are handed to publisher; hub is
// where this process's subscribers register and must be fed by publisher or
// by a transport consumer.
func NewApp(repo SessionRepository, hub *Hub, publisher Publisher, opts ...Option) *App {
	a := &App{
		repo:      repo,
		hub:       hub,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		policy:    DefaultPolicy(),
		metrics:   metrics.NoOpCollector{},
		transport: "local",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the active session policy.
func (a *App) Policy() Policy {
	return a.policy
}

// ServerTime returns the authoritative clock every countdown is projected from.
func (a *App) ServerTime(_ context.Context) (time.Time, error) {
	return a.clock.Now(), nil
}

// CreateSession creates a new waiting session with validation
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	req.Task = strings.TrimSpace(req.Task)
	if err := a.validateCreateSessionRequest(req); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		id := req.ID
		if id == "" {
			generated, err := GenerateSessionID()
			if err != nil {
				return nil, err
			}
			id = generated
		}

		s := newSession(id, req, a.clock.Now())
		err := a.repo.CreateSession(ctx, s)
		if errors.Is(err, ErrSessionExists) && req.ID == "" {
			log.Warn().Str("session_id", id).Msg("generated session id collided, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		log.Info().
			Str("session_id", s.ID).
			Str("creator_id", s.CreatorID).
			Int("duration_minutes", s.DurationMinutes).
			Msg("created session")
		a.publish(ctx, events.EventTypeSessionCreated, s)
		return s, nil
	}
	return nil, fmt.Errorf("failed to create session: %w", ErrSessionExists)
}

// GetSession retrieves a session by ID
func (a *App) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	s, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// JoinSession seats the friend and marks them focused
func (a *App) JoinSession(ctx context.Context, req JoinSessionRequest) (*models.Session, error) {
	if err := ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FriendID) == "" {
		return nil, fmt.Errorf("%w: friend_id is required", ErrInvalidArgument)
	}
	if len(req.FriendTask) > maxTaskLength {
		return nil, fmt.Errorf("%w: friend_task must be at most %d characters", ErrInvalidArgument, maxTaskLength)
	}

	s, changed, err := a.repo.UpdateSession(ctx, req.SessionID, applyJoin(req, a.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}
	if changed {
		log.Info().Str("session_id", s.ID).Str("friend_id", req.FriendID).Msg("friend joined session")
		a.publish(ctx, events.EventTypeFriendJoined, s)
	}
	return s, nil
}

// StartSession moves the session to active and stamps the shared start instant
func (a *App) StartSession(ctx context.Context, req StartSessionRequest) (*models.Session, error) {
	if err := ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}

	s, changed, err := a.repo.UpdateSession(ctx, req.SessionID, applyStart(req, a.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if changed {
		log.Info().Str("session_id", s.ID).Time("start_time", *s.StartTime).Msg("session started")
		a.publish(ctx, events.EventTypeSessionStarted, s)
	}
	return s, nil
}

// ReportStatus applies an away/focused report to the caller's own fields
func (a *App) ReportStatus(ctx context.Context, req ReportStatusRequest) (*models.Session, error) {
	if err := ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if req.Status != models.ParticipantStatusAway && req.Status != models.ParticipantStatusFocused {
		return nil, fmt.Errorf("%w: status must be away or focused", ErrInvalidArgument)
	}

	s, changed, err := a.repo.UpdateSession(ctx, req.SessionID, applyStatus(req, a.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to report status: %w", err)
	}
	if changed {
		role, _ := s.RoleOf(req.ParticipantID)
		if req.Status == models.ParticipantStatusAway {
			a.metrics.RecordViolation(string(role))
		}
		log.Debug().
			Str("session_id", s.ID).
			Str("role", string(role)).
			Str("status", string(req.Status)).
			Int("violations", s.ViolationsOf(role)).
			Msg("participant status changed")
		a.publish(ctx, events.EventTypeParticipantStatusChanged, s)
	}
	return s, nil
}

// CompleteSession sets the terminal status. Safe to call from both clients
// and the server scheduler; only the first call changes the record.
func (a *App) CompleteSession(ctx context.Context, req CompleteSessionRequest) (*models.Session, error) {
	if err := ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}

	s, changed, err := a.repo.UpdateSession(ctx, req.SessionID,
		applyComplete(req, a.clock.Now(), a.policy.CompleteTolerance))
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	if changed {
		by := req.ParticipantID
		if by == "" {
			by = "server"
		}
		log.Info().Str("session_id", s.ID).Str("completed_by", by).Msg("session complete")
		a.publish(ctx, events.EventTypeSessionCompleted, s)
	}
	return s, nil
}

// Subscribe registers fn for changes to an existing session. The returned
// func releases the subscription and must be called when the observer goes away.
func (a *App) Subscribe(ctx context.Context, sessionID string, fn func(events.SessionEvent)) (func(), error) {
	if _, err := a.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return a.hub.Subscribe(sessionID, fn), nil
}

// ExpireWaiting deletes waiting sessions older than the policy TTL
func (a *App) ExpireWaiting(ctx context.Context) ([]string, error) {
	if a.policy.WaitingTTL <= 0 {
		return nil, nil
	}
	now := a.clock.Now()
	ids, err := a.repo.DeleteWaitingBefore(ctx, now.Add(-a.policy.WaitingTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to expire waiting sessions: %w", err)
	}

	for _, id := range ids {
		ev := events.NewExpiredEvent(id, now)
		a.metrics.RecordTransition(string(ev.Type))
		if err := a.publisher.Publish(ctx, ev); err != nil {
			a.metrics.RecordPublishFailure(a.transport)
			log.Warn().Err(err).Str("session_id", id).Msg("failed to publish session expiry")
		}
	}
	if len(ids) > 0 {
		a.metrics.RecordExpired(len(ids))
		log.Info().Int("count", len(ids)).Msg("expired waiting sessions")
	}
	return ids, nil
}

// ListActiveSessions returns every session whose countdown is running
func (a *App) ListActiveSessions(ctx context.Context) ([]*models.Session, error) {
	sessions, err := a.repo.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return sessions, nil
}

// publish hands the change to the fan-out transport. The write has already
// committed, so failures are logged and counted rather than returned.
func (a *App) publish(ctx context.Context, eventType events.EventType, s *models.Session) {
	a.metrics.RecordTransition(string(eventType))
	ev := events.NewSessionEvent(eventType, s, a.clock.Now())
	if err := a.publisher.Publish(ctx, ev); err != nil {
		a.metrics.RecordPublishFailure(a.transport)
		log.Warn().
			Err(err).
			Str("session_id", s.ID).
			Str("event_type", string(eventType)).
			Msg("failed to publish session event")
	}
}

// Validation methods

// validateCreateSessionRequest validates create session request
func (a *App) validateCreateSessionRequest(req CreateSessionRequest) error {
	if req.ID != "" {
		if err := ValidateSessionID(req.ID); err != nil {
			return err
		}
	}
	if strings.TrimSpace(req.CreatorID) == "" {
		return fmt.Errorf("%w: creator is required", ErrInvalidArgument)
	}
	if req.Task == "" {
		return fmt.Errorf("%w: task is required", ErrInvalidArgument)
	}
	if len(req.Task) > maxTaskLength {
		return fmt.Errorf("%w: task must be at most %d characters", ErrInvalidArgument, maxTaskLength)
	}
	return a.validateDuration(req.DurationMinutes)
}

// validateDuration validates the countdown length against the policy
func (a *App) validateDuration(minutes int) error {
	if minutes <= 0 || minutes > maxDurationMinutes {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidArgument, maxDurationMinutes)
	}
	if len(a.policy.AllowedDurations) == 0 {
		return nil
	}
	for _, allowed := range a.policy.AllowedDurations {
		if minutes == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: duration must be one of %v minutes", ErrInvalidArgument, a.policy.AllowedDurations)
}
