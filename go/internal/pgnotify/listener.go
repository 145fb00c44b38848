package pgnotify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// maxPayloadBytes is the Postgres NOTIFY payload limit (8000 bytes minus headroom).
const maxPayloadBytes = 7900

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
	MinReconnect  time.Duration
	MaxReconnect  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:   "",
		NotifyChannel: "session_events",
		PingInterval:  90 * time.Second,
		MinReconnect:  10 * time.Second,
		MaxReconnect:  time.Minute,
	}
}

// Sink receives events from the channel; the session hub implements it.
type Sink interface {
	Publish(ctx context.Context, event events.SessionEvent) error
}

// Publisher sends session events with pg_notify so every instance listening
// on the channel sees them.
type Publisher struct {
	db      *sql.DB
	channel string
}

func NewPublisher(db *sql.DB, channel string) *Publisher {
	return &Publisher{db: db, channel: channel}
}

// Publish implements session.Publisher
func (p *Publisher) Publish(ctx context.Context, event events.SessionEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if len(data) > maxPayloadBytes {
		return fmt.Errorf("session event %s is %d bytes, over the NOTIFY limit", event.ID, len(data))
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(data)); err != nil {
		return fmt.Errorf("failed to notify session event: %w", err)
	}
	return nil
}

// Listener republishes notifications into this instance's hub
type Listener struct {
	listener *pq.Listener
	sink     Sink
	cfg      ListenerConfig
}

func NewListener(sink Sink, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
			if ev == pq.ListenerEventReconnected {
				log.Warn().Msg("listener reconnected; notifications sent while disconnected were lost")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		listener: l,
		sink:     sink,
		cfg:      cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Msg("listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification decodes the event carried in the payload and hands it to the sink.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	event, err := events.Unmarshal([]byte(extra))
	if err != nil {
		return fmt.Errorf("invalid session event in notification: %w", err)
	}
	if err := l.sink.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to deliver session event: %w", err)
	}
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		Msg("delivered notification")
	return nil
}
