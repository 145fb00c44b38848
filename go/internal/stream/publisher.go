package stream

import (
	"context"
	"fmt"

	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamPublisher publishes session events to the SESSION_EVENTS stream.
// Every server instance runs an EventConsumer that feeds its own hub, so a
// change written on one instance reaches observers connected to any other.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Focus session change events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().
		Str("stream", p.config.StreamName).
		Str("subjects", sc.Subjects[0]).
		Msg("JetStream stream ready")
	return nil
}

// Publish implements session.Publisher. The event id doubles as the JetStream
// message id, so a retried publish is deduplicated by the server.
func (p *JetStreamPublisher) Publish(ctx context.Context, event events.SessionEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: events.Subject(p.config.SubjectPrefix, event.SessionID),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Session-ID": []string{event.SessionID},
		},
	}, jetstream.WithMsgID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published session event")
	return nil
}

// Close drains the connection
func (p *JetStreamPublisher) Close() error {
	return p.nc.Drain()
}
