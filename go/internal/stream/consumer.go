package stream

import (
	"context"
	"fmt"

	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Sink receives events consumed from the stream; the session hub implements it.
type Sink interface {
	Publish(ctx context.Context, event events.SessionEvent) error
}

// EventConsumer consumes session events from JetStream and republishes them
// into this instance's hub
type EventConsumer struct {
	sink     Sink
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConfig
}

// NewEventConsumer creates a per-instance consumer that only sees new events
func NewEventConsumer(ctx context.Context, sink Sink, cfg JetStreamConfig) (*EventConsumer, error) {
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		sink:   sink,
		nc:     nc,
		js:     js,
		config: cfg,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

// ensureConsumer creates or updates the instance consumer
func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	consumer, err := ec.js.CreateOrUpdateConsumer(ctx, ec.config.StreamName, jetstream.ConsumerConfig{
		Name:              ec.config.ConsumerName,
		Description:       "Session fan-out into the local observer hub",
		FilterSubject:     fmt.Sprintf("%s.>", ec.config.SubjectPrefix),
		DeliverPolicy:     jetstream.DeliverNewPolicy, // observers load snapshots on connect
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           ec.config.AckWait,
		MaxDeliver:        ec.config.MaxDeliver,
		MaxAckPending:     ec.config.MaxAckPending,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
		InactiveThreshold: ec.config.InactiveThreshold,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")
	ec.consumer = consumer
	return nil
}

// Start begins consuming events from JetStream
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.handleMessage(ctx, msg)
		}
	}
}

func (ec *EventConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	event, err := events.Unmarshal(msg.Data())
	if err != nil {
		// Redelivery cannot fix a malformed message
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed session event")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
		return
	}

	if err := ec.sink.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("session_id", event.SessionID).
			Msg("failed to deliver session event")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ACK message")
	}
}

// Stop gracefully shuts down the event consumer
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
