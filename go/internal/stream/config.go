package stream

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig holds configuration for the session event stream
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string // events go to <prefix>.<session id>
	ConsumerName    string // unique per server instance
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	Replicas        int
	DuplicateWindow time.Duration // Window for duplicate detection
	AckWait         time.Duration
	MaxDeliver      int
	MaxAckPending   int
	// InactiveThreshold removes the consumer after its instance goes away
	InactiveThreshold time.Duration
}

// DefaultJetStreamConfig returns default JetStream configuration
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:               nats.DefaultURL,
		StreamName:        "SESSION_EVENTS",
		SubjectPrefix:     "session.events",
		ConsumerName:      "focusnest-" + uuid.NewString()[:8],
		MaxReconnects:     -1, // Infinite
		ReconnectWait:     2 * time.Second,
		MaxAge:            24 * time.Hour,
		Replicas:          1,
		DuplicateWindow:   2 * time.Minute,
		AckWait:           30 * time.Second,
		MaxDeliver:        3,
		MaxAckPending:     1000,
		InactiveThreshold: 5 * time.Minute,
	}
}

// connect opens a NATS connection with the reconnect handlers both sides share
func connect(cfg JetStreamConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConsumerName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
