package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMsg implements the parts of jetstream.Msg the consumer touches.
type fakeMsg struct {
	jetstream.Msg
	data                 []byte
	acked, naked, termed bool
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "session.events.abc123" }
func (m *fakeMsg) Ack() error      { m.acked = true; return nil }
func (m *fakeMsg) Nak() error      { m.naked = true; return nil }
func (m *fakeMsg) Term() error     { m.termed = true; return nil }

type sinkFunc func(ctx context.Context, event events.SessionEvent) error

func (f sinkFunc) Publish(ctx context.Context, event events.SessionEvent) error { return f(ctx, event) }

func encoded(t *testing.T) []byte {
	t.Helper()
	event := events.NewSessionEvent(events.EventTypeFriendJoined, &models.Session{ID: "abc123"},
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	data, err := event.Marshal()
	require.NoError(t, err)
	return data
}

func TestHandleMessageAcksDelivered(t *testing.T) {
	var got []events.SessionEvent
	ec := &EventConsumer{sink: sinkFunc(func(_ context.Context, ev events.SessionEvent) error {
		got = append(got, ev)
		return nil
	})}

	msg := &fakeMsg{data: encoded(t)}
	ec.handleMessage(context.Background(), msg)

	assert.True(t, msg.acked)
	require.Len(t, got, 1)
	assert.Equal(t, events.EventTypeFriendJoined, got[0].Type)
}

func TestHandleMessageNaksOnSinkFailure(t *testing.T) {
	ec := &EventConsumer{sink: sinkFunc(func(context.Context, events.SessionEvent) error {
		return errors.New("hub unavailable")
	})}

	msg := &fakeMsg{data: encoded(t)}
	ec.handleMessage(context.Background(), msg)

	assert.True(t, msg.naked)
	assert.False(t, msg.acked)
}

func TestHandleMessageTerminatesMalformed(t *testing.T) {
	called := false
	ec := &EventConsumer{sink: sinkFunc(func(context.Context, events.SessionEvent) error {
		called = true
		return nil
	})}

	msg := &fakeMsg{data: []byte(`{"not":"an event"}`)}
	ec.handleMessage(context.Background(), msg)

	assert.True(t, msg.termed)
	assert.False(t, called)
}

func TestDefaultJetStreamConfig(t *testing.T) {
	a := DefaultJetStreamConfig()
	b := DefaultJetStreamConfig()

	assert.Equal(t, "SESSION_EVENTS", a.StreamName)
	assert.NotEqual(t, a.ConsumerName, b.ConsumerName, "every instance needs its own consumer")
	assert.Equal(t, "session.events.abc123", events.Subject(a.SubjectPrefix, "abc123"))
}
