package pgnotify

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(ctx context.Context, event events.SessionEvent) error

func (f sinkFunc) Publish(ctx context.Context, event events.SessionEvent) error { return f(ctx, event) }

var at = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPublisherNotifiesChannel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	event := events.NewSessionEvent(events.EventTypeSessionStarted, &models.Session{ID: "abc123"}, at)
	payload, err := event.Marshal()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2)")).
		WithArgs("session_events", string(payload)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	publisher := NewPublisher(db, "session_events")
	require.NoError(t, publisher.Publish(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisherRejectsOversizedPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	huge := &models.Session{ID: "abc123", Task: strings.Repeat("x", maxPayloadBytes)}
	err = NewPublisher(db, "session_events").Publish(context.Background(),
		events.NewSessionEvent(events.EventTypeSessionCreated, huge, at))
	assert.ErrorContains(t, err, "over the NOTIFY limit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNotificationDeliversToSink(t *testing.T) {
	var got []events.SessionEvent
	l := &Listener{
		sink: sinkFunc(func(_ context.Context, event events.SessionEvent) error {
			got = append(got, event)
			return nil
		}),
		cfg: DefaultListenerConfig(),
	}

	event := events.NewExpiredEvent("abc123", at)
	payload, err := event.Marshal()
	require.NoError(t, err)

	require.NoError(t, l.handleNotification(context.Background(), string(payload)))
	require.Len(t, got, 1)
	assert.Equal(t, event.ID, got[0].ID)
	assert.Equal(t, events.EventTypeSessionExpired, got[0].Type)

	assert.Error(t, l.handleNotification(context.Background(), `{"type":"Bogus","session_id":"abc123"}`))
	assert.Len(t, got, 1)
}

func TestHandleNotificationSurfacesSinkFailure(t *testing.T) {
	l := &Listener{
		sink: sinkFunc(func(context.Context, events.SessionEvent) error { return errors.New("hub closed") }),
		cfg:  DefaultListenerConfig(),
	}
	payload, err := events.NewExpiredEvent("abc123", at).Marshal()
	require.NoError(t, err)

	assert.ErrorContains(t, l.handleNotification(context.Background(), string(payload)), "hub closed")
}
