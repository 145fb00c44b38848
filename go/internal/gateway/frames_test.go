package gateway

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    models.ParticipantStatus
		wantErr bool
	}{
		{name: "away", data: `{"type":"status","status":"away"}`, want: models.ParticipantStatusAway},
		{name: "focused", data: `{"type":"status","status":"focused"}`, want: models.ParticipantStatusFocused},
		{name: "waiting is not reportable", data: `{"type":"status","status":"waiting"}`, wantErr: true},
		{name: "unknown type", data: `{"type":"complete"}`, wantErr: true},
		{name: "not json", data: `away`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ClientMessageStatus, msg.Type)
			assert.Equal(t, tt.want, msg.Status)
		})
	}
}

func TestEventFrameCarriesEnvelope(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &models.Session{ID: "abc123", Status: models.SessionStatusActive}
	ev := events.NewSessionEvent(events.EventTypeSessionStarted, s, at)

	frame := EventFrame(ev)
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, "abc123", frame.SessionID)
	assert.Equal(t, ev.ID.String(), frame.EventID)
	assert.Equal(t, events.EventTypeSessionStarted, frame.EventType)
	assert.Equal(t, at, frame.Timestamp)
	assert.Equal(t, models.SessionStatusActive, frame.Session.Status)

	expired := EventFrame(events.NewExpiredEvent("abc123", at))
	assert.Nil(t, expired.Session)
	_, err := uuid.Parse(expired.EventID)
	assert.NoError(t, err)

	snapshot := SnapshotFrame(s, at)
	assert.Equal(t, FrameTypeSnapshot, snapshot.Type)
	assert.Empty(t, snapshot.EventID)
}
