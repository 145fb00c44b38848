package events

import (
	"testing"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionEventCopiesRecord(t *testing.T) {
	friend := "u2"
	s := &models.Session{ID: "abc123", FriendID: &friend}
	ev := NewSessionEvent(EventTypeFriendJoined, s, time.Now())

	*s.FriendID = "u3"
	assert.Equal(t, "u2", *ev.Session.FriendID)
	assert.Equal(t, "abc123", ev.SessionID)
}

func TestUnmarshalChecksEnvelope(t *testing.T) {
	ev := NewExpiredEvent("abc123", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	data, err := ev.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Nil(t, decoded.Session)

	_, err = Unmarshal([]byte(`{"type":"SessionStarted"}`))
	assert.ErrorContains(t, err, "no session id")

	_, err = Unmarshal([]byte(`{"type":"Snapshot","session_id":"abc123"}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = Unmarshal([]byte(`nope`))
	assert.Error(t, err)
}
