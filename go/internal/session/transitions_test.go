package session

import (
	"testing"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStatusTransition(t *testing.T) {
	tests := []struct {
		current, next models.SessionStatus
		ok            bool
	}{
		{models.SessionStatusWaiting, models.SessionStatusActive, true},
		{models.SessionStatusActive, models.SessionStatusComplete, true},
		{models.SessionStatusWaiting, models.SessionStatusComplete, false},
		{models.SessionStatusActive, models.SessionStatusWaiting, false},
		{models.SessionStatusComplete, models.SessionStatusActive, false},
		{models.SessionStatusComplete, models.SessionStatusWaiting, false},
		{models.SessionStatus("paused"), models.SessionStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.next), func(t *testing.T) {
			err := validateStatusTransition(tt.current, tt.next)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	statuses := []models.SessionStatus{models.SessionStatusWaiting, models.SessionStatusActive, models.SessionStatusComplete}
	for _, current := range statuses {
		for _, next := range statuses {
			if validateStatusTransition(current, next) == nil {
				assert.True(t, current.Before(next), "%s -> %s", current, next)
			}
		}
	}
}

func TestMutationsLeaveUnownedFieldsAlone(t *testing.T) {
	now := testEpoch
	friend := "u2"
	start := now.Add(-30 * time.Minute)
	base := &models.Session{
		ID: "abc123", CreatorID: "u1", Task: "Study", DurationMinutes: 25,
		Status: models.SessionStatusActive, CreatedAt: now.Add(-time.Hour), StartTime: &start,
		CreatorStatus: models.ParticipantStatusFocused, FriendStatus: models.ParticipantStatusFocused,
		FriendID: &friend, UpdatedAt: start,
	}

	s := base.Clone()
	changed, err := applyStatus(ReportStatusRequest{SessionID: "abc123", ParticipantID: "u2", Status: models.ParticipantStatusAway}, now)(s)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, base.CreatorStatus, s.CreatorStatus)
	assert.Equal(t, base.CreatorViolations, s.CreatorViolations)
	assert.Equal(t, base.Status, s.Status)
	assert.Equal(t, *base.StartTime, *s.StartTime)

	s = base.Clone()
	changed, err = applyComplete(CompleteSessionRequest{SessionID: "abc123"}, now, 2*time.Second)(s)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, base.CreatorStatus, s.CreatorStatus)
	assert.Equal(t, base.FriendStatus, s.FriendStatus)
	assert.Equal(t, *base.StartTime, *s.StartTime)
	assert.Equal(t, now, s.UpdatedAt)
}

func TestApplyCompleteTolerance(t *testing.T) {
	start := testEpoch
	friend := "u2"
	active := &models.Session{
		ID: "abc123", CreatorID: "u1", DurationMinutes: 25,
		Status: models.SessionStatusActive, StartTime: &start, FriendID: &friend,
	}
	end := start.Add(25 * time.Minute)

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"well before end", end.Add(-time.Minute), ErrCountdownRunning},
		{"just outside tolerance", end.Add(-3 * time.Second), ErrCountdownRunning},
		{"inside tolerance", end.Add(-2 * time.Second), nil},
		{"at end", end, nil},
		{"after end", end.Add(time.Hour), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := active.Clone()
			changed, err := applyComplete(CompleteSessionRequest{SessionID: "abc123", ParticipantID: "u1"}, tt.now, 2*time.Second)(s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, changed)
				assert.Equal(t, models.SessionStatusActive, s.Status)
				return
			}
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, models.SessionStatusComplete, s.Status)
		})
	}
}
