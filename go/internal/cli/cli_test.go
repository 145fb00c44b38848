package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdev12/focusnest/go/internal/buddy"
	"github.com/mcdev12/focusnest/go/internal/gateway"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newServer(t *testing.T) string {
	t.Helper()
	t.Setenv("FOCUSNEST_PARTICIPANT", "")
	t.Setenv("FOCUSNEST_SCHEME", "")

	hub := session.NewHub()
	app := session.NewApp(session.NewMemoryRepository(), hub, hub)
	manager := gateway.NewConnectionManager(app, gateway.DefaultConnectionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)

	mux := http.NewServeMux()
	session.NewService(app).RegisterRoutes(mux)
	gateway.NewWebSocketHandler(manager).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Setenv("FOCUSNEST_SERVER", server.URL)
	return server.URL
}

func TestVersion(t *testing.T) {
	out, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestLink(t *testing.T) {
	t.Setenv("FOCUSNEST_SCHEME", "")

	out, err := executeCLI(t, "link", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "focusnest://buddy/abc123\n", out)

	out, err = executeCLI(t, "link", "abc123", "--scheme", "studybuddy")
	require.NoError(t, err)
	assert.Equal(t, "studybuddy://buddy/abc123\n", out)

	_, err = executeCLI(t, "link", "NOPE!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid request")
}

func TestCreateRequiresParticipant(t *testing.T) {
	newServer(t)

	_, err := executeCLI(t, "create", "--task", "Study")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participant id is required")

	_, err = executeCLI(t, "create", "--participant", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "task" not set`)
}

func TestPairedSessionFromTheTerminal(t *testing.T) {
	newServer(t)

	out, err := executeCLI(t, "create", "--participant", "u1", "--task", "Study", "--id", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "session: abc123")
	assert.Contains(t, out, "link: focusnest://buddy/abc123")
	assert.Contains(t, out, "status: waiting")

	out, err = executeCLI(t, "join", "focusnest://buddy/abc123", "--participant", "u2", "--task", "Read")
	require.NoError(t, err)
	assert.Contains(t, out, "friend: u2 on Read [focused, 0 violations]")

	_, err = executeCLI(t, "start", "abc123", "--participant", "u2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only the person who created the session can start it.")

	out, err = executeCLI(t, "start", "focusnest://buddy/abc123", "--participant", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "status: active")

	out, err = executeCLI(t, "away", "focusnest://buddy/abc123", "--participant", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "friend: u2 on Read [away, 1 violations]")

	out, err = executeCLI(t, "back", "abc123", "--participant", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "friend: u2 on Read [focused, 1 violations]")

	out, err = executeCLI(t, "get", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "remaining: 2")

	out, err = executeCLI(t, "get", "abc123", "--json")
	require.NoError(t, err)
	var s models.Session
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, models.SessionStatusActive, s.Status)
	assert.Equal(t, 1, s.FriendViolations)

	_, err = executeCLI(t, "complete", "focusnest://buddy/abc123", "--participant", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The countdown is still running.")
}

func TestGetUnknownSession(t *testing.T) {
	newServer(t)

	_, err := executeCLI(t, "get", "focusnest://buddy/zzz999")
	require.Error(t, err)
	assert.ErrorIs(t, err, buddy.ErrInvalidLink)
	assert.Contains(t, err.Error(), "invalid or has expired")

	_, err = executeCLI(t, "join", "focusnest://elsewhere/zzz999", "--participant", "u2")
	require.Error(t, err)
	assert.ErrorIs(t, err, buddy.ErrInvalidLink)
}

func TestSessionCommandsRejectForeignLinks(t *testing.T) {
	newServer(t)

	for _, command := range []string{"start", "away", "back", "complete"} {
		_, err := executeCLI(t, command, "https://buddy/abc123", "--participant", "u1")
		require.Error(t, err, command)
		assert.ErrorIs(t, err, buddy.ErrInvalidLink, command)
	}
}

func TestWatchRequiresPositiveResync(t *testing.T) {
	newServer(t)

	for _, resync := range []string{"0s", "-1s"} {
		_, err := executeCLI(t, "watch", "abc123", "--participant", "u1", "--resync", resync)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--resync must be positive")
	}
}

func TestRenderView(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	friend := "u2"
	s := &models.Session{
		ID: "abc123", CreatorID: "u1", DurationMinutes: 25, StartTime: &start,
		Status: models.SessionStatusActive, CreatorStatus: models.ParticipantStatusFocused,
		FriendStatus: models.ParticipantStatusAway, FriendID: &friend, FriendViolations: 2,
	}

	assert.Equal(t, "[15:00] creator: focused (0) | friend: away (2)",
		renderView(buddy.View{Session: s, Remaining: 900, Running: true}))

	waiting := &models.Session{Status: models.SessionStatusWaiting, CreatorStatus: models.ParticipantStatusFocused}
	assert.Equal(t, "[waiting] creator: focused (0) | friend: waiting", renderView(buddy.View{Session: waiting}))

	assert.Equal(t, "session expired", renderView(buddy.View{Expired: true}))
	assert.Equal(t, "loading", renderView(buddy.View{}))
}
