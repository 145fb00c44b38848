package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(sessionID string) events.SessionEvent {
	return events.SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      events.EventTypeParticipantStatusChanged,
		Timestamp: testEpoch,
	}
}

func TestHubDeliversOnlyToSessionListeners(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var a, b, all []string
	hub.Subscribe("aaaa11", func(ev events.SessionEvent) { a = append(a, ev.SessionID) })
	hub.Subscribe("bbbb22", func(ev events.SessionEvent) { b = append(b, ev.SessionID) })
	hub.SubscribeAll(func(ev events.SessionEvent) { all = append(all, ev.SessionID) })

	require.NoError(t, hub.Publish(ctx, testEvent("aaaa11")))
	require.NoError(t, hub.Publish(ctx, testEvent("bbbb22")))
	require.NoError(t, hub.Publish(ctx, testEvent("cccc33")))

	assert.Equal(t, []string{"aaaa11"}, a)
	assert.Equal(t, []string{"bbbb22"}, b)
	assert.Equal(t, []string{"aaaa11", "bbbb22", "cccc33"}, all)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	calls := 0
	unsubscribe := hub.Subscribe("aaaa11", func(events.SessionEvent) { calls++ })
	assert.Equal(t, 1, hub.SubscriberCount("aaaa11"))

	require.NoError(t, hub.Publish(ctx, testEvent("aaaa11")))
	unsubscribe()
	unsubscribe()
	require.NoError(t, hub.Publish(ctx, testEvent("aaaa11")))

	assert.Equal(t, 1, calls)
	assert.Zero(t, hub.SubscriberCount("aaaa11"))

	allCalls := 0
	unsubscribeAll := hub.SubscribeAll(func(events.SessionEvent) { allCalls++ })
	unsubscribeAll()
	require.NoError(t, hub.Publish(ctx, testEvent("aaaa11")))
	assert.Zero(t, allCalls)
}

func TestHubListenerMayUnsubscribeDuringDelivery(t *testing.T) {
	hub := NewHub()

	var unsubscribe func()
	done := make(chan struct{})
	unsubscribe = hub.Subscribe("aaaa11", func(events.SessionEvent) {
		unsubscribe()
		close(done)
	})

	require.NoError(t, hub.Publish(context.Background(), testEvent("aaaa11")))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener was not called")
	}
	assert.Zero(t, hub.SubscriberCount("aaaa11"))
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := NewHub()

	var (
		mu    sync.Mutex
		count int
	)
	hub.Subscribe("aaaa11", func(events.SessionEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), testEvent("aaaa11"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
