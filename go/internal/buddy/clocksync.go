package buddy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TimeSource reports the authoritative server clock.
type TimeSource interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// ClockSync keeps the offset between the local clock and the server clock.
// The offset is applied as a step function: each successful sync replaces it
// outright, without smoothing.
type ClockSync struct {
	source TimeSource
	clock  clockwork.Clock

	mu        sync.RWMutex
	offset    time.Duration
	synced    bool
	listeners map[uint64]func(time.Duration)
	nextID    uint64
}

func NewClockSync(source TimeSource, clock clockwork.Clock) *ClockSync {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockSync{
		source:    source,
		clock:     clock,
		listeners: make(map[uint64]func(time.Duration)),
	}
}

// Sync asks the server for its time and sets the offset against the midpoint
// of the request's round trip.
func (c *ClockSync) Sync(ctx context.Context) (time.Duration, error) {
	sent := c.clock.Now()
	serverTime, err := c.source.ServerTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read server time: %w", err)
	}
	received := c.clock.Now()

	midpoint := sent.Add(received.Sub(sent) / 2)
	offset := serverTime.Sub(midpoint)

	c.mu.Lock()
	changed := !c.synced || offset != c.offset
	c.offset = offset
	c.synced = true
	var targets []func(time.Duration)
	if changed {
		for _, fn := range c.listeners {
			targets = append(targets, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range targets {
		fn(offset)
	}

	log.Debug().
		Dur("offset", offset).
		Dur("round_trip", received.Sub(sent)).
		Msg("server clock synced")
	return offset, nil
}

// Offset returns the last measured server-minus-local offset.
func (c *ClockSync) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Synced reports whether at least one sync succeeded.
func (c *ClockSync) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// ServerNow is the local clock corrected by the current offset.
func (c *ClockSync) ServerNow() time.Time {
	return c.clock.Now().Add(c.Offset())
}

// Subscribe calls fn with the new offset whenever a sync changes it.
func (c *ClockSync) Subscribe(fn func(time.Duration)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Run syncs immediately and then every interval until ctx is cancelled.
// Failed syncs keep the previous offset.
func (c *ClockSync) Run(ctx context.Context, interval time.Duration) error {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Sync(ctx); err != nil {
			log.Warn().Err(err).Msg("clock sync failed, keeping previous offset")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}
