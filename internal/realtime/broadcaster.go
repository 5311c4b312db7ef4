// Package realtime fans domain events out to connected clients.
package realtime

import (
	"context"
	"sync"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/google/uuid"
)

// Broadcaster publishes events and lets a user subscribe to the broadcast stream
// plus their personal one.
type Broadcaster interface {
	Publish(ctx context.Context, event models.Event) error
	// Subscribe returns a channel of events for userID. The channel is closed
	// once ctx is done or the returned cancel func is called.
	Subscribe(ctx context.Context, userID int64) (<-chan models.Event, func(), error)
	Close() error
}

// NewEvent stamps an event with a fresh id and the current time. A zero userID broadcasts.
func NewEvent(eventType string, userID int64, payload interface{}) models.Event {
	return models.Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		UserID:  userID,
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

const subscriberBuffer = 32

// LocalBroadcaster delivers events in process. It is used when no redis address
// is configured and in tests.
type LocalBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]localSub
}

type localSub struct {
	userID int64
	ch     chan models.Event
}

// NewLocalBroadcaster creates an empty in-process broadcaster.
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[int]localSub)}
}

// Publish never blocks: slow subscribers miss events.
func (b *LocalBroadcaster) Publish(_ context.Context, event models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if event.UserID != 0 && event.UserID != s.userID {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
	return nil
}

func (b *LocalBroadcaster) Subscribe(ctx context.Context, userID int64) (<-chan models.Event, func(), error) {
	ch := make(chan models.Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = localSub{userID: userID, ch: ch}
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

func (b *LocalBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
	return nil
}
