package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is one change notification: a top-level post was created. Reply
// events are not expected on the channel, but IsReply is carried so
// consumers can re-filter defensively.
type Event struct {
	NewItemID string `json:"new_item_id"`
	AuthorID  string `json:"author_id"`
	IsReply   bool   `json:"is_reply"`
}

// Hub is the change-notification channel: it consumes post-created events
// from a Redis pub/sub channel and fans them out to in-process subscribers.
// It is owned by the process, started once with Run and torn down with
// Close; consumers receive it by injection and attach via Subscribe.
type Hub struct {
	client  *redis.Client
	channel string

	mu   sync.RWMutex
	subs map[string]func(Event)

	pubsub *redis.PubSub
	done   chan struct{}
}

// NewHub connects to Redis and verifies the connection with a ping.
func NewHub(addr string, db int, channel string) (*Hub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Hub{
		client:  client,
		channel: channel,
		subs:    make(map[string]func(Event)),
	}, nil
}

// NewLocalHub returns a hub with no Redis consumer behind it: events enter
// only through Dispatch. Used when the engine runs without a broker and in
// tests.
func NewLocalHub(channel string) *Hub {
	return &Hub{
		channel: channel,
		subs:    make(map[string]func(Event)),
	}
}

// Run subscribes to the Redis channel and starts the dispatch loop. It
// returns once the subscription is confirmed; a confirmation failure is
// returned so the caller can degrade to polling-only reconciliation.
func (h *Hub) Run() error {
	ctx := context.Background()

	pubsub := h.client.Subscribe(ctx, h.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to channel %s: %w", h.channel, err)
	}

	h.pubsub = pubsub
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		// pubsub.Channel() is closed by pubsub.Close(); the loop exits
		// only through that, never through a context.
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("Discarding malformed change notification", "channel", h.channel, "error", err)
				continue
			}
			h.Dispatch(event)
		}
	}()

	slog.Debug("Change notification hub started", "channel", h.channel)
	return nil
}

// Close stops the dispatch loop and releases the Redis connection. Safe to
// call more than once and before Run.
func (h *Hub) Close() {
	if h.pubsub != nil {
		// Closing the subscription closes its message channel, which is
		// what actually stops the dispatch loop.
		h.pubsub.Close()
		<-h.done
		h.pubsub = nil
	}
	if h.client != nil {
		h.client.Close()
	}
}

// Subscribe attaches fn to the fan-out. fn runs on the dispatch goroutine
// and must not block; subscribers needing I/O hand the event off themselves.
func (h *Hub) Subscribe(fn func(Event)) *Subscription {
	id := uuid.NewString()

	h.mu.Lock()
	h.subs[id] = fn
	h.mu.Unlock()

	return &Subscription{id: id, hub: h}
}

// Publish sends an event to the Redis channel. Used by the composer side
// and the development seeder; the hub's own subscribers receive it through
// the dispatch loop like any remote event.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	if h.client == nil {
		h.Dispatch(event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := h.client.Publish(ctx, h.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dispatch fans the event out to in-process subscribers. The Run loop
// calls it for every consumed message; a local hub is fed through it
// directly. Delivery happens under the read lock, so Unsubscribe (which
// takes the write lock) returning guarantees no further delivery.
func (h *Hub) Dispatch(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, fn := range h.subs {
		fn(event)
	}
}

// Subscription is one subscriber's handle on the hub.
type Subscription struct {
	id  string
	hub *Hub
}

// Unsubscribe detaches the subscriber. It is synchronous (no event is
// delivered after it returns) and idempotent.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}
