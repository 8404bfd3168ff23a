package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const (
	EventMessageNew       = "message.new"
	EventConversationRead = "conversation.read"

	userChannelPrefix = "chat:user:"
	subscriberBuffer  = 32
)

// ChatEvent is the payload pushed to participants over Redis and WebSocket.
type ChatEvent struct {
	Type           string          `json:"type"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Message        *models.Message `json:"message,omitempty"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Realtime delivers chat events to every connection of the given users.
// Delivery is best effort; the database remains the source of truth.
type Realtime interface {
	Publish(ctx context.Context, recipients []uuid.UUID, event ChatEvent) error
	// Subscribe returns a stream of events for userID and a function that ends it.
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan ChatEvent, func())
}

func userChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// RedisRealtime fans events out through Redis pub/sub so every instance sees them.
type RedisRealtime struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewRedisRealtime(client *redis.Client, log *logrus.Logger) *RedisRealtime {
	return &RedisRealtime{client: client, log: log}
}

func (r *RedisRealtime) Publish(ctx context.Context, recipients []uuid.UUID, event ChatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, id := range recipients {
		pipe.Publish(ctx, userChannel(id), data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRealtime) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan ChatEvent, func()) {
	pubsub := r.client.Subscribe(ctx, userChannel(userID))
	out := make(chan ChatEvent, subscriberBuffer)

	var once sync.Once
	stop := func() { once.Do(func() { _ = pubsub.Close() }) }

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.WithError(err).Warn("Dropping malformed chat event")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				stop()
				return
			}
		}
	}()

	return out, stop
}

// LocalHub is the in-process Realtime used when Redis is not configured.
// It only reaches connections held by this instance.
type LocalHub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan ChatEvent]struct{}
}

func NewLocalHub() *LocalHub {
	return &LocalHub{subscribers: make(map[uuid.UUID]map[chan ChatEvent]struct{})}
}

func (h *LocalHub) Publish(_ context.Context, recipients []uuid.UUID, event ChatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range recipients {
		for ch := range h.subscribers[id] {
			// Non-blocking: a slow consumer loses events rather than stalling the sender.
			select {
			case ch <- event:
			default:
			}
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(_ context.Context, userID uuid.UUID) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan ChatEvent]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[userID], ch)
			if len(h.subscribers[userID]) == 0 {
				delete(h.subscribers, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}
