package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 3 * time.Second

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification sink is closed")
)

func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("redis_connected", map[string]interface{}{"addr": opt.Addr})
	return client, nil
}

// Publisher is satisfied by *redis.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Message is the payload subscribers receive on a reader's channel.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	SourceID  uuid.UUID  `json:"sourceId"`
	ClubID    *uuid.UUID `json:"clubId,omitempty"`
	Link      string     `json:"link"`
	CreatedAt time.Time  `json:"createdAt"`
}

type envelope struct {
	channel string
	payload []byte
	kind    string
}

// RedisSink publishes stored notifications to one pub/sub channel per
// target reader. Publishing happens on a background goroutine.
type RedisSink struct {
	publisher Publisher
	prefix    string
	queue     chan envelope
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewRedisSink(publisher Publisher, cfg config.RedisConfig) *RedisSink {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "bookclub:notifications"
	}

	s := &RedisSink{
		publisher: publisher,
		prefix:    prefix,
		queue:     make(chan envelope, size),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Channel is where notifications for readerID are published.
func (s *RedisSink) Channel(readerID uuid.UUID) string {
	return s.prefix + ":" + readerID.String()
}

func (s *RedisSink) Deliver(_ context.Context, notification models.Notification) error {
	payload, err := json.Marshal(Message{
		ID:        notification.ID,
		Type:      string(notification.Type),
		SourceID:  notification.SourceID,
		ClubID:    notification.ClubID,
		Link:      notification.Link,
		CreatedAt: notification.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", notification.ID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.queue <- envelope{channel: s.Channel(notification.TargetID), payload: payload, kind: string(notification.Type)}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *RedisSink) run() {
	defer close(s.done)
	for env := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := s.publisher.Publish(ctx, env.channel, env.payload).Err()
		cancel()
		if err != nil {
			logger.Error("notification_publish_failed", err, map[string]interface{}{
				"channel": env.channel,
				"type":    env.kind,
			})
		}
	}
}

// Close stops accepting notifications and publishes whatever is queued.
func (s *RedisSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}
