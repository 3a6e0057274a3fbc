// Package store provides session persistence backends for the triage assistant.
//
// This file implements the Redis-backed session store used in deployments
// where multiple instances share conversation state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Redis connection tuning constants.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultPoolSize     = 10

	// sessionKeyPrefix namespaces session keys in a shared Redis instance.
	sessionKeyPrefix = "state:"
)

// Opts holds configuration options for the Redis session store.
type Opts struct {
	Addr     string
	Password string
	DB       int
}

// Option defines a configuration option for the Redis session store.
type Option func(*Opts)

// WithAddr sets the Redis server address (host:port).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPassword sets the Redis AUTH password.
func WithPassword(password string) Option {
	return func(o *Opts) { o.Password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) Option {
	return func(o *Opts) { o.DB = db }
}

// RedisStore is a Redis-backed session store. TTL handling is delegated to
// Redis key expiry, so an idle session disappears exactly like "no session".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis session store and verifies connectivity.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisStore.NewRedisStore: creating store", "addr_set", cfg.Addr != "", "db", cfg.DB)

	if cfg.Addr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		PoolSize:     DefaultPoolSize,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Info("RedisStore connected", "addr", cfg.Addr)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing Redis client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the sender's session, or nil when the key is absent or expired.
func (s *RedisStore) Get(ctx context.Context, senderID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+senderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore Get failed", "error", err, "sender", senderID)
		return nil, fmt.Errorf("failed to load session for %s: %w", senderID, err)
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// A corrupt payload is unusable; treat it like no session rather than
		// wedging the sender's conversation forever.
		slog.Warn("RedisStore Get: discarding corrupt session payload", "error", err, "sender", senderID)
		if delErr := s.client.Del(ctx, sessionKeyPrefix+senderID).Err(); delErr != nil {
			slog.Error("RedisStore Get: failed to delete corrupt session", "error", delErr, "sender", senderID)
		}
		return nil, nil
	}
	return &session, nil
}

// Set saves the session as JSON with the given TTL.
func (s *RedisStore) Set(ctx context.Context, senderID string, session *models.Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("RedisStore Set marshal failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to encode session for %s: %w", senderID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+senderID, data, ttl).Err(); err != nil {
		slog.Error("RedisStore Set failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to save session for %s: %w", senderID, err)
	}
	slog.Debug("RedisStore session saved", "sender", senderID, "stage", session.Stage, "ttl", ttl)
	return nil
}

// Clear removes the sender's session.
func (s *RedisStore) Clear(ctx context.Context, senderID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+senderID).Err(); err != nil {
		slog.Error("RedisStore Clear failed", "error", err, "sender", senderID)
		return fmt.Errorf("failed to clear session for %s: %w", senderID, err)
	}
	slog.Debug("RedisStore session cleared", "sender", senderID)
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
