package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/flashdeck/internal/apperr"
)

const keyPrefix = "flashdeck:session:"

// RedisStore keeps sessions as JSON strings in Redis so several instances can
// serve the same users. Every save refreshes the key's TTL.
type RedisStore struct {
	cl  redis.UniversalClient
	ttl time.Duration
	log *slog.Logger
}

// NewRedisStore creates a store on an already connected client.
func NewRedisStore(cl redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisStore {
	return &RedisStore{
		cl:  cl,
		ttl: ttl,
		log: log.With(slog.String("item", "RedisStore")),
	}
}

// NewRedisStoreFromURL parses url, connects and pings the server.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration, log *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}
	cl := redis.NewClient(opt)
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("cannot ping redis: %w", err)
	}
	return NewRedisStore(cl, ttl, log), nil
}

func getKey(id string) string {
	return keyPrefix + id
}

// Get loads the session with the given id.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.cl.Get(ctx, getKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("cannot get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		r.log.Warn("Dropping unreadable session", slog.String("id", id), slog.Any("error", err))
		_ = r.cl.Del(ctx, getKey(id)).Err()
		return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
	}
	return &s, nil
}

// Save writes s and refreshes its expiry.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot encode session: %w", err)
	}
	if err := r.cl.Set(ctx, getKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cannot save session: %w", err)
	}
	return nil
}

// Delete removes the session with the given id.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.cl.Del(ctx, getKey(id)).Err(); err != nil {
		return fmt.Errorf("cannot delete session: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.cl.Close()
}
