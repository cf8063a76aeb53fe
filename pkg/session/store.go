// Package session supplies the upstream session cookies, bootstrapping them
// from the calendar landing page and caching them in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionMiss indicates no usable session is cached.
	ErrSessionMiss = errors.New("session miss")

	// ErrInvalidEntry indicates the cached session is corrupted.
	ErrInvalidEntry = errors.New("invalid session entry")
)

// DefaultKey is the Redis key holding the cookie jar.
const DefaultKey = "calendar:session:cookies"

// Entry is a cached cookie jar.
type Entry struct {
	Cookies  []StoredCookie `json:"cookies"`
	Expires  time.Time      `json:"expires"`
	CachedAt time.Time      `json:"cached_at"`
}

// StoredCookie is the part of an http.Cookie that is replayed on requests.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewEntry captures cookies valid for ttl.
func NewEntry(cookies []*http.Cookie, ttl time.Duration) *Entry {
	now := time.Now()
	e := &Entry{Expires: now.Add(ttl), CachedAt: now}
	for _, c := range cookies {
		e.Cookies = append(e.Cookies, StoredCookie{Name: c.Name, Value: c.Value})
	}
	return e
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// HTTPCookies converts the entry back to request cookies.
func (e *Entry) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(e.Cookies))
	for _, c := range e.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Store persists session entries in Redis.
type Store struct {
	redis *redis.Client
	key   string
}

// NewStore creates a Redis-backed store. An empty key means DefaultKey.
func NewStore(redisClient *redis.Client, key string) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{redis: redisClient, key: key}
}

// Get returns the cached entry or ErrSessionMiss.
func (s *Store) Get(ctx context.Context) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() || len(entry.Cookies) == 0 {
		_ = s.Delete(ctx)
		return nil, ErrSessionMiss
	}
	return &entry, nil
}

// Set stores an entry; Redis drops it when it expires.
func (s *Store) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("session entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal session entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.key, data, ttl).Err(); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the cached entry.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
