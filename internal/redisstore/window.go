// Package redisstore implements guard.WindowStore on Redis so several guard
// processes draw from one set of per-order budgets.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces window keys.
const DefaultPrefix = "orders:window:"

// takeScript resets an expired window, then consumes one unit if the count
// is below the limit. The window start is the caller's clock, not the
// server's, so every process agrees with its own guard on window edges.
//
// KEYS[1] window hash
// ARGV[1] now (unix ms), ARGV[2] window (ms), ARGV[3] limit (0 = unlimited)
//
// Returns {count, taken}.
var takeScript = redis.NewScript(`
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count = tonumber(redis.call('HGET', KEYS[1], 'count')) or 0
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

if start == nil or now - start > window then
	count = 0
	redis.call('HSET', KEYS[1], 'start', ARGV[1], 'count', 0)
	redis.call('PEXPIRE', KEYS[1], window * 2)
end

if limit > 0 and count >= limit then
	return {count, 0}
end

count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, 1}
`)

// WindowStore is a Redis-backed guard.WindowStore.
//
// Keys expire on their own after twice the window, so no sweeping is needed.
type WindowStore struct {
	client redis.UniversalClient
	window time.Duration
	prefix string
}

// Option configures a WindowStore.
type Option func(*WindowStore)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *WindowStore) {
		s.prefix = prefix
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, window time.Duration, opts ...Option) *WindowStore {
	s := &WindowStore{
		client: client,
		window: window,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to the Redis server at url (redis:// or rediss://) and
// verifies it answers.
func Dial(ctx context.Context, url string, window time.Duration, opts ...Option) (*WindowStore, error) {
	if url == "" {
		return nil, errors.New("redis url not configured")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, window, opts...), nil
}

// Take implements guard.WindowStore.
func (s *WindowStore) Take(ctx context.Context, key string, limit int, now time.Time) (int, bool, error) {
	res, err := takeScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(),
		s.window.Milliseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("take %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("take %s: unexpected script reply %v", key, res)
	}
	return int(res[0]), res[1] == 1, nil
}

// Close closes the underlying client.
func (s *WindowStore) Close() error {
	return s.client.Close()
}
