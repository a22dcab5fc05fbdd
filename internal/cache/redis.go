// Package cache wraps the Redis client used as ephemeral, cross-process
// state: the leaderboard's mirrored snapshot (so a freshly started
// process, or a second process in a future multi-node deployment, can
// warm-start instead of serving an empty view) and the readiness probe's
// dependency check. A thin wrapper around *redis.Client rather than a
// repository abstraction, since the service only ever needs these two
// narrow operations against it.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardSnapshotKey = "ranked:leaderboard:snapshot"

// Client wraps *redis.Client with the narrow surface the ladder needs.
type Client struct {
	rdb *redis.Client
}

// New constructs a Client from a redis:// URL. The connection is lazy
// (go-redis dials on first command); callers should still Ping once at
// startup so an unreachable cache fails fast rather than on first use.
func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Ping satisfies the api.RedisPinger surface the /readyz handler needs.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Store mirrors the leaderboard snapshot under a fixed key with a
// generous TTL — a stale-but-present snapshot after an outage is still
// more useful than an empty one, and the next scheduled refresh
// overwrites it within LeaderboardRefreshInterval regardless.
func (c *Client) Store(ctx context.Context, data []byte) error {
	return c.rdb.Set(ctx, leaderboardSnapshotKey, data, 24*time.Hour).Err()
}

// Load returns the previously mirrored snapshot, or (nil, nil) if none
// has been stored yet (redis.Nil is not an error from this cache's
// perspective — the caller just has nothing to warm-start from).
func (c *Client) Load(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, leaderboardSnapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}
