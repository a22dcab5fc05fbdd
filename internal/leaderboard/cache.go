package leaderboard

import (
	"context"
	"encoding/json"
)

// SnapshotCache is the optional cross-process visibility hook for the
// materialized view: a cache (Redis, in this service) that the refresh
// path mirrors its snapshot into, and that a freshly started process can
// warm-start from before its own first refresh completes. Nil disables
// the hook entirely; the engine behaves exactly as it does with only the
// in-process atomic snapshot.
type SnapshotCache interface {
	Store(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// WarmFromCache loads a previously mirrored snapshot (if any) and serves
// it until the first local Refresh completes. Intended to be called once
// at wiring time, before Start, so the leaderboard isn't empty during the
// gap between process start and the first scheduled or inline refresh.
func (e *Engine) WarmFromCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	data, err := e.cache.Load(ctx)
	if err != nil || len(data) == 0 {
		return
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		if e.logger != nil {
			e.logger.Warnw("leaderboard cache warm-start: malformed snapshot, ignoring", "error", err)
		}
		return
	}
	e.snapshot.Store(&rows)
}

// mirrorToCache serializes the freshly computed rows and stores them in
// the cache for other processes (or this one, after a restart) to warm
// from. Best-effort: a cache failure never blocks or fails the refresh.
func (e *Engine) mirrorToCache(ctx context.Context, rows []Row) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := e.cache.Store(ctx, data); err != nil && e.logger != nil {
		e.logger.Warnw("leaderboard cache mirror failed", "error", err)
	}
}
