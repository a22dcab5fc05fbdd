// Package leaderboard derives a sorted, rank-tagged view of every rating
// row in the Data Layer and serves paginated, filtered reads against it.
// The view is a single immutable snapshot swapped atomically by a
// background refresh, mirroring the Data Layer's own copy-on-write
// discipline (internal/datalayer).
package leaderboard

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/rating"
	"github.com/rts-ladder/ranked-core/internal/workerpool"
)

// MaxPageSize caps a single page; MaxPages caps total pages exposed (1000
// rows total) — a UI-side compatibility cap the engine enforces so the
// view layer stays thin.
const (
	MaxPageSize = 40
	MaxPages    = 25
	MaxRows     = MaxPageSize * MaxPages
)

// Row is one ranked (player, race) entry in the materialized view.
type Row struct {
	PlayerID    int64
	DisplayName string
	Country     string
	Race        string
	MMR         int
	GamesPlayed int
	GamesWon    int
	GamesLost   int
	GamesDrawn  int
	Tier        models.RankTier
	LastPlayed  time.Time
}

// Filters narrows a Query. BestRaceOnly must be applied before Country,
// Races, and Rank — the order the reduction must run in to keep rank
// numbers and per-player counts correct.
type Filters struct {
	Country      string
	Races        []string
	Rank         models.RankTier
	BestRaceOnly bool
}

// Page is one page of a filtered, ranked query result.
type Page struct {
	Rows       []Row
	Page       int
	PageSize   int
	TotalRows  int
	TotalPages int
}

// DataSource is the subset of the Data Layer the Leaderboard Engine reads.
// A narrow interface, not *datalayer.Layer directly, so refresh can be
// tested against a fake without standing up the whole Data Layer.
type DataSource interface {
	AllRatings() []*models.RatingRow
	AllPlayers() map[int64]*models.Player
}

// Engine holds the materialized view and refreshes it on a schedule or on
// invalidation signal from the Data Layer.
type Engine struct {
	source DataSource
	pool   *workerpool.Pool // optional; nil means refresh runs inline
	cache  SnapshotCache    // optional; nil disables cross-process mirroring
	logger *zap.SugaredLogger

	snapshot atomic.Pointer[[]Row]

	refreshInterval time.Duration
	invalidateCh    chan struct{}
	stopCh          chan struct{}
}

// Options configures New.
type Options struct {
	Source          DataSource
	Pool            *workerpool.Pool
	Cache           SnapshotCache
	Logger          *zap.SugaredLogger
	RefreshInterval time.Duration // default 60s
}

// New constructs the engine with an empty view; callers should call
// Refresh once synchronously before serving traffic, then Start the
// background scheduler.
func New(opts Options) *Engine {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	e := &Engine{
		source:          opts.Source,
		pool:            opts.Pool,
		cache:           opts.Cache,
		logger:          opts.Logger,
		refreshInterval: interval,
		invalidateCh:    make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
	}
	empty := make([]Row, 0)
	e.snapshot.Store(&empty)
	return e
}

// Start launches the scheduled-refresh and invalidation-driven background
// loop. Stop with Close.
func (e *Engine) Start(ctx context.Context) {
	go e.loop(ctx)
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.refresh(ctx)
		case <-e.invalidateCh:
			e.refresh(ctx)
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		}
	}
}

// Close stops the background loop.
func (e *Engine) Close() { close(e.stopCh) }

// Invalidate requests a refresh on the next loop iteration. Non-blocking:
// a pending invalidation is coalesced if one is already queued.
func (e *Engine) Invalidate() {
	select {
	case e.invalidateCh <- struct{}{}:
	default:
	}
}

// Refresh recomputes the materialized view synchronously, offloading the
// CPU-bound rank computation to the worker pool when one is configured; it
// runs the refresh inline when there is no pool or the pool's Submit fails.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.refresh(ctx)
}

func (e *Engine) refresh(ctx context.Context) error {
	compute := func(ctx context.Context) error {
		rows := e.computeRows()
		e.snapshot.Store(&rows)
		e.mirrorToCache(ctx, rows)
		return nil
	}
	if e.pool == nil {
		return compute(ctx)
	}
	if err := e.pool.Submit(ctx, compute); err != nil {
		if e.logger != nil {
			e.logger.Warnw("leaderboard refresh offload failed, falling back inline", "error", err)
		}
		return compute(ctx)
	}
	return nil
}

func (e *Engine) computeRows() []Row {
	ratings := e.source.AllRatings()
	players := e.source.AllPlayers()

	rankable := make([]rating.RankableRow, len(ratings))
	for i, r := range ratings {
		rankable[i] = rating.RankableRow{
			MMR:         r.MMR,
			GamesPlayed: r.GamesPlayed,
			CreatedOrder: creationOrder(r),
		}
	}
	tiers := rating.AssignTiers(rankable)

	rows := make([]Row, 0, len(ratings))
	for i, r := range ratings {
		p := players[r.PlayerID]
		row := Row{
			PlayerID:    r.PlayerID,
			Race:        r.RaceCode,
			MMR:         r.MMR,
			GamesPlayed: r.GamesPlayed,
			GamesWon:    r.GamesWon,
			GamesLost:   r.GamesLost,
			GamesDrawn:  r.GamesDrawn,
			Tier:        tiers[i],
			LastPlayed:  r.LastPlayed,
		}
		if p != nil {
			row.DisplayName = p.DisplayName
			row.Country = p.Country
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MMR != rows[j].MMR {
			return rows[i].MMR > rows[j].MMR
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	return rows
}

// creationOrder approximates row-creation order with last-played time as a
// tiebreak surrogate: the Data Layer does not track a separate creation
// sequence number, and first-played time (proxied here by last-played for
// rows with exactly one game) is the closest available signal.
func creationOrder(r *models.RatingRow) int64 {
	if r.LastPlayed.IsZero() {
		return 0
	}
	return r.LastPlayed.UnixNano()
}

// Query applies best_race_only (if set) before country/races/rank filters
// — order matters here, since filtering first would change which race
// counts as each player's best — then paginates.
func (e *Engine) Query(filters Filters, page, pageSize int) Page {
	rows := *e.snapshot.Load()

	if filters.BestRaceOnly {
		rows = reduceBestRacePerPlayer(rows)
	}
	rows = applyFilters(rows, filters)

	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}

	total := len(rows)
	if total > MaxRows {
		total = MaxRows
		rows = rows[:MaxRows]
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages > MaxPages {
		totalPages = MaxPages
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	if start < 0 || start >= len(rows) {
		return Page{Rows: []Row{}, Page: page, PageSize: pageSize, TotalRows: total, TotalPages: totalPages}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return Page{Rows: rows[start:end], Page: page, PageSize: pageSize, TotalRows: total, TotalPages: totalPages}
}

// reduceBestRacePerPlayer keeps one row per player: the highest-MMR race,
// tie-broken by most recent last_played, then by lexicographically
// smaller race code for full determinism.
func reduceBestRacePerPlayer(rows []Row) []Row {
	best := make(map[int64]Row, len(rows))
	for _, r := range rows {
		cur, ok := best[r.PlayerID]
		if !ok || better(r, cur) {
			best[r.PlayerID] = r
		}
	}
	out := make([]Row, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MMR != out[j].MMR {
			return out[i].MMR > out[j].MMR
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

func better(candidate, current Row) bool {
	if candidate.MMR != current.MMR {
		return candidate.MMR > current.MMR
	}
	if !candidate.LastPlayed.Equal(current.LastPlayed) {
		return candidate.LastPlayed.After(current.LastPlayed)
	}
	return candidate.Race < current.Race
}

func applyFilters(rows []Row, f Filters) []Row {
	out := rows[:0:0]
	for _, r := range rows {
		if f.Country != "" && r.Country != f.Country {
			continue
		}
		if len(f.Races) > 0 && !containsString(f.Races, r.Race) {
			continue
		}
		if f.Rank != "" && r.Tier != f.Rank {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
