// Package matchmaker implements the wave-based pairing engine: a live
// in-memory queue drained on a fixed tick, producing feasible, cost-ranked
// pairs that respect skill similarity, region ping, race overlap, and map
// vetoes. The embedded-mutex-plus-ticker queue shape generalizes an
// unfilled-match cache into wave-based pairing.
package matchmaker

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/catalog"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/notify"
)

// DefaultWavePeriod is the scheduling loop's tick interval.
const DefaultWavePeriod = 45 * time.Second

// MatchCreator is the subset of the Data Layer the Matchmaker needs to
// persist a paired match. A narrow interface so the scheduling loop is
// testable without the full Data Layer.
type MatchCreator interface {
	CreateMatch(ctx context.Context, m *models.Match, now time.Time) int64
}

// Matchmaker holds the live queue and runs the wave scheduling loop.
type Matchmaker struct {
	mu    sync.Mutex
	queue map[int64]*models.QueueEntry

	catalog *catalog.Catalog
	creator MatchCreator
	bus     *notify.Bus
	logger  *zap.SugaredLogger

	wavePeriod time.Duration
	rng        *rand.Rand
	rngMu      sync.Mutex

	stopCh chan struct{}
}

// Options configures New.
type Options struct {
	Catalog    *catalog.Catalog
	Creator    MatchCreator
	Bus        *notify.Bus
	Logger     *zap.SugaredLogger
	WavePeriod time.Duration
	Seed       int64
}

// New constructs an empty Matchmaker.
func New(opts Options) *Matchmaker {
	period := opts.WavePeriod
	if period <= 0 {
		period = DefaultWavePeriod
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	return &Matchmaker{
		queue:      make(map[int64]*models.QueueEntry),
		catalog:    opts.Catalog,
		creator:    opts.Creator,
		bus:        opts.Bus,
		logger:     opts.Logger,
		wavePeriod: period,
		rng:        rand.New(rand.NewSource(seed)),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the scheduling loop. Stop with Close.
func (m *Matchmaker) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Matchmaker) loop(ctx context.Context) {
	ticker := time.NewTicker(m.wavePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tick(ctx, time.Now())
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the scheduling loop.
func (m *Matchmaker) Close() { close(m.stopCh) }

// AddPlayer inserts or replaces the player's queue entry. A player is in
// the active queue at most once: a second AddPlayer call for the same
// player replaces the prior entry rather than duplicating it.
func (m *Matchmaker) AddPlayer(entry *models.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[entry.PlayerID] = entry
}

// RemovePlayer cancels a player's queue entry. Safe against a concurrently
// executing tick: the tick holds the same lock only long enough to
// snapshot, so removal either lands before the snapshot (entry never
// considered) or after (the pairing, if any, already stands).
func (m *Matchmaker) RemovePlayer(playerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, playerID)
}

// QueueLen reports the current queue size, for metrics/tests.
func (m *Matchmaker) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Tick runs one wave synchronously; exported for tests and for a manual
// "force a wave now" admin hook.
func (m *Matchmaker) Tick(ctx context.Context, now time.Time) []Pairing {
	return m.tick(ctx, now)
}

// Pairing is one accepted pair from a wave, surfaced to callers (tests,
// metrics) in addition to the match_found publication.
type Pairing struct {
	MatchID int64
	P1, P2  int64
	Race1   string
	Race2   string
	Map     string
	Server  string
	Cost    float64
}

func (m *Matchmaker) tick(ctx context.Context, now time.Time) []Pairing {
	snapshot, remaining := m.snapshotQueue()

	candidates := computeFeasiblePairs(snapshot, m.catalog)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].cost != candidates[j].cost {
			return candidates[i].cost < candidates[j].cost
		}
		wi, wj := snapshot[candidates[i].a].WaitCycles, snapshot[candidates[j].a].WaitCycles
		if wi != wj {
			return wi > wj
		}
		return candidates[i].a < candidates[j].a
	})

	accepted := make(map[int64]bool)
	var pairings []Pairing

	for _, c := range candidates {
		if accepted[c.a] || accepted[c.b] {
			continue
		}
		accepted[c.a] = true
		accepted[c.b] = true

		e1, e2 := snapshot[c.a], snapshot[c.b]
		mapName := m.pickMap(e1.Vetoes, e2.Vetoes)
		server := m.serverFor(e1.Region, e2.Region)

		match := &models.Match{
			Player1ID: e1.PlayerID,
			Player2ID: e2.PlayerID,
			Race1:     c.race,
			Race2:     c.race,
			Map:       mapName,
			Server:    server,
		}
		matchID := m.creator.CreateMatch(ctx, match, now)

		if m.bus != nil {
			payload := map[string]interface{}{
				"player_1_id": e1.PlayerID, "player_2_id": e2.PlayerID,
				"race_1": c.race, "race_2": c.race, "map": mapName, "server": server,
			}
			m.bus.Publish(notify.MatchEvent{Kind: notify.EventMatchFound, MatchID: matchID, ParticipantID: e1.PlayerID, Payload: payload})
			m.bus.Publish(notify.MatchEvent{Kind: notify.EventMatchFound, MatchID: matchID, ParticipantID: e2.PlayerID, Payload: payload})
		}

		pairings = append(pairings, Pairing{
			MatchID: matchID, P1: e1.PlayerID, P2: e2.PlayerID,
			Race1: c.race, Race2: c.race, Map: mapName, Server: server, Cost: c.cost,
		})

		delete(remaining, c.a)
		delete(remaining, c.b)
	}

	for id, entry := range remaining {
		entry.WaitCycles++
		remaining[id] = entry
	}
	m.commitRemaining(remaining, accepted)

	if m.logger != nil {
		m.logger.Infow("matchmaker wave completed", "paired", len(pairings), "remaining", len(remaining))
	}
	return pairings
}

// snapshotQueue takes the exclusive lock only long enough to copy the
// current queue; the lock is taken again separately to remove paired
// entries once pairing decisions are made.
func (m *Matchmaker) snapshotQueue() (map[int64]*models.QueueEntry, map[int64]*models.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[int64]*models.QueueEntry, len(m.queue))
	remaining := make(map[int64]*models.QueueEntry, len(m.queue))
	for id, e := range m.queue {
		cp := *e
		snapshot[id] = &cp
		remaining[id] = &cp
	}
	return snapshot, remaining
}

// commitRemaining re-takes the lock to remove paired entries and persist
// wait-cycle increments for everyone else, merging against whatever
// concurrent AddPlayer/RemovePlayer calls landed since the snapshot.
func (m *Matchmaker) commitRemaining(remaining map[int64]*models.QueueEntry, accepted map[int64]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range accepted {
		delete(m.queue, id)
	}
	for id, e := range remaining {
		if cur, ok := m.queue[id]; ok {
			cur.WaitCycles = e.WaitCycles
		}
	}
}

func (m *Matchmaker) pickMap(vetoesA, vetoesB []string) string {
	active := m.catalog.ActiveMaps()
	vetoed := make(map[string]bool, len(vetoesA)+len(vetoesB))
	for _, v := range vetoesA {
		vetoed[v] = true
	}
	for _, v := range vetoesB {
		vetoed[v] = true
	}

	pool := active[:0:0]
	for _, name := range active {
		if !vetoed[name] {
			pool = append(pool, name)
		}
	}
	if len(pool) == 0 {
		pool = active
	}
	if len(pool) == 0 {
		return ""
	}

	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return pool[m.rng.Intn(len(pool))]
}

// serverFor derives a deterministic server assignment from both players'
// regions, ordering the pair so server selection doesn't depend on which
// player happens to be "a" vs "b".
func (m *Matchmaker) serverFor(regionA, regionB string) string {
	if regionB < regionA {
		regionA, regionB = regionB, regionA
	}
	return "srv-" + regionA + "-" + regionB
}
