package matchmaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rts-ladder/ranked-core/internal/catalog"
	"github.com/rts-ladder/ranked-core/internal/models"
)

type fakeCreator struct {
	mu      sync.Mutex
	nextID  int64
	created []*models.Match
}

func (f *fakeCreator) CreateMatch(ctx context.Context, m *models.Match, now time.Time) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	f.created = append(f.created, m)
	return f.nextID
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return mustLoadCatalog(t)
}

func mustLoadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load("../../data")
	if err != nil {
		t.Fatalf("catalog.Load error = %v (expected test to run from a module-relative path)", err)
	}
	return c
}

func TestTick_S1HappyPath(t *testing.T) {
	cat := testCatalog(t)
	creator := &fakeCreator{}
	mm := New(Options{Catalog: cat, Creator: creator})

	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 1, Races: []string{"bw_terran"}, Region: "NAE",
		MMRByRace: map[string]int{"bw_terran": 1500},
	})
	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 2, Races: []string{"bw_terran"}, Region: "NAE",
		MMRByRace: map[string]int{"bw_terran": 1520},
	})

	pairings := mm.Tick(context.Background(), time.Now())
	if len(pairings) != 1 {
		t.Fatalf("expected exactly 1 pairing, got %d", len(pairings))
	}
	p := pairings[0]
	if p.Race1 != "bw_terran" || p.Race2 != "bw_terran" {
		t.Errorf("unexpected races: %+v", p)
	}
	if mm.QueueLen() != 0 {
		t.Errorf("queue should be empty after pairing, len=%d", mm.QueueLen())
	}
}

func TestTick_NoSharedRaceNeverPairs(t *testing.T) {
	cat := testCatalog(t)
	creator := &fakeCreator{}
	mm := New(Options{Catalog: cat, Creator: creator})

	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 1, Races: []string{"bw_terran"}, Region: "NAE",
		MMRByRace: map[string]int{"bw_terran": 1500},
	})
	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 2, Races: []string{"bw_zerg"}, Region: "NAE",
		MMRByRace: map[string]int{"bw_zerg": 1500},
	})

	pairings := mm.Tick(context.Background(), time.Now())
	if len(pairings) != 0 {
		t.Fatalf("expected no pairings without a shared race, got %d", len(pairings))
	}
	if mm.QueueLen() != 2 {
		t.Errorf("both entries should remain queued, len=%d", mm.QueueLen())
	}
}

func TestTick_S4WaveWideningAcceptsWiderPairAfterWaiting(t *testing.T) {
	cat := testCatalog(t)
	creator := &fakeCreator{}
	mm := New(Options{Catalog: cat, Creator: creator})

	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 1, Races: []string{"bw_terran"}, Region: "NAE", WaitCycles: 3,
		MMRByRace: map[string]int{"bw_terran": 1800},
	})
	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 2, Races: []string{"bw_terran"}, Region: "EUW",
		MMRByRace: map[string]int{"bw_terran": 2200},
	})

	pingMs, ok := cat.PingPenalty("NAE", "EUW")
	if !ok {
		t.Fatalf("expected a ping penalty entry for NAE/EUW in the reference catalog")
	}
	if pingMs > models.AbsolutePingVetoMs {
		t.Skipf("fixture catalog's NAE/EUW ping (%dms) exceeds the absolute veto; scenario not exercisable with this data", pingMs)
	}

	pairings := mm.Tick(context.Background(), time.Now())
	if len(pairings) != 1 {
		t.Fatalf("expected the widened window to accept the pair (mmr diff 400 <= 500), got %d pairings", len(pairings))
	}
}

func TestTick_UnpairedEntriesIncrementWaitCycles(t *testing.T) {
	cat := testCatalog(t)
	creator := &fakeCreator{}
	mm := New(Options{Catalog: cat, Creator: creator})

	mm.AddPlayer(&models.QueueEntry{
		PlayerID: 1, Races: []string{"bw_terran"}, Region: "NAE",
		MMRByRace: map[string]int{"bw_terran": 1500},
	})

	mm.Tick(context.Background(), time.Now())

	mm.mu.Lock()
	entry := mm.queue[1]
	mm.mu.Unlock()
	if entry.WaitCycles != 1 {
		t.Errorf("WaitCycles = %d, want 1 after one unpaired tick", entry.WaitCycles)
	}
}

func TestRemovePlayer_CancelsBeforeNextTick(t *testing.T) {
	cat := testCatalog(t)
	creator := &fakeCreator{}
	mm := New(Options{Catalog: cat, Creator: creator})

	mm.AddPlayer(&models.QueueEntry{PlayerID: 1, Races: []string{"bw_terran"}, Region: "NAE", MMRByRace: map[string]int{"bw_terran": 1500}})
	mm.RemovePlayer(1)

	if mm.QueueLen() != 0 {
		t.Errorf("expected queue empty after RemovePlayer, len=%d", mm.QueueLen())
	}
}
