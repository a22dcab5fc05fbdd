package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rts-ladder/ranked-core/internal/models"
)

type fakeSource struct {
	ratings []*models.RatingRow
	players map[int64]*models.Player
}

func (f *fakeSource) AllRatings() []*models.RatingRow       { return f.ratings }
func (f *fakeSource) AllPlayers() map[int64]*models.Player { return f.players }

func newFixture(t *testing.T) *Engine {
	t.Helper()
	players := make(map[int64]*models.Player)
	var ratings []*models.RatingRow

	races := []string{"bw_terran", "bw_protoss"}
	now := time.Now()
	for pid := int64(1); pid <= 256; pid++ {
		players[pid] = &models.Player{ID: pid, DisplayName: fmt.Sprintf("p%d", pid), Country: "US"}
		for _, race := range races {
			ratings = append(ratings, &models.RatingRow{
				PlayerID:    pid,
				RaceCode:    race,
				MMR:         1000 + int(pid)*3 + len(race),
				GamesPlayed: 1,
				GamesWon:    1,
				LastPlayed:  now.Add(time.Duration(pid) * time.Minute),
			})
		}
	}
	// 256 players with 2 races each covers the best-race-only reduction
	// without needing a larger fixture.

	e := New(Options{Source: &fakeSource{ratings: ratings, players: players}})
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	return e
}

func TestQuery_BestRaceOnlyAppliedBeforeOtherFilters(t *testing.T) {
	e := newFixture(t)

	all := e.Query(Filters{BestRaceOnly: true}, 1, MaxPageSize)
	// 256 distinct players -> capped at MaxRows for totals, but TotalRows
	// should reflect 256 since that's under the cap.
	if all.TotalRows != 256 {
		t.Fatalf("TotalRows = %d, want 256", all.TotalRows)
	}

	var sum int
	for _, tier := range []models.RankTier{models.TierS, models.TierA, models.TierB, models.TierC, models.TierD, models.TierE, models.TierF} {
		p := e.Query(Filters{BestRaceOnly: true, Rank: tier}, 1, MaxPageSize)
		sum += p.TotalRows
	}
	if sum != 256 {
		t.Errorf("sum of per-rank best-race-only counts = %d, want 256", sum)
	}
}

func TestQuery_PaginationCaps(t *testing.T) {
	e := newFixture(t)

	p := e.Query(Filters{}, 1, 1000)
	if p.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want capped at %d", p.PageSize, MaxPageSize)
	}
	if len(p.Rows) > MaxPageSize {
		t.Errorf("returned %d rows, want at most %d", len(p.Rows), MaxPageSize)
	}
	if p.TotalPages > MaxPages {
		t.Errorf("TotalPages = %d, want at most %d", p.TotalPages, MaxPages)
	}
}

func TestQuery_CountryFilter(t *testing.T) {
	e := newFixture(t)
	p := e.Query(Filters{Country: "US"}, 1, MaxPageSize)
	for _, row := range p.Rows {
		if row.Country != "US" {
			t.Errorf("row for player %d has country %q, want US", row.PlayerID, row.Country)
		}
	}
}

func TestInvalidate_TriggersRefreshOnNextLoopTick(t *testing.T) {
	e := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.refreshInterval = time.Hour // scheduled tick should not fire during this test
	e.Start(ctx)
	defer e.Close()

	e.Invalidate()
	// Give the loop goroutine a moment to process the invalidation signal.
	time.Sleep(50 * time.Millisecond)

	p := e.Query(Filters{BestRaceOnly: true}, 1, MaxPageSize)
	if p.TotalRows != 256 {
		t.Errorf("after invalidate-driven refresh, TotalRows = %d, want 256", p.TotalRows)
	}
}
