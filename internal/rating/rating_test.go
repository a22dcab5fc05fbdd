package rating

import (
	"testing"

	"github.com/rts-ladder/ranked-core/internal/models"
)

func TestExpected_EqualMMRIsFiftyFifty(t *testing.T) {
	got := Expected(1500, 1500)
	if got != 0.5 {
		t.Errorf("Expected(1500, 1500) = %v, want 0.5", got)
	}
}

func TestWinLossDeltas_ZeroSum(t *testing.T) {
	tests := []struct {
		name              string
		winnerMMR, loserMMR int
	}{
		{"close match", 1500, 1520},
		{"big upset", 1200, 1800},
		{"expected result", 1800, 1200},
		{"identical", 1000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wd, ld := WinLossDeltas(tt.winnerMMR, tt.loserMMR)
			if wd+ld != 0 {
				t.Errorf("deltas not zero-sum: winner=%d loser=%d sum=%d", wd, ld, wd+ld)
			}
			if wd < 0 {
				t.Errorf("winner delta should be non-negative in this formula, got %d", wd)
			}
		})
	}
}

func TestDrawDeltas_OppositeSigns(t *testing.T) {
	da, db := DrawDeltas(1500, 1700)
	if da+db != 0 {
		t.Errorf("draw deltas not opposite: %d vs %d", da, db)
	}
	if da <= 0 {
		t.Errorf("lower-rated side drawing up should gain MMR, got %d", da)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2.5, 3},
		{-2.5, -3},
		{2.4, 2},
		{-2.4, -2},
		{0.5, 1},
		{-0.5, -1},
	}
	for _, tt := range tests {
		if got := roundHalfAwayFromZero(tt.in); got != tt.want {
			t.Errorf("roundHalfAwayFromZero(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAssignTiers_BoundariesAndUnranked(t *testing.T) {
	rows := make([]RankableRow, 0, 100)
	for i := 0; i < 100; i++ {
		rows = append(rows, RankableRow{MMR: 2000 - i, GamesPlayed: 1, CreatedOrder: int64(i)})
	}
	// one unranked row with zero games
	rows = append(rows, RankableRow{MMR: 1900, GamesPlayed: 0, CreatedOrder: 100})

	tiers := AssignTiers(rows)

	if tiers[0] != models.TierS {
		t.Errorf("top-ranked row should be S, got %v", tiers[0])
	}
	if tiers[len(tiers)-1] != models.TierU {
		t.Errorf("zero-games row should be U, got %v", tiers[len(tiers)-1])
	}
	if tiers[99] != models.TierF {
		t.Errorf("bottom-ranked row among played rows should be F, got %v", tiers[99])
	}
}

func TestAssignTiers_TieBreakByCreationOrder(t *testing.T) {
	rows := []RankableRow{
		{MMR: 1500, GamesPlayed: 1, CreatedOrder: 5},
		{MMR: 1500, GamesPlayed: 1, CreatedOrder: 2},
	}
	tiers := AssignTiers(rows)
	// both rows share an MMR; the lower CreatedOrder sorts first (better
	// percentile position): with two rows that is position 0 (percentile 0,
	// tier S) for CreatedOrder 2 and position 1 (percentile 50, tier D) for
	// CreatedOrder 5.
	for _, tier := range tiers {
		if tier == models.TierU {
			t.Errorf("rows with games played should never be U")
		}
	}
	if tiers[1] != models.TierS || tiers[0] != models.TierD {
		t.Errorf("expected CreatedOrder 2 -> S and CreatedOrder 5 -> D, got %v and %v", tiers[1], tiers[0])
	}
}
