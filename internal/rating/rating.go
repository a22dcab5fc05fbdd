// Package rating implements the pure, stateless Elo-variant rating update
// and percentile-based rank-tier assignment. Every function here is
// deterministic and side-effect free; callers (the Match Lifecycle
// Coordinator) own persistence.
package rating

import (
	"math"
	"sort"

	"github.com/rts-ladder/ranked-core/internal/models"
)

// Divisor is the logistic divisor used in the expected-score formula.
// Conventional Elo uses 400; this ladder uses 500.
const Divisor = 500.0

// KFactor is the fixed update magnitude constant.
const KFactor = 40

// Expected returns side A's expected score against side B given their MMRs.
func Expected(mmrA, mmrB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(mmrB-mmrA)/Divisor))
}

// roundHalfAwayFromZero rounds a float to the nearest integer, with ties
// (x.5) rounding away from zero rather than banker's rounding.
func roundHalfAwayFromZero(x float64) int {
	if x >= 0 {
		return int(math.Floor(x + 0.5))
	}
	return int(math.Ceil(x - 0.5))
}

// Outcome is the result of a single match from one side's perspective.
type Outcome float64

const (
	OutcomeWin  Outcome = 1.0
	OutcomeLoss Outcome = 0.0
	OutcomeDraw Outcome = 0.5
)

// Delta computes the signed MMR change for a player with mmrSelf facing an
// opponent with mmrOpponent, given the actual outcome.
func Delta(mmrSelf, mmrOpponent int, outcome Outcome) int {
	expected := Expected(mmrSelf, mmrOpponent)
	return roundHalfAwayFromZero(KFactor * (float64(outcome) - expected))
}

// WinLossDeltas returns (winnerDelta, loserDelta) for a decisive match. The
// two deltas are not required to be exact negatives of each other in
// general Elo, but this function takes the winner's delta as the
// authoritative magnitude and returns the loser's as its negation so
// decisive results are always zero-sum.
func WinLossDeltas(winnerMMR, loserMMR int) (winnerDelta, loserDelta int) {
	winnerDelta = Delta(winnerMMR, loserMMR, OutcomeWin)
	loserDelta = -winnerDelta
	return winnerDelta, loserDelta
}

// DrawDeltas returns the (symmetric-in-formula, opposite-in-sign) deltas
// for a draw between two MMRs. Side A's delta is computed from its own
// perspective and side B's is its exact negation, preserving property #5;
// since B's expected score is 1 minus A's and rounding is symmetric about
// zero, this equals the delta B would get from its own perspective.
func DrawDeltas(mmrA, mmrB int) (deltaA, deltaB int) {
	deltaA = Delta(mmrA, mmrB, OutcomeDraw)
	deltaB = -deltaA
	return deltaA, deltaB
}

// Tier is an alias kept for readability at call sites; the canonical type
// lives in models so the Leaderboard Engine and Rating Engine agree on it.
type Tier = models.RankTier

// RankableRow is the minimal shape the tier-assignment function needs.
type RankableRow struct {
	MMR         int
	GamesPlayed int
	// CreatedOrder breaks position ties deterministically, by row
	// creation order.
	CreatedOrder int64
}

// AssignTiers takes a slice of rankable rows and returns a parallel slice of
// tiers, one per input row, using the row's position in the MMR-descending,
// creation-order-tiebroken ranking.
func AssignTiers(rows []RankableRow) []Tier {
	n := len(rows)
	tiers := make([]Tier, n)

	ranked := make([]int, 0, n)
	for i, r := range rows {
		if r.GamesPlayed == 0 {
			tiers[i] = models.TierU
			continue
		}
		ranked = append(ranked, i)
	}

	sort.Slice(ranked, func(a, b int) bool {
		ra, rb := rows[ranked[a]], rows[ranked[b]]
		if ra.MMR != rb.MMR {
			return ra.MMR > rb.MMR
		}
		return ra.CreatedOrder < rb.CreatedOrder
	})

	total := len(ranked)
	for pos, idx := range ranked {
		percentile := float64(pos) / float64(total) * 100.0
		tiers[idx] = tierForPercentile(percentile)
	}
	return tiers
}

// tierForPercentile maps a 0-based percentile position (0 = best) to a
// tier per the boundaries: top 1%=S, 1-8%=A, 8-29%=B, 29-50%=C, 50-71%=D,
// 71-92%=E, 92-100%=F.
func tierForPercentile(p float64) Tier {
	switch {
	case p < 1:
		return models.TierS
	case p < 8:
		return models.TierA
	case p < 29:
		return models.TierB
	case p < 50:
		return models.TierC
	case p < 71:
		return models.TierD
	case p < 92:
		return models.TierE
	default:
		return models.TierF
	}
}
