package matchmaker

import (
	"github.com/rts-ladder/ranked-core/internal/catalog"
	"github.com/rts-ladder/ranked-core/internal/models"
)

// candidatePair is one feasible pair discovered during a wave, scored by
// cost ascending (cheaper pairs are preferred by the greedy acceptance
// pass in tick()).
type candidatePair struct {
	a, b int64
	race string
	cost float64
}

// computeFeasiblePairs enumerates every feasible pair across the snapshot
// and scores each by pairing cost. O(n²) over the wave's queue size, which
// is acceptable since waves are bounded by a 45s period and queue sizes
// stay small relative to that window.
func computeFeasiblePairs(snapshot map[int64]*models.QueueEntry, cat *catalog.Catalog) []candidatePair {
	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}

	var out []candidatePair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			ea, eb := snapshot[a], snapshot[b]
			race, ok := sharedRace(ea, eb)
			if !ok {
				continue
			}
			mmrDiff := abs(ea.MMRByRace[race] - eb.MMRByRace[race])
			pingMs, ok := cat.PingPenalty(ea.Region, eb.Region)
			if !ok {
				continue
			}
			if pingMs > models.AbsolutePingVetoMs {
				continue
			}

			waitA, waitB := ea.WaitCycles, eb.WaitCycles
			window := waitA
			if waitB < window {
				window = waitB
			}
			if mmrDiff > models.MaxMMRDiffForWaitCycles(window) {
				continue
			}
			if pingMs > models.MaxPingPenaltyForWaitCycles(window) {
				continue
			}

			lowMMR := ea.MMRByRace[race]
			if eb.MMRByRace[race] < lowMMR {
				lowMMR = eb.MMRByRace[race]
			}
			cost := pairingCost(mmrDiff, pingMs, lowMMR, window)

			out = append(out, candidatePair{a: a, b: b, race: race, cost: cost})
		}
	}
	return out
}

// sharedRace returns a race both entries selected, preferring the
// lexicographically smallest shared code for determinism when more than
// one race overlaps.
func sharedRace(a, b *models.QueueEntry) (string, bool) {
	var shared string
	found := false
	for _, ra := range a.Races {
		for _, rb := range b.Races {
			if ra == rb {
				if !found || ra < shared {
					shared = ra
					found = true
				}
			}
		}
	}
	return shared, found
}

// pairingCost implements cost = mmr_weight·|mmr_diff| + ping_weight·ping,
// with weights bucketed by the lower of the two MMRs and ping_weight
// attenuated by wait cycles.
func pairingCost(mmrDiff, pingMs, lowMMR, waitCycles int) float64 {
	var mmrWeight, pingWeight float64
	switch {
	case lowMMR < 1200:
		pingWeight, mmrWeight = 0.75, 0.25
	case lowMMR <= 1800:
		pingWeight, mmrWeight = 0.50, 0.50
	default:
		pingWeight, mmrWeight = 0.25, 0.75
	}

	attenuation := 1.0 - minFloat(0.3, 0.1*float64(waitCycles))
	pingWeight *= attenuation

	return mmrWeight*float64(mmrDiff) + pingWeight*float64(pingMs)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
