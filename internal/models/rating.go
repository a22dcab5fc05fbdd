package models

import "time"

// InitialMMR is the midpoint MMR assigned the first time a player has a
// rating row created for a given race.
const InitialMMR = 1200

// RatingRow is one per (Player, RaceCode) pair. Created lazily on first
// match in that race; mutated exclusively by match finalization.
type RatingRow struct {
	PlayerID int64  `json:"player_id"`
	RaceCode string `json:"race_code"`

	MMR int `json:"mmr"`

	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`
	GamesLost   int `json:"games_lost"`
	GamesDrawn  int `json:"games_drawn"`

	LastPlayed time.Time `json:"last_played"`
}

// NewRatingRow constructs a freshly-created rating row at the initial MMR.
func NewRatingRow(playerID int64, race string) *RatingRow {
	return &RatingRow{
		PlayerID: playerID,
		RaceCode: race,
		MMR:      InitialMMR,
	}
}

// RankTier is the percentile bucket assigned by the rating engine.
type RankTier string

const (
	TierS RankTier = "S"
	TierA RankTier = "A"
	TierB RankTier = "B"
	TierC RankTier = "C"
	TierD RankTier = "D"
	TierE RankTier = "E"
	TierF RankTier = "F"
	TierU RankTier = "U" // unranked: 0 games or no rating row
)
