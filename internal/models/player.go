package models

import "time"

// Player is keyed by an immutable external user ID from the chat platform.
// Owned by the Data Layer; created on first guarded interaction, mutated
// only by explicit setup/country/ToS/activation flows and by match
// finalization (the abort counter).
type Player struct {
	ID int64 `json:"id"`

	DisplayName string `json:"display_name"`
	BattleTag   string `json:"battle_tag,omitempty"`
	AltName1    string `json:"alt_name_1,omitempty"`
	AltName2    string `json:"alt_name_2,omitempty"`

	Country string `json:"country"` // ISO2, or sentinel XX/ZZ
	Region  string `json:"region"`  // one of the 16 closed region codes

	AcceptedToS    bool `json:"accepted_tos"`
	CompletedSetup bool `json:"completed_setup"`
	Activated      bool `json:"activated"`

	AbortQuota        int       `json:"abort_quota"`
	AbortQuotaResetAt time.Time `json:"abort_quota_reset_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// AcceptedToSDate and CompletedSetupDate are write-once: the writer
	// pattern is COALESCE(existing, new), never overwritten once non-null.
	AcceptedToSDate    *time.Time `json:"accepted_tos_date,omitempty"`
	CompletedSetupDate *time.Time `json:"completed_setup_date,omitempty"`
}

// DefaultAbortQuota is the monthly abort allowance, restored on rollover.
const DefaultAbortQuota = 3

// NewPlayer constructs the minimal record created the first time a player
// passes any command guard.
func NewPlayer(id int64, now time.Time) *Player {
	return &Player{
		ID:                id,
		Country:           "XX",
		AbortQuota:        DefaultAbortQuota,
		AbortQuotaResetAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
