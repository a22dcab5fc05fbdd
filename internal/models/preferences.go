package models

// Preferences holds a player's last-chosen race set and map-veto set.
// Created on first queue entry; replaced wholesale on every subsequent
// queue entry.
type Preferences struct {
	PlayerID int64 `json:"player_id"`

	// Races is 1-2 elements from the closed race set.
	Races []string `json:"races"`

	// Vetoes is up to 3 map names the player forbids for the next match.
	Vetoes []string `json:"vetoes"`
}
