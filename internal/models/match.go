package models

import "time"

// MatchStatus is the terminal (or pending) state of a Match row.
type MatchStatus string

const (
	MatchPending       MatchStatus = "pending"
	MatchPlayer1Win    MatchStatus = "player_1_win"
	MatchPlayer2Win    MatchStatus = "player_2_win"
	MatchDraw          MatchStatus = "draw"
	MatchAborted       MatchStatus = "aborted"
	MatchConflict      MatchStatus = "conflict"
	MatchTimedOut      MatchStatus = "timed_out"
)

// ReportedResult is a single player's self-reported outcome.
type ReportedResult string

const (
	ResultWin   ReportedResult = "win"
	ResultLoss  ReportedResult = "loss"
	ResultDraw  ReportedResult = "draw"
	ResultAbort ReportedResult = "abort"
)

// Match is keyed by a monotonically increasing integer ID. Created by the
// Matchmaker; its terminal status is set exclusively by the Lifecycle
// Coordinator, and once that status leaves MatchPending no field mutates
// again, except that the Data Layer's ForceConflict recovery path (used
// when an authoritative write exhausts its retries) overwrites a terminal
// status with conflicted.
type Match struct {
	ID int64 `json:"id"`

	Player1ID int64  `json:"player_1_id"`
	Player2ID int64  `json:"player_2_id"`
	Race1     string `json:"race_1"`
	Race2     string `json:"race_2"`

	Map    string `json:"map"`
	Server string `json:"server"`

	Replay1Hash      string     `json:"replay_1_hash,omitempty"`
	Replay1UploadedAt *time.Time `json:"replay_1_uploaded_at,omitempty"`
	Replay2Hash      string     `json:"replay_2_hash,omitempty"`
	Replay2UploadedAt *time.Time `json:"replay_2_uploaded_at,omitempty"`

	Report1 ReportedResult `json:"report_1,omitempty"`
	Report2 ReportedResult `json:"report_2,omitempty"`

	Status MatchStatus `json:"status"`

	Delta1 int `json:"delta_1"`
	Delta2 int `json:"delta_2"`

	CreatedAt time.Time  `json:"created_at"`
	PlayedAt  *time.Time `json:"played_at,omitempty"`
}

// OpponentOf returns the other player's ID given one side of the match.
func (m *Match) OpponentOf(playerID int64) (int64, bool) {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID, true
	case m.Player2ID:
		return m.Player1ID, true
	default:
		return 0, false
	}
}

// RaceOf returns the race the given player selected for this match.
func (m *Match) RaceOf(playerID int64) (string, bool) {
	switch playerID {
	case m.Player1ID:
		return m.Race1, true
	case m.Player2ID:
		return m.Race2, true
	default:
		return "", false
	}
}
