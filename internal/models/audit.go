package models

import "time"

// CommandCallAudit is one row per invocation of a command-surface handler.
// Like ActionLogEntry, this is analytics-grade: the Data Layer never blocks
// a caller on its durability.
type CommandCallAudit struct {
	ID        int64     `json:"id"`
	PlayerID  int64     `json:"player_id"`
	Command   string    `json:"command"`
	Args      string    `json:"args,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
