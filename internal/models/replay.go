package models

import "time"

// ReplayArtifact is keyed by its SHA-256 content hash; it is stored once per
// unique hash even though multiple matches may reference it (a collision
// across different matches is a cheating signal, handled by the replay
// ingestion component, not a storage error).
type ReplayArtifact struct {
	Hash string `json:"hash"`

	UploadedAt time.Time `json:"uploaded_at"`
	UploaderID int64     `json:"uploader_id"`

	ParsedDuration time.Duration `json:"parsed_duration"`
	MapName        string        `json:"map_name"`

	// StorageRef is either an object-store URL or a local filesystem path
	// fallback.
	StorageRef string `json:"storage_ref"`
}

// MaxReplaySizeBytes is the upload size ceiling (10 MiB).
const MaxReplaySizeBytes = 10 * 1024 * 1024

// AllowedReplayExtension is the only accepted upload extension, checked
// case-insensitively.
const AllowedReplayExtension = ".sc2replay"
