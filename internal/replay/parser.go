// Package replay implements replay ingestion: content hashing for dedup,
// CPU-bound binary parsing offloaded to a worker pool, object storage, and
// recording into the Data Layer. The binary parser is kept behind a small
// interface so the concrete implementation can be swapped; this package
// supplies that implementation using icza/screp, a real Brood War replay
// parser.
package replay

import (
	"fmt"
	"time"

	"github.com/icza/screp/repparser"
)

// Parsed is the subset of a parsed replay the rest of the system needs:
// the in-game duration and the map name as reported by the replay itself
// (which may differ from the matchmaker's assigned map name if a player
// vetoed late or the client substituted a map).
type Parsed struct {
	Duration time.Duration
	MapName  string
}

// Parser is the opaque parse(bytes) collaborator contract replay ingestion
// depends on.
type Parser interface {
	Parse(data []byte) (Parsed, error)
}

// ScrepParser parses StarCraft: Brood War replays via icza/screp. Data that
// screp cannot parse (SC2 replays use a different container format) comes
// back as an error, which Upload reports as a validation failure without
// recording the replay.
type ScrepParser struct{}

func (ScrepParser) Parse(data []byte) (Parsed, error) {
	r, err := repparser.Parse(data)
	if err != nil {
		return Parsed{}, fmt.Errorf("parsing replay: %w", err)
	}
	if r == nil || r.Header == nil {
		return Parsed{}, fmt.Errorf("parsing replay: empty header")
	}
	return Parsed{
		Duration: r.Header.Frames.Duration(),
		MapName:  r.Header.Map,
	}, nil
}
