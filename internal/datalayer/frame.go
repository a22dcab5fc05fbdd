package datalayer

import (
	"strconv"

	"github.com/rts-ladder/ranked-core/internal/models"
)

// frame is an immutable, copy-on-write snapshot of every in-memory table
// the Data Layer serves reads from. Writers build a new frame and swap the
// shared pointer under an exclusive lock; readers dereference the pointer
// and never wait.
type frame struct {
	players map[int64]*models.Player

	// ratings is keyed by "<playerID>#<raceCode>" (see ratingKey).
	ratings map[string]*models.RatingRow

	preferences map[int64]*models.Preferences

	matches map[int64]*models.Match

	// replaysByHash detects cross-match hash collisions: two different
	// matches referencing the same hash is a cheating signal, not a
	// storage error.
	replaysByHash map[string]*models.ReplayArtifact

	nextMatchID int64
}

func emptyFrame() *frame {
	return &frame{
		players:       make(map[int64]*models.Player),
		ratings:       make(map[string]*models.RatingRow),
		preferences:   make(map[int64]*models.Preferences),
		matches:       make(map[int64]*models.Match),
		replaysByHash: make(map[string]*models.ReplayArtifact),
		nextMatchID:   1,
	}
}

// clone produces a shallow copy of every map so a single mutation can be
// applied to the copy without disturbing concurrent readers of the
// previous snapshot. Individual entity values are replaced wholesale
// (never mutated in place) so readers holding an old frame never observe a
// torn write.
func (f *frame) clone() *frame {
	nf := &frame{
		players:       make(map[int64]*models.Player, len(f.players)),
		ratings:       make(map[string]*models.RatingRow, len(f.ratings)),
		preferences:   make(map[int64]*models.Preferences, len(f.preferences)),
		matches:       make(map[int64]*models.Match, len(f.matches)),
		replaysByHash: make(map[string]*models.ReplayArtifact, len(f.replaysByHash)),
		nextMatchID:   f.nextMatchID,
	}
	for k, v := range f.players {
		nf.players[k] = v
	}
	for k, v := range f.ratings {
		nf.ratings[k] = v
	}
	for k, v := range f.preferences {
		nf.preferences[k] = v
	}
	for k, v := range f.matches {
		nf.matches[k] = v
	}
	for k, v := range f.replaysByHash {
		nf.replaysByHash[k] = v
	}
	return nf
}

// ratingKey joins a playerID and race code with a delimiter that cannot
// collide with either component.
func ratingKey(playerID int64, race string) string {
	return strconv.FormatInt(playerID, 10) + "#" + race
}
