package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/notify"
	"github.com/rts-ladder/ranked-core/internal/objectstore"
	"github.com/rts-ladder/ranked-core/internal/workerpool"
)

// DataLayer is the subset of internal/datalayer.Layer replay ingestion
// needs: recording the artifact (which itself performs the cross-match
// hash-collision check) and reading match participants so
// replay_uploaded can be published symmetrically.
type DataLayer interface {
	RecordReplay(ctx context.Context, matchID, uploaderID int64, artifact *models.ReplayArtifact, now time.Time) error
	GetMatch(id int64) (*models.Match, bool)
	ReplayHashConflict(hash string, matchID int64) bool
}

// Conflicter is the narrow lifecycle.Coordinator surface ingestion needs
// to resolve a cross-match hash collision to a terminal conflicted state.
type Conflicter interface {
	MarkReplayConflict(ctx context.Context, matchID int64, now time.Time)
}

// Ingestor offloads binary parsing to a bounded worker pool, deduplicates
// by content hash, stores the artifact, and records it in the Data Layer.
type Ingestor struct {
	parser     Parser
	pool       *workerpool.Pool
	store      objectstore.Store
	data       DataLayer
	coordinator Conflicter
	bus        *notify.Bus
	logger     *zap.SugaredLogger
}

// Options configures New.
type Options struct {
	Parser      Parser
	Pool        *workerpool.Pool
	Store       objectstore.Store
	Data        DataLayer
	Coordinator Conflicter
	Bus         *notify.Bus
	Logger      *zap.SugaredLogger
}

// New constructs an Ingestor. A nil Parser defaults to ScrepParser{}.
func New(opts Options) *Ingestor {
	parser := opts.Parser
	if parser == nil {
		parser = ScrepParser{}
	}
	return &Ingestor{
		parser:      parser,
		pool:        opts.Pool,
		store:       opts.Store,
		data:        opts.Data,
		coordinator: opts.Coordinator,
		bus:         opts.Bus,
		logger:      opts.Logger,
	}
}

// Validate enforces the upload guards: extension and size, checked
// before any hashing or parsing work begins.
func Validate(filename string, size int) error {
	if !strings.EqualFold(filepath.Ext(filename), models.AllowedReplayExtension) {
		return apperr.Validation("replay file must have a "+models.AllowedReplayExtension+" extension", nil)
	}
	if size > models.MaxReplaySizeBytes {
		return apperr.Validation("replay file exceeds the 10 MiB upload limit", nil)
	}
	return nil
}

// Upload ingests one participant's replay binary for matchID. On success
// it returns the stored artifact and has already published replay_uploaded
// to both participants. The content hash is checked against other matches
// before anything is parsed or written to the object store, so a collision
// never gets stored: it resolves the current match to conflicted (via
// Conflicter), publishes nothing itself (the terminal conflicted event
// covers it), and returns apperr.Conflict. RecordReplay repeats the same
// check at record time as a race-safety net against a concurrent upload
// that slipped past the first check.
func (in *Ingestor) Upload(ctx context.Context, matchID, uploaderID int64, filename string, data []byte, now time.Time) (*models.ReplayArtifact, error) {
	if err := Validate(filename, len(data)); err != nil {
		return nil, err
	}

	hash := contentHash(data)

	if in.data.ReplayHashConflict(hash, matchID) {
		if in.coordinator != nil {
			in.coordinator.MarkReplayConflict(ctx, matchID, now)
		}
		return nil, apperr.Conflict("replay hash already associated with a different match", nil)
	}

	var parsed Parsed
	parseFn := func(ctx context.Context) error {
		p, err := in.parser.Parse(data)
		if err != nil {
			return err
		}
		parsed = p
		return nil
	}
	var err error
	if in.pool != nil {
		err = in.pool.Submit(ctx, parseFn)
	} else {
		err = parseFn(ctx)
	}
	if err != nil {
		return nil, apperr.Validation("replay failed to parse", err)
	}

	ext := filepath.Ext(filename)
	ref, err := in.store.Put(ctx, objectstore.Key(matchID, uploaderID, ext), data)
	if err != nil {
		return nil, apperr.Upstream("storing replay artifact", err)
	}

	artifact := &models.ReplayArtifact{
		Hash:           hash,
		UploadedAt:     now,
		UploaderID:     uploaderID,
		ParsedDuration: parsed.Duration,
		MapName:        parsed.MapName,
		StorageRef:     ref,
	}

	if err := in.data.RecordReplay(ctx, matchID, uploaderID, artifact, now); err != nil {
		if apperr.Is(err, apperr.KindConflict) && in.coordinator != nil {
			in.coordinator.MarkReplayConflict(ctx, matchID, now)
		}
		return nil, err
	}

	if in.bus != nil {
		if m, ok := in.data.GetMatch(matchID); ok {
			payload := map[string]interface{}{"uploader_id": uploaderID, "hash": hash}
			in.bus.Publish(notify.MatchEvent{Kind: notify.EventReplayUploaded, MatchID: matchID, ParticipantID: m.Player1ID, Payload: payload})
			in.bus.Publish(notify.MatchEvent{Kind: notify.EventReplayUploaded, MatchID: matchID, ParticipantID: m.Player2ID, Payload: payload})
		}
	}

	return artifact, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
