// Package datalayer implements the process-wide, write-through in-memory
// Data Layer singleton. Reads are lock-free against copy-on-write
// snapshots; writes are queued to a single background worker that
// persists them durably while the in-memory mirror is updated
// synchronously at submission time, giving read-after-write consistency
// within the process.
package datalayer

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/store"
)

// InvalidationHook is called whenever a mutation should invalidate the
// Leaderboard Engine's cached view. The Data Layer itself does not know
// how to refresh the leaderboard; it only signals.
type InvalidationHook func()

// Layer is the Data Layer singleton. Construct with Open.
type Layer struct {
	snapshot atomic.Pointer[frame]
	mu       sync.Mutex // guards read-modify-write on the frame pointer

	store   store.Store
	dialect store.Dialect
	writer  *writer
	logger  *zap.SugaredLogger

	mirror *analyticsMirror

	onInvalidate InvalidationHook

	matchIDMu sync.Mutex
}

// Options configures Open.
type Options struct {
	Store            store.Store
	Dialect          store.Dialect
	QueueSize        int
	FailedWritesPath string
	Logger           *zap.SugaredLogger
	OnInvalidate     InvalidationHook
	Mirror           AnalyticsSink // optional ClickHouse (or no-op) mirror
}

// Open constructs the Data Layer, eagerly loading every reference table
// from the durable store into the initial frame. Construction blocks until
// that load finishes.
func Open(ctx context.Context, opts Options) (*Layer, error) {
	w, err := newWriter(opts.QueueSize, opts.Store, opts.FailedWritesPath, opts.Logger)
	if err != nil {
		return nil, err
	}

	l := &Layer{
		store:        opts.Store,
		dialect:      opts.Dialect,
		writer:       w,
		logger:       opts.Logger,
		onInvalidate: opts.OnInvalidate,
		mirror:       newAnalyticsMirror(opts.Mirror, opts.Logger),
	}
	l.snapshot.Store(emptyFrame())

	if err := l.loadFromStore(ctx); err != nil {
		return nil, err
	}

	w.start()
	return l, nil
}

// Shutdown drains the write queue as part of graceful process shutdown.
func (l *Layer) Shutdown(timeout time.Duration) {
	l.writer.drain(timeout)
	l.mirror.close()
}

func (l *Layer) current() *frame { return l.snapshot.Load() }

// swap applies mutate to a clone of the current frame and atomically
// installs the result. Callers hold l.mu for the duration so concurrent
// writers serialize; readers never block. Writers hold an exclusive lock
// only for the duration of one snapshot swap.
func (l *Layer) swap(mutate func(*frame)) *frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	nf := l.current().clone()
	mutate(nf)
	l.snapshot.Store(nf)
	return nf
}

// ---- reads ----

// GetPlayer returns the player by ID, or ErrNotFound semantics via the
// second return value.
func (l *Layer) GetPlayer(id int64) (*models.Player, bool) {
	p, ok := l.current().players[id]
	return p, ok
}

// GetRatingsFor returns every rating row the player has across all races.
func (l *Layer) GetRatingsFor(playerID int64) []*models.RatingRow {
	f := l.current()
	out := make([]*models.RatingRow, 0, 2)
	prefix := strconv.FormatInt(playerID, 10) + "#"
	for k, r := range f.ratings {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, r)
		}
	}
	return out
}

// GetRating returns the rating row for (playerID, race), if any.
func (l *Layer) GetRating(playerID int64, race string) (*models.RatingRow, bool) {
	r, ok := l.current().ratings[ratingKey(playerID, race)]
	return r, ok
}

// GetMatch returns the match by ID.
func (l *Layer) GetMatch(id int64) (*models.Match, bool) {
	m, ok := l.current().matches[id]
	return m, ok
}

// GetPreferences returns the player's last-saved preferences.
func (l *Layer) GetPreferences(playerID int64) (*models.Preferences, bool) {
	p, ok := l.current().preferences[playerID]
	return p, ok
}

// PendingMatchIDs returns every match still awaiting reports, for the
// periodic timeout sweep to check against the match timeout.
func (l *Layer) PendingMatchIDs() []int64 {
	f := l.current()
	out := make([]int64, 0, len(f.matches))
	for id, m := range f.matches {
		if m.Status == models.MatchPending {
			out = append(out, id)
		}
	}
	return out
}

// AllRatings is used by the Leaderboard Engine's refresh path to snapshot
// every rating row at once.
func (l *Layer) AllRatings() []*models.RatingRow {
	f := l.current()
	out := make([]*models.RatingRow, 0, len(f.ratings))
	for _, r := range f.ratings {
		out = append(out, r)
	}
	return out
}

// AllPlayers is used by the Leaderboard Engine to resolve display metadata
// (country) for each ranked row.
func (l *Layer) AllPlayers() map[int64]*models.Player {
	f := l.current()
	out := make(map[int64]*models.Player, len(f.players))
	for k, v := range f.players {
		out[k] = v
	}
	return out
}

// ---- player mutations ----

// UpsertPlayer creates the player record if absent (first guarded
// interaction). Returns the resulting record.
func (l *Layer) UpsertPlayer(ctx context.Context, id int64, now time.Time) *models.Player {
	var result *models.Player
	l.swap(func(f *frame) {
		if existing, ok := f.players[id]; ok {
			result = existing
			return
		}
		p := models.NewPlayer(id, now)
		f.players[id] = p
		result = p
		l.writer.enqueue(WriteJob{
			Description: "insert player",
			Payload:     map[string]interface{}{"player_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execInsertPlayer(ctx, s, l.dialect, p)
			},
		})
	})
	return result
}

// CompleteSetup applies a /setup command: updates identity fields and, if
// this is the first time, sets the write-once CompletedSetupDate.
func (l *Layer) CompleteSetup(ctx context.Context, req models.SetupRequest, id int64, now time.Time) (*models.Player, error) {
	var result *models.Player
	var logEntries []models.ActionLogEntry

	l.swap(func(f *frame) {
		p, ok := f.players[id]
		if !ok {
			p = models.NewPlayer(id, now)
			f.players[id] = p
		}
		next := *p
		logEntries = append(logEntries, diffField(id, "display_name", p.DisplayName, req.DisplayName, now)...)
		logEntries = append(logEntries, diffField(id, "battle_tag", p.BattleTag, req.BattleTag, now)...)
		logEntries = append(logEntries, diffField(id, "country", p.Country, req.Country, now)...)
		logEntries = append(logEntries, diffField(id, "region", p.Region, req.Region, now)...)

		next.DisplayName = req.DisplayName
		next.BattleTag = req.BattleTag
		next.AltName1 = req.AltName1
		next.AltName2 = req.AltName2
		next.Country = req.Country
		next.Region = req.Region
		next.CompletedSetup = true
		if next.CompletedSetupDate == nil {
			t := now
			next.CompletedSetupDate = &t
		}
		next.UpdatedAt = now
		f.players[id] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description: "update player setup",
			Payload:     map[string]interface{}{"player_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertPlayer(ctx, s, l.dialect, &next)
			},
		})
	})

	l.logActions(logEntries)
	return result, nil
}

// UpdateCountry updates a player's country and records an action-log
// entry with the old and new value.
func (l *Layer) UpdateCountry(ctx context.Context, id int64, code string, now time.Time) (*models.Player, error) {
	var result *models.Player
	var logEntries []models.ActionLogEntry

	l.swap(func(f *frame) {
		p, ok := f.players[id]
		if !ok {
			p = models.NewPlayer(id, now)
		}
		next := *p
		logEntries = diffField(id, "country", p.Country, code, now)
		next.Country = code
		next.UpdatedAt = now
		f.players[id] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description: "update player country",
			Payload:     map[string]interface{}{"player_id": id, "country": code},
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertPlayer(ctx, s, l.dialect, &next)
			},
		})
	})

	l.logActions(logEntries)
	return result, nil
}

// AcceptToS sets the write-once AcceptedToSDate and AcceptedToS flag.
func (l *Layer) AcceptToS(ctx context.Context, id int64, now time.Time) (*models.Player, error) {
	var result *models.Player
	l.swap(func(f *frame) {
		p, ok := f.players[id]
		if !ok {
			p = models.NewPlayer(id, now)
		}
		next := *p
		next.AcceptedToS = true
		if next.AcceptedToSDate == nil {
			t := now
			next.AcceptedToSDate = &t
		}
		next.UpdatedAt = now
		f.players[id] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description: "accept tos",
			Payload:     map[string]interface{}{"player_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertPlayer(ctx, s, l.dialect, &next)
			},
		})
	})
	return result, nil
}

// Activate sets the one-shot Activated flag.
func (l *Layer) Activate(ctx context.Context, id int64, now time.Time) (*models.Player, error) {
	var result *models.Player
	l.swap(func(f *frame) {
		p, ok := f.players[id]
		if !ok {
			p = models.NewPlayer(id, now)
		}
		next := *p
		next.Activated = true
		next.UpdatedAt = now
		f.players[id] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description: "activate player",
			Payload:     map[string]interface{}{"player_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertPlayer(ctx, s, l.dialect, &next)
			},
		})
	})
	return result, nil
}

// SavePreferences replaces a player's preferences wholesale.
func (l *Layer) SavePreferences(ctx context.Context, playerID int64, races, vetoes []string) {
	prefs := &models.Preferences{PlayerID: playerID, Races: races, Vetoes: vetoes}
	l.swap(func(f *frame) {
		f.preferences[playerID] = prefs
	})
	l.writer.enqueue(WriteJob{
		Description: "save preferences",
		Payload:     map[string]interface{}{"player_id": playerID},
		Apply: func(ctx context.Context, s store.Store) error {
			return execUpsertPreferences(ctx, s, l.dialect, prefs)
		},
	})
}

// CheckAndConsumeAbortQuota applies the monthly rollover rule (reset to
// DefaultAbortQuota on the first abort after a calendar month boundary)
// and, iff quota remains, decrements it. Returns apperr.Quota if exhausted.
func (l *Layer) CheckAndConsumeAbortQuota(id int64, now time.Time) error {
	var quotaErr error
	l.swap(func(f *frame) {
		p, ok := f.players[id]
		if !ok {
			quotaErr = apperr.NotFound("player not found", nil)
			return
		}
		next := *p
		if monthsDiffer(next.AbortQuotaResetAt, now) {
			next.AbortQuota = models.DefaultAbortQuota
			next.AbortQuotaResetAt = now
		}
		if next.AbortQuota <= 0 {
			quotaErr = apperr.Quota("abort quota exhausted", nil)
			return
		}
		next.AbortQuota--
		next.UpdatedAt = now
		f.players[id] = &next

		l.writer.enqueue(WriteJob{
			Description: "decrement abort quota",
			Payload:     map[string]interface{}{"player_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertPlayer(ctx, s, l.dialect, &next)
			},
		})
	})
	return quotaErr
}

func monthsDiffer(a, b time.Time) bool {
	return a.Year() != b.Year() || a.Month() != b.Month()
}

// diffField returns zero or one ActionLogEntry depending on whether the
// value actually changed.
func diffField(playerID int64, field, old, new string, now time.Time) []models.ActionLogEntry {
	if old == new {
		return nil
	}
	return []models.ActionLogEntry{{
		PlayerID:  playerID,
		Field:     field,
		OldValue:  old,
		NewValue:  new,
		Timestamp: now,
		Source:    models.SourceUser,
	}}
}

func (l *Layer) logActions(entries []models.ActionLogEntry) {
	for _, e := range entries {
		entry := e
		l.writer.enqueue(WriteJob{
			Description: "action log entry",
			Payload:     map[string]interface{}{"player_id": entry.PlayerID, "field": entry.Field},
			Apply: func(ctx context.Context, s store.Store) error {
				return execInsertActionLog(ctx, s, l.dialect, entry)
			},
		})
		l.mirror.recordAction(entry)
	}
}

// RecordCommandAudit writes one analytics-grade row per command
// invocation.
func (l *Layer) RecordCommandAudit(playerID int64, command string, args map[string]interface{}, now time.Time) {
	argsJSON, _ := json.Marshal(args)
	entry := models.CommandCallAudit{
		PlayerID:  playerID,
		Command:   command,
		Args:      string(argsJSON),
		Timestamp: now,
	}
	l.writer.enqueue(WriteJob{
		Description: "command call audit",
		Payload:     map[string]interface{}{"player_id": playerID, "command": command},
		Apply: func(ctx context.Context, s store.Store) error {
			return execInsertCommandAudit(ctx, s, l.dialect, entry)
		},
	})
	l.mirror.recordCommandAudit(entry)
}

// ---- match lifecycle ----

// CreateMatch assigns the next monotonic match ID and inserts a pending
// Match row.
func (l *Layer) CreateMatch(ctx context.Context, m *models.Match, now time.Time) int64 {
	l.matchIDMu.Lock()
	defer l.matchIDMu.Unlock()

	var id int64
	l.swap(func(f *frame) {
		id = f.nextMatchID
		f.nextMatchID++
		m.ID = id
		m.Status = models.MatchPending
		m.CreatedAt = now
		f.matches[id] = m

		l.writer.enqueue(WriteJob{
			Description: "insert match",
			Payload:     map[string]interface{}{"match_id": id},
			Apply: func(ctx context.Context, s store.Store) error {
				return execInsertMatch(ctx, s, l.dialect, m)
			},
		})
	})
	return id
}

// RecordReplay is idempotent on (match_id, uploader_id): a second upload
// from the same uploader for the same match overwrites the pointer.
// Returns apperr.Conflict if hash collides with a different match.
func (l *Layer) RecordReplay(ctx context.Context, matchID, uploaderID int64, artifact *models.ReplayArtifact, now time.Time) error {
	var conflictErr error
	l.swap(func(f *frame) {
		if existing, ok := f.replaysByHash[artifact.Hash]; ok {
			if !hashBelongsToMatch(f, existing.Hash, matchID) {
				conflictErr = apperr.Conflict("replay hash already associated with a different match", nil)
				return
			}
		}
		f.replaysByHash[artifact.Hash] = artifact

		m, ok := f.matches[matchID]
		if !ok {
			return
		}
		next := *m
		switch uploaderID {
		case m.Player1ID:
			next.Replay1Hash = artifact.Hash
			next.Replay1UploadedAt = &now
		case m.Player2ID:
			next.Replay2Hash = artifact.Hash
			next.Replay2UploadedAt = &now
		}
		f.matches[matchID] = &next

		l.writer.enqueue(WriteJob{
			Description: "insert replay artifact",
			Payload:     map[string]interface{}{"hash": artifact.Hash, "match_id": matchID},
			Apply: func(ctx context.Context, s store.Store) error {
				if err := execInsertReplayArtifact(ctx, s, l.dialect, artifact); err != nil {
					return err
				}
				return execUpdateMatchReplay(ctx, s, l.dialect, &next)
			},
		})
	})
	return conflictErr
}

func hashBelongsToMatch(f *frame, hash string, matchID int64) bool {
	m, ok := f.matches[matchID]
	if !ok {
		return false
	}
	return m.Replay1Hash == hash || m.Replay2Hash == hash
}

// ReplayHashConflict reports whether hash is already recorded against a
// match other than matchID, without mutating anything. Ingestion calls this
// before uploading to the object store so a colliding replay is never
// stored, matching RecordReplay's own collision check.
func (l *Layer) ReplayHashConflict(hash string, matchID int64) bool {
	f := l.current()
	if _, ok := f.replaysByHash[hash]; !ok {
		return false
	}
	return !hashBelongsToMatch(f, hash, matchID)
}

// RecordReport stores one participant's self-reported result.
func (l *Layer) RecordReport(matchID, playerID int64, result models.ReportedResult) (*models.Match, error) {
	var out *models.Match
	var stateErr error
	l.swap(func(f *frame) {
		m, ok := f.matches[matchID]
		if !ok {
			stateErr = apperr.NotFound("match not found", nil)
			return
		}
		if m.Status != models.MatchPending && m.Status != "awaiting_reports" {
			stateErr = apperr.State("match is no longer accepting reports", nil)
			return
		}
		next := *m
		switch playerID {
		case m.Player1ID:
			next.Report1 = result
		case m.Player2ID:
			next.Report2 = result
		default:
			stateErr = apperr.Validation("player is not a participant in this match", nil)
			return
		}
		f.matches[matchID] = &next
		out = &next
	})
	return out, stateErr
}

// FinalizeMatch is atomic within the in-memory frame: only valid when the
// current status is pending (or the transitional awaiting_reports state);
// subsequent calls are no-ops, so a losing racer in a concurrent
// transition simply observes the already-set terminal state.
func (l *Layer) FinalizeMatch(ctx context.Context, matchID int64, status models.MatchStatus, delta1, delta2 int, now time.Time, onFinalFailure func()) (*models.Match, bool) {
	var result *models.Match
	var applied bool

	l.swap(func(f *frame) {
		m, ok := f.matches[matchID]
		if !ok {
			return
		}
		if isTerminal(m.Status) {
			result = m
			return
		}
		next := *m
		next.Status = status
		next.Delta1 = delta1
		next.Delta2 = delta2
		next.PlayedAt = &now
		f.matches[matchID] = &next
		result = &next
		applied = true

		l.writer.enqueue(WriteJob{
			Description:   "finalize match",
			Payload:       map[string]interface{}{"match_id": matchID, "status": string(status)},
			Authoritative: true,
			Apply: func(ctx context.Context, s store.Store) error {
				return execFinalizeMatch(ctx, s, l.dialect, &next)
			},
			OnFinalFailure: onFinalFailure,
		})
	})

	if applied {
		l.Invalidate()
	}
	return result, applied
}

func isTerminal(s models.MatchStatus) bool {
	switch s {
	case models.MatchPending, "awaiting_reports":
		return false
	default:
		return true
	}
}

// ForceConflict overwrites matchID's status to conflicted unconditionally,
// bypassing the terminal-state guard FinalizeMatch enforces. Reserved for
// the authoritative-write-failure recovery path: once a finalize or rating
// write exhausts its retries, the status already applied in-memory no
// longer reflects what's durable, and conflicted is the only state both
// sides can trust.
func (l *Layer) ForceConflict(matchID int64, now time.Time) *models.Match {
	var result *models.Match
	l.swap(func(f *frame) {
		m, ok := f.matches[matchID]
		if !ok {
			return
		}
		next := *m
		next.Status = models.MatchConflict
		next.PlayedAt = &now
		f.matches[matchID] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description:   "force-conflict match after authoritative write failure",
			Payload:       map[string]interface{}{"match_id": matchID},
			Authoritative: true,
			Apply: func(ctx context.Context, s store.Store) error {
				return execFinalizeMatch(ctx, s, l.dialect, &next)
			},
		})
	})
	if result != nil {
		l.Invalidate()
	}
	return result
}

// ApplyRatingUpdate upserts both rating rows for the race played and bumps
// their counters. Creates rows lazily at InitialMMR if absent. Authoritative:
// onFinalFailure runs if the durable write exhausts its retries.
func (l *Layer) ApplyRatingUpdate(ctx context.Context, playerID int64, race string, delta int, outcome models.ReportedResult, now time.Time, onFinalFailure func()) *models.RatingRow {
	var result *models.RatingRow
	l.swap(func(f *frame) {
		key := ratingKey(playerID, race)
		row, ok := f.ratings[key]
		if !ok {
			row = models.NewRatingRow(playerID, race)
		}
		next := *row
		next.MMR += delta
		if next.MMR < 0 {
			next.MMR = 0
		}
		next.GamesPlayed++
		switch outcome {
		case models.ResultWin:
			next.GamesWon++
		case models.ResultLoss:
			next.GamesLost++
		case models.ResultDraw:
			next.GamesDrawn++
		}
		next.LastPlayed = now
		f.ratings[key] = &next
		result = &next

		l.writer.enqueue(WriteJob{
			Description:    "apply rating update",
			Payload:        map[string]interface{}{"player_id": playerID, "race": race},
			Authoritative:  true,
			OnFinalFailure: onFinalFailure,
			Apply: func(ctx context.Context, s store.Store) error {
				return execUpsertRating(ctx, s, l.dialect, &next)
			},
		})
	})
	return result
}

// Invalidate signals the Leaderboard Engine to refresh on next read.
func (l *Layer) Invalidate() {
	if l.onInvalidate != nil {
		l.onInvalidate()
	}
}
