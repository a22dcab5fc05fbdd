// Package lifecycle implements the per-match state machine: it aggregates
// replay uploads and result reports, resolves conflicts/aborts/timeouts,
// and performs atomic finalization (rating application + leaderboard
// invalidation). Per-match locking uses a single-writer-goroutine
// discipline generalized to a lock table keyed by dynamic match ID: an
// index-keyed lock table with lazy creation and reference counting,
// rather than one lock per possible match up front.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/notify"
	"github.com/rts-ladder/ranked-core/internal/rating"
)

// DefaultMatchTimeout is the inactivity window after which an
// awaiting_reports match is timed out without a rating change.
const DefaultMatchTimeout = 60 * time.Minute

// DataLayer is the subset of internal/datalayer.Layer the Coordinator
// needs. A narrow interface keeps this package testable against a fake.
type DataLayer interface {
	GetMatch(id int64) (*models.Match, bool)
	GetRating(playerID int64, race string) (*models.RatingRow, bool)
	RecordReport(matchID, playerID int64, result models.ReportedResult) (*models.Match, error)
	FinalizeMatch(ctx context.Context, matchID int64, status models.MatchStatus, delta1, delta2 int, now time.Time, onFinalFailure func()) (*models.Match, bool)
	ApplyRatingUpdate(ctx context.Context, playerID int64, race string, delta int, outcome models.ReportedResult, now time.Time, onFinalFailure func()) *models.RatingRow
	ForceConflict(matchID int64, now time.Time) *models.Match
	CheckAndConsumeAbortQuota(id int64, now time.Time) error
}

// lockEntry is a reference-counted per-match mutex, created on demand and
// dropped once the last holder releases it (no locks linger for matches
// that have already finalized).
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Coordinator owns the index-keyed lock table and drives transitions.
type Coordinator struct {
	data   DataLayer
	bus    *notify.Bus
	logger *zap.SugaredLogger

	tableMu sync.Mutex
	locks   map[int64]*lockEntry

	matchTimeout time.Duration
}

// Options configures New.
type Options struct {
	Data         DataLayer
	Bus          *notify.Bus
	Logger       *zap.SugaredLogger
	MatchTimeout time.Duration
}

// New constructs a Coordinator.
func New(opts Options) *Coordinator {
	timeout := opts.MatchTimeout
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	return &Coordinator{
		data:         opts.Data,
		bus:          opts.Bus,
		logger:       opts.Logger,
		locks:        make(map[int64]*lockEntry),
		matchTimeout: timeout,
	}
}

// withMatchLock acquires the per-match lock, runs fn, then releases and
// garbage-collects the lock entry if no one else is waiting on it.
func (c *Coordinator) withMatchLock(matchID int64, fn func()) {
	c.tableMu.Lock()
	entry, ok := c.locks[matchID]
	if !ok {
		entry = &lockEntry{}
		c.locks[matchID] = entry
	}
	entry.refs++
	c.tableMu.Unlock()

	entry.mu.Lock()
	fn()
	entry.mu.Unlock()

	c.tableMu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(c.locks, matchID)
	}
	c.tableMu.Unlock()
}

// onFinalizeFailure builds the hook passed to FinalizeMatch/ApplyRatingUpdate
// for authoritative writes. It fires from the background writer goroutine,
// after retries are exhausted and after withMatchLock's original critical
// section has already released the lock, so it reacquires the per-match
// lock before forcing the match to conflicted and emits a loud log per the
// durable-write-failure requirement.
func (c *Coordinator) onFinalizeFailure(matchID int64) func() {
	return func() {
		if c.logger != nil {
			c.logger.Errorw("authoritative write exhausted retries, marking match conflicted", "match_id", matchID)
		}
		c.withMatchLock(matchID, func() {
			finalized := c.data.ForceConflict(matchID, time.Now())
			if finalized != nil && c.bus != nil {
				c.publishTerminal(finalized, notify.EventConflicted)
			}
		})
	}
}

// ReportResult handles a participant's self-reported result. Serialized
// per match ID so two simultaneous reports (or a report racing an abort)
// resolve deterministically — exactly one transition wins.
func (c *Coordinator) ReportResult(ctx context.Context, matchID, playerID int64, result models.ReportedResult, now time.Time) (*models.Match, error) {
	var out *models.Match
	var outErr error

	c.withMatchLock(matchID, func() {
		if result == models.ResultAbort {
			out, outErr = c.handleAbort(ctx, matchID, playerID, now)
			return
		}

		m, err := c.data.RecordReport(matchID, playerID, result)
		if err != nil {
			outErr = err
			return
		}

		if c.bus != nil {
			c.bus.Publish(notify.MatchEvent{Kind: notify.EventResultReported, MatchID: matchID, ParticipantID: playerID})
		}

		if m.Report1 == "" || m.Report2 == "" {
			out = m
			return
		}

		out, outErr = c.resolveReports(ctx, m, now)
	})
	return out, outErr
}

func (c *Coordinator) resolveReports(ctx context.Context, m *models.Match, now time.Time) (*models.Match, error) {
	if m.Report1 == models.ResultAbort || m.Report2 == models.ResultAbort {
		return m, nil
	}

	agree, status := reportsAgree(m.Report1, m.Report2)
	if !agree {
		finalized, applied := c.data.FinalizeMatch(ctx, m.ID, models.MatchConflict, 0, 0, now, c.onFinalizeFailure(m.ID))
		if applied && c.bus != nil {
			c.publishTerminal(m, notify.EventConflicted)
		}
		return finalized, nil
	}

	return c.finalizeDecisive(ctx, m, status, now)
}

// reportsAgree maps the pair of self-reports to the resulting terminal
// status, iff they're mutually consistent (one side's win implies the
// other's loss, and so on).
func reportsAgree(r1, r2 models.ReportedResult) (bool, models.MatchStatus) {
	switch {
	case r1 == models.ResultWin && r2 == models.ResultLoss:
		return true, models.MatchPlayer1Win
	case r1 == models.ResultLoss && r2 == models.ResultWin:
		return true, models.MatchPlayer2Win
	case r1 == models.ResultDraw && r2 == models.ResultDraw:
		return true, models.MatchDraw
	default:
		return false, models.MatchConflict
	}
}

func (c *Coordinator) finalizeDecisive(ctx context.Context, m *models.Match, status models.MatchStatus, now time.Time) (*models.Match, error) {
	var delta1, delta2 int
	switch status {
	case models.MatchPlayer1Win:
		row1, _ := c.data.GetRating(m.Player1ID, m.Race1)
		row2, _ := c.data.GetRating(m.Player2ID, m.Race2)
		delta1, delta2 = rating.WinLossDeltas(mmrOf(row1), mmrOf(row2))
	case models.MatchPlayer2Win:
		row1, _ := c.data.GetRating(m.Player1ID, m.Race1)
		row2, _ := c.data.GetRating(m.Player2ID, m.Race2)
		d2, d1 := rating.WinLossDeltas(mmrOf(row2), mmrOf(row1))
		delta1, delta2 = d1, d2
	case models.MatchDraw:
		row1, _ := c.data.GetRating(m.Player1ID, m.Race1)
		row2, _ := c.data.GetRating(m.Player2ID, m.Race2)
		delta1, delta2 = rating.DrawDeltas(mmrOf(row1), mmrOf(row2))
	}
	finalized, applied := c.data.FinalizeMatch(ctx, m.ID, status, delta1, delta2, now, c.onFinalizeFailure(m.ID))
	if !applied {
		return finalized, nil
	}

	outcome1, outcome2 := outcomesFor(status)
	c.data.ApplyRatingUpdate(ctx, m.Player1ID, m.Race1, delta1, outcome1, now, c.onFinalizeFailure(m.ID))
	c.data.ApplyRatingUpdate(ctx, m.Player2ID, m.Race2, delta2, outcome2, now, c.onFinalizeFailure(m.ID))

	if c.bus != nil {
		c.publishTerminal(finalized, notify.EventCompleted)
	}
	return finalized, nil
}

func outcomesFor(status models.MatchStatus) (models.ReportedResult, models.ReportedResult) {
	switch status {
	case models.MatchPlayer1Win:
		return models.ResultWin, models.ResultLoss
	case models.MatchPlayer2Win:
		return models.ResultLoss, models.ResultWin
	default:
		return models.ResultDraw, models.ResultDraw
	}
}

func mmrOf(row *models.RatingRow) int {
	if row == nil {
		return models.InitialMMR
	}
	return row.MMR
}

func (c *Coordinator) handleAbort(ctx context.Context, matchID, playerID int64, now time.Time) (*models.Match, error) {
	m, ok := c.data.GetMatch(matchID)
	if !ok {
		return nil, apperr.NotFound("match not found", nil)
	}
	if _, ok := m.OpponentOf(playerID); !ok {
		return nil, apperr.Validation("player is not a participant in this match", nil)
	}
	// A match that already resolved under this same lock (e.g. the opponent's
	// confirm-loss won the race) must reject the abort outright rather than
	// consume the aborting player's quota for a match that isn't actually
	// aborting.
	if m.Status != models.MatchPending {
		return nil, apperr.State("match is no longer pending", nil)
	}

	if err := c.data.CheckAndConsumeAbortQuota(playerID, now); err != nil {
		return nil, err
	}

	finalized, applied := c.data.FinalizeMatch(ctx, matchID, models.MatchAborted, 0, 0, now, c.onFinalizeFailure(matchID))
	if applied && c.bus != nil {
		c.publishTerminal(finalized, notify.EventAborted)
	}
	return finalized, nil
}

// ExpireTimeouts scans for awaiting_reports matches older than the match
// timeout and transitions them to timed_out with no rating change and no
// abort-quota decrement. Intended to be driven by a periodic caller
// (cmd/server's wiring), not a self-scheduled loop in this package.
func (c *Coordinator) ExpireTimeouts(ctx context.Context, candidateMatchIDs []int64, now time.Time) {
	for _, id := range candidateMatchIDs {
		c.withMatchLock(id, func() {
			m, ok := c.data.GetMatch(id)
			if !ok || m.Status != models.MatchPending {
				return
			}
			if now.Sub(m.CreatedAt) < c.matchTimeout {
				return
			}
			finalized, applied := c.data.FinalizeMatch(ctx, id, models.MatchTimedOut, 0, 0, now, c.onFinalizeFailure(id))
			if applied && c.bus != nil {
				c.publishTerminal(finalized, notify.EventTimedOut)
			}
		})
	}
}

// MarkReplayConflict transitions matchID straight to conflicted with no
// rating change, reusing the same per-match lock and terminal-publish path
// as every other transition. Driven by replay ingestion on a cross-match
// hash collision: two different matches referencing the same replay hash
// is a cheating signal, not a storage error, so the match is stored as
// conflicted and surfaced downstream rather than silently dropped.
func (c *Coordinator) MarkReplayConflict(ctx context.Context, matchID int64, now time.Time) {
	c.withMatchLock(matchID, func() {
		m, ok := c.data.GetMatch(matchID)
		if !ok || m.Status != models.MatchPending {
			return
		}
		finalized, applied := c.data.FinalizeMatch(ctx, matchID, models.MatchConflict, 0, 0, now, c.onFinalizeFailure(matchID))
		if applied && c.bus != nil {
			c.publishTerminal(finalized, notify.EventConflicted)
		}
	})
}

func (c *Coordinator) publishTerminal(m *models.Match, kind notify.EventKind) {
	payload := map[string]interface{}{"status": string(m.Status), "delta_1": m.Delta1, "delta_2": m.Delta2}
	c.bus.Publish(notify.MatchEvent{Kind: kind, MatchID: m.ID, ParticipantID: m.Player1ID, Payload: payload})
	c.bus.Publish(notify.MatchEvent{Kind: kind, MatchID: m.ID, ParticipantID: m.Player2ID, Payload: payload})
}
