package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/guards"
	"github.com/rts-ladder/ranked-core/internal/leaderboard"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/notify"
)

// callerContext is the normalized view of "who invoked this command and
// from where" that the out-of-scope dispatch/routing glue is expected to
// supply on every request, via header rather than a session cookie since
// the caller is a bot gateway, not a browser.
type callerContext struct {
	PlayerID int64
	IsDM     bool
}

func callerFromRequest(r *http.Request) (callerContext, error) {
	raw := r.Header.Get("X-Player-ID")
	if raw == "" {
		return callerContext{}, apperr.Validation("missing caller identity", nil)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return callerContext{}, apperr.Validation("caller identity must be numeric", err)
	}
	return callerContext{
		PlayerID: id,
		IsDM:     r.Header.Get("X-Channel-Type") == "dm",
	}, nil
}

// runGuards executes the standard guard chain for command and records the
// audit row regardless of outcome, mirroring the Command Guards &
// Validators contract: violations are typed errors, never bare platform
// exceptions.
func (h *Handler) runGuards(r *http.Request, command string) (*models.Player, callerContext, error) {
	caller, err := callerFromRequest(r)
	if err != nil {
		return nil, caller, err
	}
	now := time.Now()
	p, err := guards.Chain(r.Context(), h.data, caller.PlayerID, command, caller.IsDM, now)
	h.data.RecordCommandAudit(caller.PlayerID, command, nil, now)
	return p, caller, err
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer io.Copy(io.Discard, r.Body) //nolint:errcheck
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("malformed request body", err)
	}
	return nil
}

// Setup handles /setup: display name, battle tag, alt names, country,
// region. Validated fully before any Data Layer write.
//
//	@Summary	Complete account setup
//	@Router		/api/v1/commands/setup [post]
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "setup")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	var req models.SetupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if err := guards.ValidateStruct(req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if err := guards.ValidateDisplayName(req.DisplayName, h.international); err != nil {
		h.errorResponse(w, err)
		return
	}
	for _, alt := range []string{req.AltName1, req.AltName2} {
		if alt == "" {
			continue
		}
		if err := guards.ValidateDisplayName(alt, h.international); err != nil {
			h.errorResponse(w, err)
			return
		}
	}
	if err := guards.ValidateBattleTag(req.BattleTag); err != nil {
		h.errorResponse(w, err)
		return
	}
	if !h.catalog.IsValidCountry(req.Country) {
		h.errorResponse(w, apperr.Validation("unknown country code", nil))
		return
	}
	if !h.catalog.IsValidRegion(req.Region) {
		h.errorResponse(w, apperr.Validation("unknown region code", nil))
		return
	}

	p, err := h.data.CompleteSetup(r.Context(), req, caller.PlayerID, time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// Activate handles /activate: one-shot account activation.
//
//	@Summary	Activate an account
//	@Router		/api/v1/commands/activate [post]
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "activate")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	var req models.ActivateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if err := guards.ValidateStruct(req); err != nil {
		h.errorResponse(w, err)
		return
	}
	p, err := h.data.Activate(r.Context(), caller.PlayerID, time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// AcceptToS handles /termsofservice.
//
//	@Summary	Accept or decline the terms of service
//	@Router		/api/v1/commands/termsofservice [post]
func (h *Handler) AcceptToS(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "termsofservice")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	var req models.AcceptToSRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if !req.Accept {
		h.jsonResponse(w, http.StatusOK, map[string]string{"status": "declined"})
		return
	}
	p, err := h.data.AcceptToS(r.Context(), caller.PlayerID, time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// SetCountry handles /setcountry.
//
//	@Summary	Update residential country
//	@Router		/api/v1/commands/setcountry [post]
func (h *Handler) SetCountry(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "setcountry")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	var req models.SetCountryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if err := guards.ValidateStruct(req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if !h.catalog.IsValidCountry(req.Country) {
		h.errorResponse(w, apperr.Validation("unknown country code", nil))
		return
	}
	p, err := h.data.UpdateCountry(r.Context(), caller.PlayerID, req.Country, time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// profileView is the read-only self view returned by /profile: the player
// record plus every rating row across races.
type profileView struct {
	Player  *models.Player      `json:"player"`
	Ratings []*models.RatingRow `json:"ratings"`
}

// Profile handles /profile: a read-only view of the caller's own record.
//
//	@Summary	View own profile
//	@Router		/api/v1/commands/profile [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, caller, err := h.runGuards(r, "profile")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, profileView{
		Player:  p,
		Ratings: h.data.GetRatingsFor(caller.PlayerID),
	})
}

// Leaderboard handles /leaderboard: paginated, filtered reads against the
// materialized leaderboard view.
//
//	@Summary	Query the leaderboard
//	@Router		/api/v1/commands/leaderboard [get]
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.runGuards(r, "leaderboard"); err != nil {
		h.errorResponse(w, err)
		return
	}
	q := r.URL.Query()
	filters := leaderboard.Filters{
		Country: q.Get("country"),
		Rank:    models.RankTier(q.Get("rank")),
	}
	if races := q.Get("races"); races != "" {
		filters.Races = strings.Split(races, ",")
	}
	if q.Get("best_race_only") == "true" {
		filters.BestRaceOnly = true
	}
	page := queryInt(q, "page", 1)
	pageSize := queryInt(q, "page_size", leaderboard.MaxPageSize)

	h.jsonResponse(w, http.StatusOK, h.leaderboard.Query(filters, page, pageSize))
}

func queryInt(q interface{ Get(string) string }, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Queue handles /queue: enters the caller into the matchmaking queue
// using their saved preferences (or the races/vetoes supplied in the
// request body, which replace the saved preferences).
//
//	@Summary	Enter the matchmaking queue
//	@Router		/api/v1/commands/queue [post]
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	p, caller, err := h.runGuards(r, "queue")
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	var req models.QueueRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.errorResponse(w, err)
			return
		}
		if err := guards.ValidateStruct(req); err != nil {
			h.errorResponse(w, err)
			return
		}
	} else if prefs, ok := h.data.GetPreferences(caller.PlayerID); ok {
		req.Races = prefs.Races
		req.Vetoes = prefs.Vetoes
	} else {
		h.errorResponse(w, apperr.Validation("no saved race preference; races must be supplied", nil))
		return
	}

	for _, race := range req.Races {
		if !h.catalog.IsValidRace(race) {
			h.errorResponse(w, apperr.Validation("unknown race code: "+race, nil))
			return
		}
	}
	for _, mapName := range req.Vetoes {
		valid := false
		for _, m := range h.catalog.ActiveMaps() {
			if m == mapName {
				valid = true
				break
			}
		}
		if !valid {
			h.errorResponse(w, apperr.Validation("unknown or inactive map veto: "+mapName, nil))
			return
		}
	}

	h.data.SavePreferences(r.Context(), caller.PlayerID, req.Races, req.Vetoes)

	mmrByRace := make(map[string]int, len(req.Races))
	for _, race := range req.Races {
		if rating, ok := h.dataLayerRating(caller.PlayerID, race); ok {
			mmrByRace[race] = rating
		} else {
			mmrByRace[race] = models.InitialMMR
		}
	}

	entry := &models.QueueEntry{
		PlayerID:  caller.PlayerID,
		Races:     req.Races,
		Vetoes:    req.Vetoes,
		Region:    p.Region,
		MMRByRace: mmrByRace,
		EnteredAt: time.Now(),
	}
	h.matchmaker.AddPlayer(entry)
	h.jsonResponse(w, http.StatusAccepted, map[string]interface{}{"status": "queued"})
}

// dataLayerRating is a small indirection so Queue can read a single rating
// row through the narrow DataLayer interface, which only exposes
// GetRatingsFor (not GetRating) to command handlers.
func (h *Handler) dataLayerRating(playerID int64, race string) (int, bool) {
	for _, rr := range h.data.GetRatingsFor(playerID) {
		if rr.RaceCode == race {
			return rr.MMR, true
		}
	}
	return 0, false
}

// LeaveQueue handles a caller withdrawing from matchmaking before a wave
// pairs them — not a command-surface table entry itself, but the
// necessary counterpart to Queue.
//
//	@Summary	Leave the matchmaking queue
//	@Router		/api/v1/commands/queue [delete]
func (h *Handler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "queue")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.matchmaker.RemovePlayer(caller.PlayerID)
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "left"})
}

// Prune handles /prune: the core's only responsibility is running the
// guard chain (DM-only, player must exist). Actually trimming the user's
// DM history happens in the view layer, which owns chat state the core
// never touches.
//
//	@Summary	Acknowledge a DM-history prune request
//	@Router		/api/v1/commands/prune [post]
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.runGuards(r, "prune"); err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReportResult handles a participant's post-match result report.
//
//	@Summary	Report a match result
//	@Router		/api/v1/matches/result [post]
func (h *Handler) ReportResult(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "report_result")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	var req models.ReportResultRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if err := guards.ValidateStruct(req); err != nil {
		h.errorResponse(w, err)
		return
	}
	m, err := h.coordinator.ReportResult(r.Context(), req.MatchID, caller.PlayerID, models.ReportedResult(req.Result), time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, m)
}

// UploadReplay handles a participant's replay binary upload for a given
// match. The body is the raw replay file; filename arrives as a query
// parameter since chat-platform file uploads rarely preserve multipart
// framing by the time they reach this surface.
//
//	@Summary	Upload a match replay
//	@Router		/api/v1/matches/{matchID}/replay [post]
func (h *Handler) UploadReplay(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "upload_replay")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		h.errorResponse(w, apperr.Validation("match id must be numeric", err))
		return
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		h.errorResponse(w, apperr.Validation("filename query parameter is required", nil))
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, models.MaxReplaySizeBytes+1))
	if err != nil {
		h.errorResponse(w, apperr.Validation("failed to read request body", err))
		return
	}

	artifact, err := h.ingestor.Upload(r.Context(), matchID, caller.PlayerID, filename, data, time.Now())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, artifact)
}

// MatchEvents streams lifecycle notifications for one participant of one
// match as newline-delimited JSON, for a view layer that wants push
// delivery instead of polling /profile or /leaderboard. Disconnection
// unsubscribes cleanly; this is plumbing, not UI rendering.
//
//	@Summary	Stream match lifecycle events
//	@Router		/api/v1/matches/{matchID}/events [get]
func (h *Handler) MatchEvents(w http.ResponseWriter, r *http.Request) {
	_, caller, err := h.runGuards(r, "match_events")
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		h.errorResponse(w, apperr.Validation("match id must be numeric", err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorResponse(w, apperr.State("streaming unsupported by this response writer", nil))
		return
	}

	sub := h.bus.Subscribe(matchID, caller.PlayerID)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := enc.Encode(evt); err != nil {
				return
			}
			flusher.Flush()
			if terminal(evt.Kind) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func terminal(kind notify.EventKind) bool {
	switch kind {
	case notify.EventCompleted, notify.EventConflicted, notify.EventAborted, notify.EventTimedOut:
		return true
	default:
		return false
	}
}
