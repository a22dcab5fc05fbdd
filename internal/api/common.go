package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rts-ladder/ranked-core/internal/apperr"
)

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, err error) {
	status, message := translateError(err)
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// translateError maps the error taxonomy onto HTTP status codes so every
// handler shares one mapping instead of re-deriving it per call site.
func translateError(err error) (int, string) {
	var kind apperr.Kind
	for _, k := range []apperr.Kind{
		apperr.KindValidation, apperr.KindNotFound, apperr.KindState,
		apperr.KindQuota, apperr.KindConflict, apperr.KindUpstream, apperr.KindCancelled,
	} {
		if apperr.Is(err, k) {
			kind = k
			break
		}
	}
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, err.Error()
	case apperr.KindNotFound:
		return http.StatusNotFound, err.Error()
	case apperr.KindState:
		return http.StatusConflict, err.Error()
	case apperr.KindQuota:
		return http.StatusTooManyRequests, err.Error()
	case apperr.KindConflict:
		return http.StatusConflict, err.Error()
	case apperr.KindCancelled:
		return http.StatusRequestTimeout, err.Error()
	case apperr.KindUpstream:
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Health reports liveness unconditionally; it never touches a collaborator
// so it stays cheap enough for an aggressive liveness-probe interval.
//
//	@Summary	Liveness probe
//	@Success	200	{object}	map[string]interface{}
//	@Router		/healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports readiness by checking the durable store and Redis cache.
// ClickHouse is deliberately excluded: it backs an optional
// analytics-grade mirror, and its absence must never take the service out
// of rotation.
//
//	@Summary	Readiness probe
//	@Success	200	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/readyz [get]
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]bool{
		"store": h.store.Ping(ctx) == nil,
	}
	if h.redis != nil {
		checks["redis"] = h.redis.Ping(ctx) == nil
	}

	allHealthy := true
	for _, ok := range checks {
		if !ok {
			allHealthy = false
			break
		}
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, status, map[string]interface{}{
		"ready":      allHealthy,
		"checks":     checks,
		"queue_len":  h.matchmaker.QueueLen(),
	})
}
