package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/service"
)

type AnalyticsHandler struct {
	svc    *service.AnalyticsService
	logger *slog.Logger
}

func NewAnalyticsHandler(svc *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/stats (public)
func (h *AnalyticsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HTTP: GET /api/leaderboard[?limit=10] (public)
func (h *AnalyticsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, h.logger, apperror.ValidationFailed("limit", "limit must be a positive number"))
			return
		}
		limit = n
	}
	board, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HTTP: GET /api/environmental-impact (organizations and admins)
func (h *AnalyticsHandler) HandleEnvironmentalImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := h.svc.EnvironmentalImpact(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}
