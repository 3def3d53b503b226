package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/velopick/internal/adapters/charts"
	"github.com/okian/velopick/internal/adapters/sheets"
	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/pkg/logger"
)

// defaultChartLines is how many leaders the chart draws without ?limit.
const defaultChartLines = 10

// StandingsHandler serves the leaderboard and its exports.
type StandingsHandler struct {
	deps     Dependencies
	logger   logger.Logger
	maxLimit int
}

// NewStandingsHandler creates a new standings handler. maxLimit caps the
// limit query parameter.
func NewStandingsHandler(deps Dependencies, l logger.Logger, maxLimit int) *StandingsHandler {
	return &StandingsHandler{deps: deps, logger: l, maxLimit: maxLimit}
}

// HandleStandings handles GET /standings?limit=N. Without limit every
// scored participant is returned.
func (h *StandingsHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	rows, err := h.deps.Standings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rows = leaderboard.Top(rows, limit)
	if rows == nil {
		rows = []leaderboard.Standing{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleExport handles GET /standings/export.xlsx.
func (h *StandingsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Standings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	races, err := h.deps.ListRaces(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := sheets.ExportStandings(rows, races)
	if err != nil {
		h.logger.Error(r.Context(), "standings export failed", logger.Error(err))
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleChart handles GET /standings/chart.png?limit=N.
func (h *StandingsHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r, defaultChartLines)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	rows, err := h.deps.Standings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	races, err := h.deps.ListRaces(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	png, err := charts.Cumulative(rows, races, limit)
	if err != nil {
		h.logger.Error(r.Context(), "standings chart failed", logger.Error(err))
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *StandingsHandler) parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if h.maxLimit > 0 && n > h.maxLimit {
		n = h.maxLimit
	}
	return n, nil
}
