package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

// ResultsHandler serves result entry and score reads.
type ResultsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps Dependencies, l logger.Logger) *ResultsHandler {
	return &ResultsHandler{deps: deps, logger: l}
}

type resultRequest struct {
	FinishPositions  map[string]int `json:"finish_positions"`
	CandidateOrder   map[string]int `json:"candidate_order,omitempty"`
	HeadToHeadWinner string         `json:"head_to_head_winner,omitempty"`
}

type commitResponse struct {
	RaceID string        `json:"race_id"`
	Scored int           `json:"scored"`
	Scores []model.Score `json:"scores"`
}

type recomputeResponse struct {
	Queued int `json:"queued"`
}

// HandleCommit handles PUT /races/{raceID}/result. The result and the
// race's scores are replaced together or not at all.
func (h *ResultsHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	raceID := chi.URLParam(r, "raceID")
	scores, err := h.deps.CommitResult(r.Context(), model.ActualResult{
		RaceID:           raceID,
		FinishPositions:  req.FinishPositions,
		CandidateOrder:   req.CandidateOrder,
		HeadToHeadWinner: req.HeadToHeadWinner,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if scores == nil {
		scores = []model.Score{}
	}
	writeJSON(w, http.StatusOK, commitResponse{RaceID: raceID, Scored: len(scores), Scores: scores})
}

// HandleRaceScores handles GET /races/{raceID}/scores.
func (h *ResultsHandler) HandleRaceScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.deps.RaceScores(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if scores == nil {
		scores = []model.Score{}
	}
	writeJSON(w, http.StatusOK, scores)
}

// HandleScoreDetail handles GET /races/{raceID}/scores/{userID}/detail.
func (h *ResultsHandler) HandleScoreDetail(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.ScoreDetail(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "raceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleRecomputeAll handles POST /admin/recompute.
func (h *ResultsHandler) HandleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.RecomputeAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info(r.Context(), "recompute requested", logger.Int("queued", n))
	writeJSON(w, http.StatusAccepted, recomputeResponse{Queued: n})
}
