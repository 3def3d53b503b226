package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

// PredictionsHandler serves prediction submission and lookup.
type PredictionsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps Dependencies, l logger.Logger) *PredictionsHandler {
	return &PredictionsHandler{deps: deps, logger: l}
}

type predictionRequest struct {
	TopPicks         []model.Pick       `json:"top_picks"`
	RankedCandidates []model.RankedPick `json:"ranked_candidates"`
	HeadToHeadPick   string             `json:"head_to_head_pick,omitempty"`
}

// HandlePut handles PUT /races/{raceID}/predictions/{userID}. A new
// submission replaces the previous one while registration is open.
func (h *PredictionsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := h.deps.SubmitPrediction(r.Context(), model.Prediction{
		UserID:           chi.URLParam(r, "userID"),
		RaceID:           chi.URLParam(r, "raceID"),
		TopPicks:         req.TopPicks,
		RankedCandidates: req.RankedCandidates,
		HeadToHeadPick:   req.HeadToHeadPick,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleGet handles GET /races/{raceID}/predictions/{userID}.
func (h *PredictionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.GetPrediction(r.Context(), chi.URLParam(r, "raceID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleList handles GET /races/{raceID}/predictions. Rejected while
// registration is open.
func (h *PredictionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ps, err := h.deps.ListRacePredictions(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
