package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

// RacesHandler serves races, their setup and participant names.
type RacesHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRacesHandler creates a new races handler.
func NewRacesHandler(deps Dependencies, l logger.Logger) *RacesHandler {
	return &RacesHandler{deps: deps, logger: l}
}

// createRaceRequest accepts the deadline as RFC3339 or as natural language
// ("next sunday 9:30") interpreted in the configured zone.
type createRaceRequest struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Date                 string `json:"date"`
	RegistrationDeadline string `json:"registration_deadline"`
	IsMonument           bool   `json:"is_monument"`
	RuleVariant          string `json:"rule_variant,omitempty"`
}

type raceResponse struct {
	model.Race
	Open bool `json:"open"`
}

type setupRequest struct {
	Candidates []string          `json:"candidates"`
	HeadToHead *model.HeadToHead `json:"head_to_head,omitempty"`
}

type participantRequest struct {
	DisplayName string `json:"display_name"`
}

// HandleList handles GET /races.
func (h *RacesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	races, err := h.deps.ListRaces(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	now := h.deps.Now()
	out := make([]raceResponse, len(races))
	for i, race := range races {
		out[i] = raceResponse{Race: race, Open: race.IsOpen(now)}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /races.
func (h *RacesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.RegistrationDeadline) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", ErrMissingDeadline)
		return
	}
	deadline, err := h.deps.ParseDeadline(req.RegistrationDeadline)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	date := deadline
	if req.Date != "" {
		if date, err = h.deps.ParseDeadline(req.Date); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	race, err := h.deps.CreateRace(r.Context(), model.Race{
		ID:                   req.ID,
		Name:                 req.Name,
		Date:                 date,
		RegistrationDeadline: deadline,
		IsMonument:           req.IsMonument,
		RuleVariant:          req.RuleVariant,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info(r.Context(), "race created",
		logger.String("race_id", race.ID),
		logger.String("deadline", race.RegistrationDeadline.Format(time.RFC3339)),
	)
	writeJSON(w, http.StatusCreated, raceResponse{Race: race, Open: race.IsOpen(h.deps.Now())})
}

// HandleGet handles GET /races/{raceID}.
func (h *RacesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	race, err := h.deps.GetRace(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raceResponse{Race: race, Open: race.IsOpen(h.deps.Now())})
}

// HandleDelete handles DELETE /races/{raceID}.
func (h *RacesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRace(r.Context(), chi.URLParam(r, "raceID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSetup handles GET /races/{raceID}/setup.
func (h *RacesHandler) HandleGetSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.deps.GetSetup(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

// HandlePutSetup handles PUT /races/{raceID}/setup.
func (h *RacesHandler) HandlePutSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	setup, err := h.deps.ConfigureRace(r.Context(), model.RaceSetup{
		RaceID:     chi.URLParam(r, "raceID"),
		Candidates: req.Candidates,
		HeadToHead: req.HeadToHead,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

// HandlePutParticipant handles PUT /participants/{userID}.
func (h *RacesHandler) HandlePutParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := h.deps.UpsertParticipant(r.Context(), model.Participant{
		UserID:      chi.URLParam(r, "userID"),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
