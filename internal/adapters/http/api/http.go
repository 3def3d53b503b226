// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	service "github.com/okian/velopick/internal/app"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/dedupe"
	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

// Dependencies required by HTTP handlers. The contest service satisfies it;
// tests may substitute their own implementation.
type Dependencies interface {
	CreateRider(ctx context.Context, r model.Rider) (model.Rider, error)
	ImportRiders(ctx context.Context, data []byte) ([]model.Rider, error)
	ListRiders(ctx context.Context) ([]model.Rider, error)
	DeleteRider(ctx context.Context, id string) error

	CreateRace(ctx context.Context, race model.Race) (model.Race, error)
	GetRace(ctx context.Context, id string) (model.Race, error)
	ListRaces(ctx context.Context) ([]model.Race, error)
	DeleteRace(ctx context.Context, id string) error
	ConfigureRace(ctx context.Context, setup model.RaceSetup) (model.RaceSetup, error)
	GetSetup(ctx context.Context, raceID string) (model.RaceSetup, error)
	UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error)

	SubmitPrediction(ctx context.Context, p model.Prediction) (model.Prediction, error)
	GetPrediction(ctx context.Context, raceID, userID string) (model.Prediction, error)
	ListRacePredictions(ctx context.Context, raceID string) ([]model.Prediction, error)

	CommitResult(ctx context.Context, result model.ActualResult) ([]model.Score, error)
	RecomputeAll(ctx context.Context) (int, error)

	Standings(ctx context.Context) ([]leaderboard.Standing, error)
	RaceScores(ctx context.Context, raceID string) ([]model.Score, error)
	ScoreDetail(ctx context.Context, userID, raceID string) (service.Detail, error)

	Idempotency() dedupe.Deduper
	ParseDeadline(input string) (time.Time, error)
	Now() time.Time
}

// Server wires HTTP routes for the contest API.
type Server struct {
	deps Dependencies

	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	ridersHandler     *RidersHandler
	racesHandler      *RacesHandler
	predictionHandler *PredictionsHandler
	resultsHandler    *ResultsHandler
	standingsHandler  *StandingsHandler

	limiter        *IPRateLimiter
	standingsLimit int
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		limiter:        NewIPRateLimiter(rate.Limit(20), 40),
		standingsLimit: 500,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.ridersHandler = NewRidersHandler(deps, s.logger)
	s.racesHandler = NewRacesHandler(deps, s.logger)
	s.predictionHandler = NewPredictionsHandler(deps, s.logger)
	s.resultsHandler = NewResultsHandler(deps, s.logger)
	s.standingsHandler = NewStandingsHandler(deps, s.logger, s.standingsLimit)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Use(chimw.RealIP, chimw.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	limited := RateLimitMiddleware(s.limiter)
	idempotent := IdempotencyMiddleware(s.deps.Idempotency())

	r.Route("/riders", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.ridersHandler.HandleList, "riders_list"))
		r.With(limited).Post("/", MetricsMiddleware(s.ridersHandler.HandleCreate, "riders_create"))
		r.With(limited, idempotent).Post("/import", MetricsMiddleware(s.ridersHandler.HandleImport, "riders_import"))
		r.With(limited).Delete("/{riderID}", MetricsMiddleware(s.ridersHandler.HandleDelete, "riders_delete"))
	})

	r.Route("/races", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.racesHandler.HandleList, "races_list"))
		r.With(limited).Post("/", MetricsMiddleware(s.racesHandler.HandleCreate, "races_create"))

		r.Route("/{raceID}", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.racesHandler.HandleGet, "races_get"))
			r.With(limited).Delete("/", MetricsMiddleware(s.racesHandler.HandleDelete, "races_delete"))

			r.Get("/setup", MetricsMiddleware(s.racesHandler.HandleGetSetup, "setup_get"))
			r.With(limited).Put("/setup", MetricsMiddleware(s.racesHandler.HandlePutSetup, "setup_put"))

			r.Get("/predictions", MetricsMiddleware(s.predictionHandler.HandleList, "predictions_list"))
			r.Get("/predictions/{userID}", MetricsMiddleware(s.predictionHandler.HandleGet, "predictions_get"))
			r.With(limited).Put("/predictions/{userID}", MetricsMiddleware(s.predictionHandler.HandlePut, "predictions_put"))

			r.With(limited, idempotent).Put("/result", MetricsMiddleware(s.resultsHandler.HandleCommit, "result_commit"))
			r.Get("/scores", MetricsMiddleware(s.resultsHandler.HandleRaceScores, "scores_list"))
			r.Get("/scores/{userID}/detail", MetricsMiddleware(s.resultsHandler.HandleScoreDetail, "scores_detail"))
		})
	})

	r.Route("/standings", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.standingsHandler.HandleStandings, "standings"))
		r.Get("/export.xlsx", MetricsMiddleware(s.standingsHandler.HandleExport, "standings_export"))
		r.Get("/chart.png", MetricsMiddleware(s.standingsHandler.HandleChart, "standings_chart"))
	})

	r.With(limited).Put("/participants/{userID}", MetricsMiddleware(s.racesHandler.HandlePutParticipant, "participants_put"))
	r.With(limited).Post("/admin/recompute", MetricsMiddleware(s.resultsHandler.HandleRecomputeAll, "admin_recompute"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and store errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNoResult):
		writeError(w, http.StatusNotFound, "no_result", err)
	case errors.Is(err, service.ErrRegistrationClosed):
		writeError(w, http.StatusConflict, "registration_closed", err)
	case errors.Is(err, service.ErrPredictionsHidden):
		writeError(w, http.StatusForbidden, "predictions_hidden", err)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 8 << 20
)
