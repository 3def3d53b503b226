package simulation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
)

const (
	deadlineSlack    = time.Second
	idempotencyKey   = "Idempotency-Key"
	percentageFactor = 100
)

// ErrMismatch is returned when the server standings differ from the local
// computation.
var ErrMismatch = errors.New("standings mismatch")

// Runner executes one simulation.
type Runner struct {
	cfg    *Config
	client *HTTPClient
	log    logger.Logger
	stats  Stats

	mu       sync.Mutex
	accepted map[string][]Prediction
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		cfg:      cfg,
		client:   newHTTPClient(cfg.BaseURL, cfg.Timeout),
		log:      logger.Get().Named("simulation"),
		accepted: make(map[string][]Prediction),
	}
}

// Stats returns the statistics of the last Run.
func (r *Runner) Stats() Stats { return r.stats }

// Run executes the complete simulation against a server with no prior
// contest data.
func (r *Runner) Run(ctx context.Context) error {
	r.stats = Stats{StartTime: time.Now()}
	r.log.Info(ctx, "starting contest simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.String("scenario", r.cfg.ScenarioFile),
		logger.Int("workers", r.cfg.Workers),
	)

	if err := r.client.JSON(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	rules, err := r.fetchRules(ctx)
	if err != nil {
		return err
	}

	scenario, err := r.scenario(rules)
	if err != nil {
		return err
	}
	if err := r.register(ctx, scenario); err != nil {
		return err
	}
	deadline, err := r.createRaces(ctx, scenario)
	if err != nil {
		return err
	}
	r.submitPredictions(ctx, scenario)

	if wait := time.Until(deadline.Add(deadlineSlack)); wait > 0 {
		r.log.Info(ctx, "waiting for registration to close", logger.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	if err := r.commitResults(ctx, scenario); err != nil {
		return err
	}
	mismatches, err := r.verify(ctx, scenario, rules)
	if err != nil {
		return err
	}

	if r.cfg.OutputFile != "" {
		if err := scenario.Save(r.cfg.OutputFile); err != nil {
			r.log.Warn(ctx, "failed to save scenario", logger.Error(err))
		}
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.displayFinalStats(ctx)

	if len(mismatches) > 0 {
		for _, m := range mismatches {
			r.log.Error(ctx, "standings mismatch", logger.String("detail", m))
		}
		return fmt.Errorf("%w: %d differences", ErrMismatch, len(mismatches))
	}
	r.log.Info(ctx, "simulation completed successfully")
	return nil
}

func (r *Runner) fetchRules(ctx context.Context) (scoring.Rules, error) {
	var rr remoteRules
	if err := r.client.JSON(ctx, http.MethodGet, "/stats", nil, &rr); err != nil {
		return scoring.Rules{}, fmt.Errorf("fetch stats: %w", err)
	}
	v, err := scoring.ParseVariant(rr.Variant)
	if err != nil {
		return scoring.Rules{}, err
	}
	rules := scoring.Rules{Variant: v, TopPicksSize: rr.TopPicksSize, CandidatePoolSize: rr.CandidatePoolSize}
	return rules, rules.Validate()
}

func (r *Runner) scenario(rules scoring.Rules) (*Scenario, error) {
	if r.cfg.ScenarioFile != "" {
		return LoadScenario(r.cfg.ScenarioFile)
	}
	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r.log.Info(context.Background(), "generating scenario", logger.Int64("seed", seed))
	return NewGenerator(seed, rules).Generate(r.cfg.Riders, r.cfg.Races, r.cfg.Participants)
}

func (r *Runner) register(ctx context.Context, s *Scenario) error {
	var imported struct {
		Imported int `json:"imported"`
	}
	key := fmt.Sprintf("sim-riders-%d", r.stats.StartTime.UnixNano())
	if err := r.client.Text(ctx, http.MethodPost, "/riders/import", s.importBody(), &imported, idempotencyKey, key); err != nil {
		return fmt.Errorf("import riders: %w", err)
	}
	r.stats.RidersCreated = imported.Imported

	for _, p := range s.Participants {
		body := map[string]string{"display_name": p.DisplayName}
		if err := r.client.JSON(ctx, http.MethodPut, "/participants/"+url.PathEscape(p.UserID), body, nil); err != nil {
			return fmt.Errorf("participant %s: %w", p.UserID, err)
		}
	}
	return nil
}

// createRaces registers every race with the same deadline and returns it.
func (r *Runner) createRaces(ctx context.Context, s *Scenario) (time.Time, error) {
	deadline := time.Now().Add(r.cfg.DeadlineIn).UTC().Truncate(time.Second)
	for _, race := range s.Races {
		body := map[string]any{
			"id":                    race.ID,
			"name":                  race.Name,
			"registration_deadline": deadline.Format(time.RFC3339),
			"is_monument":           race.Monument,
		}
		if err := r.client.JSON(ctx, http.MethodPost, "/races", body, nil); err != nil {
			return time.Time{}, fmt.Errorf("create race %s: %w", race.ID, err)
		}
		setup := race.Setup()
		if err := r.client.JSON(ctx, http.MethodPut, "/races/"+url.PathEscape(race.ID)+"/setup", map[string]any{
			"candidates":   setup.Candidates,
			"head_to_head": setup.HeadToHead,
		}, nil); err != nil {
			return time.Time{}, fmt.Errorf("setup race %s: %w", race.ID, err)
		}
		r.stats.RacesCreated++
	}
	return deadline, nil
}

type submission struct {
	raceID string
	pred   Prediction
}

// submitPredictions fans predictions out to the configured workers. Failed
// submissions are logged and left out of the expected standings.
func (r *Runner) submitPredictions(ctx context.Context, s *Scenario) {
	var submitted, failed int64
	work := make(chan submission, r.cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				if ctx.Err() != nil {
					return
				}
				m := sub.pred.Model(sub.raceID)
				body := map[string]any{
					"top_picks":         m.TopPicks,
					"ranked_candidates": m.RankedCandidates,
					"head_to_head_pick": m.HeadToHeadPick,
				}
				path := "/races/" + url.PathEscape(sub.raceID) + "/predictions/" + url.PathEscape(sub.pred.UserID)
				if err := r.client.JSON(ctx, http.MethodPut, path, body, nil); err != nil {
					atomic.AddInt64(&failed, 1)
					r.log.Warn(ctx, "prediction rejected", logger.String("race_id", sub.raceID),
						logger.String("user_id", sub.pred.UserID), logger.Error(err))
					continue
				}
				atomic.AddInt64(&submitted, 1)
				r.mu.Lock()
				r.accepted[sub.raceID] = append(r.accepted[sub.raceID], sub.pred)
				r.mu.Unlock()
				if r.cfg.Verbose {
					r.log.Debug(ctx, "prediction submitted", logger.String("path", path))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, race := range s.Races {
			for _, p := range race.Predictions {
				select {
				case <-ctx.Done():
					return
				case work <- submission{raceID: race.ID, pred: p}:
				}
			}
		}
	}()
	wg.Wait()

	r.stats.PredictionsSubmitted = int(atomic.LoadInt64(&submitted))
	r.stats.PredictionsFailed = int(atomic.LoadInt64(&failed))
	r.log.Info(ctx, "predictions submitted",
		logger.Int("submitted", r.stats.PredictionsSubmitted),
		logger.Int("failed", r.stats.PredictionsFailed))
}

func (r *Runner) commitResults(ctx context.Context, s *Scenario) error {
	for _, race := range s.Races {
		res := race.Result()
		var resp struct {
			Scored int `json:"scored"`
		}
		path := "/races/" + url.PathEscape(race.ID) + "/result"
		body := map[string]any{
			"finish_positions":    res.FinishPositions,
			"head_to_head_winner": res.HeadToHeadWinner,
		}
		key := fmt.Sprintf("sim-%s-%d", race.ID, r.stats.StartTime.UnixNano())
		if err := r.client.JSON(ctx, http.MethodPut, path, body, &resp, idempotencyKey, key); err != nil {
			return fmt.Errorf("commit result %s: %w", race.ID, err)
		}
		r.stats.ResultsCommitted++
		r.stats.ScoresWritten += resp.Scored
	}
	return nil
}

func (r *Runner) verify(ctx context.Context, s *Scenario, rules scoring.Rules) ([]string, error) {
	var got []leaderboard.Standing
	if err := r.client.JSON(ctx, http.MethodGet, "/standings", nil, &got); err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}
	r.stats.StandingsRows = len(got)

	r.mu.Lock()
	want, err := Expected(s, r.accepted, rules)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	mismatches := Compare(want, got)
	r.stats.Mismatches = len(mismatches)
	return mismatches, nil
}

func (r *Runner) displayFinalStats(ctx context.Context) {
	var acceptRate float64
	if total := r.stats.PredictionsSubmitted + r.stats.PredictionsFailed; total > 0 {
		acceptRate = float64(r.stats.PredictionsSubmitted) / float64(total) * percentageFactor
	}
	r.log.Info(ctx, "final statistics",
		logger.Int("ridersCreated", r.stats.RidersCreated),
		logger.Int("racesCreated", r.stats.RacesCreated),
		logger.Int("predictionsSubmitted", r.stats.PredictionsSubmitted),
		logger.Int("predictionsFailed", r.stats.PredictionsFailed),
		logger.Int("resultsCommitted", r.stats.ResultsCommitted),
		logger.Int("scoresWritten", r.stats.ScoresWritten),
		logger.Int("standingsRows", r.stats.StandingsRows),
		logger.Int("mismatches", r.stats.Mismatches),
		logger.Float64("acceptRate", acceptRate),
		logger.String("duration", r.stats.Duration.String()),
	)
}

// Validate fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", model.ErrValidation)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.DeadlineIn <= 0 {
		c.DeadlineIn = 5 * time.Second
	}
	return nil
}
