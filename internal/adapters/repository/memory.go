package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/metrics"
)

// MemoryStore keeps everything in process memory. Each race has its own
// mutex serializing WithinRace; staged writes are applied under the store
// lock in one step so readers never see a half-replaced score set.
type MemoryStore struct {
	mu           sync.RWMutex
	riders       map[string]model.Rider
	races        map[string]model.Race
	setups       map[string]model.RaceSetup
	predictions  map[string]map[string]model.Prediction // race -> user
	results      map[string]model.ActualResult
	scores       map[string]map[string]model.Score // race -> user
	participants map[string]model.Participant

	locksMu   sync.Mutex
	raceLocks map[string]*sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		riders:       make(map[string]model.Rider),
		races:        make(map[string]model.Race),
		setups:       make(map[string]model.RaceSetup),
		predictions:  make(map[string]map[string]model.Prediction),
		results:      make(map[string]model.ActualResult),
		scores:       make(map[string]map[string]model.Score),
		participants: make(map[string]model.Participant),
		raceLocks:    make(map[string]*sync.Mutex),
	}
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000, *err)
}

func (s *MemoryStore) CreateRiders(_ context.Context, riders ...model.Rider) (err error) {
	defer observe("create_riders", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(riders))
	for _, r := range riders {
		if _, ok := s.riders[r.ID]; ok {
			return fmt.Errorf("rider %s: %w", r.ID, ErrConflict)
		}
		if _, ok := batch[r.ID]; ok {
			return fmt.Errorf("rider %s: %w", r.ID, ErrConflict)
		}
		batch[r.ID] = struct{}{}
	}
	for _, r := range riders {
		s.riders[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) GetRider(_ context.Context, id string) (model.Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.riders[id]
	if !ok {
		return model.Rider{}, fmt.Errorf("rider %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListRiders(_ context.Context) ([]model.Rider, error) {
	s.mu.RLock()
	out := make([]model.Rider, 0, len(s.riders))
	for _, r := range s.riders {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteRider(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.riders[id]; !ok {
		return fmt.Errorf("rider %s: %w", id, ErrNotFound)
	}
	delete(s.riders, id)
	return nil
}

func (s *MemoryStore) CreateRace(_ context.Context, race model.Race) (err error) {
	defer observe("create_race", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[race.ID]; ok {
		return fmt.Errorf("race %s: %w", race.ID, ErrConflict)
	}
	s.races[race.ID] = race
	return nil
}

func (s *MemoryStore) GetRace(_ context.Context, id string) (model.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.races[id]
	if !ok {
		return model.Race{}, fmt.Errorf("race %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListRaces(_ context.Context) ([]model.Race, error) {
	s.mu.RLock()
	out := make([]model.Race, 0, len(s.races))
	for _, r := range s.races {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteRace(_ context.Context, id string) error {
	lock := s.raceLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[id]; !ok {
		return fmt.Errorf("race %s: %w", id, ErrNotFound)
	}
	delete(s.races, id)
	delete(s.setups, id)
	delete(s.predictions, id)
	delete(s.results, id)
	delete(s.scores, id)
	return nil
}

func (s *MemoryStore) PutSetup(_ context.Context, setup model.RaceSetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[setup.RaceID]; !ok {
		return fmt.Errorf("race %s: %w", setup.RaceID, ErrNotFound)
	}
	s.setups[setup.RaceID] = cloneSetup(setup)
	return nil
}

func (s *MemoryStore) GetSetup(_ context.Context, raceID string) (model.RaceSetup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setupLocked(raceID), nil
}

func (s *MemoryStore) setupLocked(raceID string) model.RaceSetup {
	setup, ok := s.setups[raceID]
	if !ok {
		return model.RaceSetup{RaceID: raceID}
	}
	return cloneSetup(setup)
}

func (s *MemoryStore) PutPrediction(_ context.Context, p model.Prediction) (err error) {
	defer observe("put_prediction", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[p.RaceID]; !ok {
		return fmt.Errorf("race %s: %w", p.RaceID, ErrNotFound)
	}
	byUser, ok := s.predictions[p.RaceID]
	if !ok {
		byUser = make(map[string]model.Prediction)
		s.predictions[p.RaceID] = byUser
	}
	byUser[p.UserID] = clonePrediction(p)
	return nil
}

func (s *MemoryStore) GetPrediction(_ context.Context, raceID, userID string) (model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predictions[raceID][userID]
	if !ok {
		return model.Prediction{}, fmt.Errorf("prediction %s/%s: %w", raceID, userID, ErrNotFound)
	}
	return clonePrediction(p), nil
}

func (s *MemoryStore) ListPredictions(_ context.Context, raceID string) ([]model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predictionsLocked(raceID), nil
}

func (s *MemoryStore) predictionsLocked(raceID string) []model.Prediction {
	byUser := s.predictions[raceID]
	out := make([]model.Prediction, 0, len(byUser))
	for _, p := range byUser {
		out = append(out, clonePrediction(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *MemoryStore) GetResult(_ context.Context, raceID string) (model.ActualResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[raceID]
	if !ok {
		return model.ActualResult{}, fmt.Errorf("result %s: %w", raceID, ErrNotFound)
	}
	return cloneResult(r), nil
}

func (s *MemoryStore) ResultRaceIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.results))
	for id := range s.results {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) ListScores(_ context.Context) (out []model.Score, err error) {
	defer observe("list_scores", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, byUser := range s.scores {
		for _, sc := range byUser {
			out = append(out, sc)
		}
	}
	sortScores(out)
	return out, nil
}

func (s *MemoryStore) ListRaceScores(_ context.Context, raceID string) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.scores[raceID]
	out := make([]model.Score, 0, len(byUser))
	for _, sc := range byUser {
		out = append(out, sc)
	}
	sortScores(out)
	return out, nil
}

func (s *MemoryStore) GetScore(_ context.Context, raceID, userID string) (model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scores[raceID][userID]
	if !ok {
		return model.Score{}, fmt.Errorf("score %s/%s: %w", raceID, userID, ErrNotFound)
	}
	return sc, nil
}

func (s *MemoryStore) PutParticipant(_ context.Context, p model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.UserID] = p
	return nil
}

func (s *MemoryStore) ListParticipants(_ context.Context) ([]model.Participant, error) {
	s.mu.RLock()
	out := make([]model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) raceLock(raceID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.raceLocks[raceID]
	if !ok {
		l = &sync.Mutex{}
		s.raceLocks[raceID] = l
	}
	return l
}

// WithinRace implements Store.
func (s *MemoryStore) WithinRace(ctx context.Context, raceID string, fn func(ctx context.Context, tx RaceTx) error) (err error) {
	defer observe("within_race", time.Now(), &err)

	lock := s.raceLock(raceID)
	lock.Lock()
	defer lock.Unlock()

	race, err := s.GetRace(ctx, raceID)
	if err != nil {
		return err
	}

	tx := &memoryTx{store: s, race: race}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[raceID]; !ok {
		return fmt.Errorf("race %s: %w", raceID, ErrNotFound)
	}
	if tx.result != nil {
		s.results[raceID] = *tx.result
	}
	if tx.scoresDeleted {
		s.scores[raceID] = tx.scores
	} else {
		for userID, sc := range tx.scores {
			if s.scores[raceID] == nil {
				s.scores[raceID] = make(map[string]model.Score)
			}
			s.scores[raceID][userID] = sc
		}
	}
	return nil
}

// memoryTx stages writes until WithinRace commits them.
type memoryTx struct {
	store         *MemoryStore
	race          model.Race
	result        *model.ActualResult
	scoresDeleted bool
	scores        map[string]model.Score
}

func (t *memoryTx) Race() model.Race { return t.race }

func (t *memoryTx) Setup(ctx context.Context) (model.RaceSetup, error) {
	return t.store.GetSetup(ctx, t.race.ID)
}

func (t *memoryTx) Result(ctx context.Context) (model.ActualResult, error) {
	if t.result != nil {
		return cloneResult(*t.result), nil
	}
	return t.store.GetResult(ctx, t.race.ID)
}

func (t *memoryTx) PutResult(_ context.Context, r model.ActualResult) error {
	if r.RaceID != t.race.ID {
		return fmt.Errorf("result for race %s written in race %s: %w", r.RaceID, t.race.ID, model.ErrValidation)
	}
	c := cloneResult(r)
	t.result = &c
	return nil
}

func (t *memoryTx) Predictions(ctx context.Context) ([]model.Prediction, error) {
	return t.store.ListPredictions(ctx, t.race.ID)
}

func (t *memoryTx) DeleteScores(_ context.Context) error {
	t.scoresDeleted = true
	t.scores = make(map[string]model.Score)
	return nil
}

func (t *memoryTx) InsertScores(_ context.Context, scores []model.Score) error {
	if t.scores == nil {
		t.scores = make(map[string]model.Score, len(scores))
	}
	for _, sc := range scores {
		if sc.RaceID != t.race.ID {
			return fmt.Errorf("score for race %s written in race %s: %w", sc.RaceID, t.race.ID, model.ErrValidation)
		}
		if _, dup := t.scores[sc.UserID]; dup {
			return fmt.Errorf("score %s/%s: %w", sc.RaceID, sc.UserID, ErrConflict)
		}
		if !t.scoresDeleted {
			t.store.mu.RLock()
			_, exists := t.store.scores[t.race.ID][sc.UserID]
			t.store.mu.RUnlock()
			if exists {
				return fmt.Errorf("score %s/%s: %w", sc.RaceID, sc.UserID, ErrConflict)
			}
		}
		t.scores[sc.UserID] = sc
	}
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func sortScores(scores []model.Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].RaceID != scores[j].RaceID {
			return scores[i].RaceID < scores[j].RaceID
		}
		return scores[i].UserID < scores[j].UserID
	})
}

func clonePrediction(p model.Prediction) model.Prediction {
	p.TopPicks = append([]model.Pick(nil), p.TopPicks...)
	p.RankedCandidates = append([]model.RankedPick(nil), p.RankedCandidates...)
	return p
}

func cloneSetup(s model.RaceSetup) model.RaceSetup {
	s.Candidates = append([]string(nil), s.Candidates...)
	if s.HeadToHead != nil {
		h := *s.HeadToHead
		s.HeadToHead = &h
	}
	return s
}

func cloneResult(r model.ActualResult) model.ActualResult {
	r.FinishPositions = cloneMap(r.FinishPositions)
	r.CandidateOrder = cloneMap(r.CandidateOrder)
	return r
}

func cloneMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
