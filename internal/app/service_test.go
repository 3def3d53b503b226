package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/velopick/internal/app"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var (
	raceDay  = time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
	deadline = raceDay.Add(9*time.Hour + 30*time.Minute)
)

type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	clock *testClock
	svc   *service.Service
}

func newFixture(opts ...service.Option) *fixture {
	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		clock: &testClock{t: deadline.Add(-24 * time.Hour)},
	}
	opts = append([]service.Option{service.WithClock(f.clock), service.WithScoringWorkers(4)}, opts...)
	f.svc = service.New(f.store, opts...)

	for _, id := range []string{"r1", "r2", "r3", "r4", "r5", "r6"} {
		_, err := f.svc.CreateRider(f.ctx, model.Rider{ID: id, FirstName: "Rider", LastName: id})
		So(err, ShouldBeNil)
	}
	_, err := f.svc.CreateRace(f.ctx, model.Race{ID: "rvv", Name: "Ronde van Vlaanderen", Date: raceDay, RegistrationDeadline: deadline, IsMonument: true})
	So(err, ShouldBeNil)
	_, err = f.svc.ConfigureRace(f.ctx, model.RaceSetup{
		RaceID:     "rvv",
		Candidates: []string{"r1", "r2", "r3", "r4", "r5"},
		HeadToHead: &model.HeadToHead{RiderA: "r1", RiderB: "r2"},
	})
	So(err, ShouldBeNil)
	return f
}

func fullPrediction(userID string) model.Prediction {
	return model.Prediction{
		UserID:   userID,
		RaceID:   "rvv",
		TopPicks: []model.Pick{{RiderID: "r1", Position: 1}, {RiderID: "r2", Position: 2}, {RiderID: "r3", Position: 3}},
		RankedCandidates: []model.RankedPick{
			{RiderID: "r1", PredictedPosition: 1},
			{RiderID: "r2", PredictedPosition: 2},
			{RiderID: "r3", PredictedPosition: 3},
			{RiderID: "r4", PredictedPosition: 4},
			{RiderID: "r5", PredictedPosition: 5},
		},
		HeadToHeadPick: "r1",
	}
}

func rvvResult() model.ActualResult {
	return model.ActualResult{
		RaceID:           "rvv",
		FinishPositions:  map[string]int{"r1": 1, "r4": 2, "r2": 3, "r5": 4, "r3": 5},
		HeadToHeadWinner: "r1",
	}
}

func TestSubmitPrediction(t *testing.T) {
	Convey("Given an open race with a pool and a duel", t, func() {
		f := newFixture()

		Convey("When a complete prediction is submitted", func() {
			p, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))

			Convey("Then it is stored with an id and timestamp", func() {
				So(err, ShouldBeNil)
				So(p.ID, ShouldNotBeEmpty)
				So(p.UpdatedAt.Equal(f.clock.Now()), ShouldBeTrue)
				got, err := f.svc.GetPrediction(f.ctx, "rvv", "u1")
				So(err, ShouldBeNil)
				So(got.HeadToHeadPick, ShouldEqual, "r1")
			})

			Convey("And a second submission replaces it", func() {
				again := fullPrediction("u1")
				again.TopPicks = nil
				again.HeadToHeadPick = "r2"
				_, err := f.svc.SubmitPrediction(f.ctx, again)
				So(err, ShouldBeNil)

				got, err := f.svc.GetPrediction(f.ctx, "rvv", "u1")
				So(err, ShouldBeNil)
				So(got.TopPicks, ShouldBeEmpty)
				So(got.HeadToHeadPick, ShouldEqual, "r2")
			})
		})

		Convey("When the deadline has passed", func() {
			f.clock.Set(deadline)
			_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))

			Convey("Then registration is closed", func() {
				So(errors.Is(err, service.ErrRegistrationClosed), ShouldBeTrue)
			})
		})

		Convey("When inputs do not match the race", func() {
			unknown := fullPrediction("u1")
			unknown.TopPicks[2].RiderID = "nobody"

			partial := fullPrediction("u1")
			partial.RankedCandidates = partial.RankedCandidates[:3]

			outsider := fullPrediction("u1")
			outsider.RankedCandidates[4].RiderID = "r6"

			wrongDuel := fullPrediction("u1")
			wrongDuel.HeadToHeadPick = "r3"

			twoPicks := fullPrediction("u1")
			twoPicks.TopPicks = twoPicks.TopPicks[:2]

			Convey("Then each is rejected as a validation error", func() {
				_, err := f.svc.SubmitPrediction(f.ctx, unknown)
				So(errors.Is(err, service.ErrUnknownRider), ShouldBeTrue)

				_, err = f.svc.SubmitPrediction(f.ctx, partial)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

				_, err = f.svc.SubmitPrediction(f.ctx, outsider)
				So(errors.Is(err, service.ErrNotInPool), ShouldBeTrue)

				_, err = f.svc.SubmitPrediction(f.ctx, wrongDuel)
				So(errors.Is(err, service.ErrNotContender), ShouldBeTrue)

				_, err = f.svc.SubmitPrediction(f.ctx, twoPicks)
				So(errors.Is(err, scoring.ErrWrongPickCount), ShouldBeTrue)

				_, err = f.svc.GetPrediction(f.ctx, "rvv", "u1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the race does not exist", func() {
			p := fullPrediction("u1")
			p.RaceID = "lbl"
			_, err := f.svc.SubmitPrediction(f.ctx, p)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestListRacePredictions(t *testing.T) {
	Convey("Given a submitted prediction", t, func() {
		f := newFixture()
		_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))
		So(err, ShouldBeNil)

		Convey("Predictions stay hidden while registration is open", func() {
			_, err := f.svc.ListRacePredictions(f.ctx, "rvv")
			So(errors.Is(err, service.ErrPredictionsHidden), ShouldBeTrue)
		})

		Convey("Predictions are listed after the deadline", func() {
			f.clock.Set(deadline.Add(time.Minute))
			list, err := f.svc.ListRacePredictions(f.ctx, "rvv")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
		})
	})
}

func TestCommitResult(t *testing.T) {
	Convey("Given two predictions on a race", t, func() {
		f := newFixture()
		_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))
		So(err, ShouldBeNil)
		_, err = f.svc.SubmitPrediction(f.ctx, model.Prediction{UserID: "u2", RaceID: "rvv", HeadToHeadPick: "r2"})
		So(err, ShouldBeNil)
		f.clock.Set(raceDay.Add(18 * time.Hour))

		Convey("When the result is committed", func() {
			scores, err := f.svc.CommitResult(f.ctx, rvvResult())

			Convey("Then every prediction gets a score row", func() {
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)
				So(scores[0].UserID, ShouldEqual, "u1")
				So(scores[0].TopPicksScore, ShouldEqual, 15)
				So(scores[0].RankedScore, ShouldEqual, 15)
				So(scores[0].HeadToHeadScore, ShouldEqual, 5)
				So(scores[0].TotalScore, ShouldEqual, 35)
				So(scores[0].Variant, ShouldEqual, "A")
				So(scores[1].TotalScore, ShouldEqual, 0)
			})

			Convey("And the detail adds up to the stored total", func() {
				d, err := f.svc.ScoreDetail(f.ctx, "u1", "rvv")
				So(err, ShouldBeNil)
				So(d.Stored, ShouldNotBeNil)
				So(d.Sum(), ShouldEqual, d.Stored.TotalScore)
				So(d.TopPicks, ShouldHaveLength, 3)
				So(d.TopPicks[1].Points, ShouldEqual, 5)
			})

			Convey("And committing the same result again yields the same scores", func() {
				So(err, ShouldBeNil)
				f.clock.Set(raceDay.Add(19 * time.Hour))
				again, err := f.svc.CommitResult(f.ctx, rvvResult())
				So(err, ShouldBeNil)
				So(cmp.Diff(scores, again, cmpopts.IgnoreFields(model.Score{}, "ComputedAt")), ShouldBeEmpty)
			})

			Convey("And a pool change rescores the race before returning", func() {
				So(err, ShouldBeNil)
				_, err := f.svc.ConfigureRace(f.ctx, model.RaceSetup{
					RaceID:     "rvv",
					Candidates: []string{"r1", "r2", "r4", "r5"},
					HeadToHead: &model.HeadToHead{RiderA: "r1", RiderB: "r2"},
				})
				So(err, ShouldBeNil)

				d, err := f.svc.ScoreDetail(f.ctx, "u1", "rvv")
				So(err, ShouldBeNil)
				So(d.Stored, ShouldNotBeNil)
				So(d.Stored.RankedScore, ShouldEqual, 13)
				So(d.Stored.TotalScore, ShouldEqual, 33)
				So(d.Sum(), ShouldEqual, d.Stored.TotalScore)
			})

			Convey("And a bad second commit leaves the first in place", func() {
				bad := rvvResult()
				bad.FinishPositions = map[string]int{"r2": 1}
				bad.HeadToHeadWinner = "r3"
				_, err := f.svc.CommitResult(f.ctx, bad)
				So(errors.Is(err, service.ErrNotContender), ShouldBeTrue)

				res, err := f.store.GetResult(f.ctx, "rvv")
				So(err, ShouldBeNil)
				So(res.FinishPositions["r1"], ShouldEqual, 1)
				stored, err := f.svc.RaceScores(f.ctx, "rvv")
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 2)
				So(stored[0].TotalScore, ShouldEqual, 35)
			})

			Convey("And a corrected result replaces the scores", func() {
				fixed := rvvResult()
				fixed.FinishPositions = map[string]int{"r2": 1, "r1": 2}
				fixed.HeadToHeadWinner = "r2"
				scores, err := f.svc.CommitResult(f.ctx, fixed)
				So(err, ShouldBeNil)
				So(scores[0].HeadToHeadScore, ShouldEqual, 0)
				So(scores[1].TotalScore, ShouldEqual, 5)

				again, err := f.svc.RecomputeRace(f.ctx, "rvv")
				So(err, ShouldBeNil)
				So(again[1].TotalScore, ShouldEqual, 5)
			})
		})

		Convey("When the result has an invalid position", func() {
			bad := rvvResult()
			bad.FinishPositions["r6"] = 0
			_, err := f.svc.CommitResult(f.ctx, bad)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When recomputing a race without a result", func() {
			_, err := f.svc.RecomputeRace(f.ctx, "rvv")
			So(errors.Is(err, service.ErrNoResult), ShouldBeTrue)
		})
	})
}

func seedScores(f *fixture, raceID string, totals map[string]int) {
	err := f.store.WithinRace(f.ctx, raceID, func(ctx context.Context, tx repository.RaceTx) error {
		var rows []model.Score
		for user, total := range totals {
			rows = append(rows, model.Score{UserID: user, RaceID: raceID, TotalScore: total, Variant: "A"})
		}
		return tx.InsertScores(ctx, rows)
	})
	So(err, ShouldBeNil)
}

func TestStandings(t *testing.T) {
	Convey("Given three users over two races", t, func() {
		f := newFixture()
		_, err := f.svc.CreateRace(f.ctx, model.Race{ID: "pr", Name: "Paris-Roubaix", Date: raceDay.AddDate(0, 0, 7), RegistrationDeadline: deadline.AddDate(0, 0, 7)})
		So(err, ShouldBeNil)
		seedScores(f, "rvv", map[string]int{"U1": 10, "U2": 8})
		seedScores(f, "pr", map[string]int{"U1": 5, "U2": 8, "U3": 20})
		_, err = f.svc.UpsertParticipant(f.ctx, model.Participant{UserID: "U2", DisplayName: "Eddy"})
		So(err, ShouldBeNil)

		rows, err := f.svc.Standings(f.ctx)
		So(err, ShouldBeNil)

		Convey("Then they are ordered by total", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0].UserID, ShouldEqual, "U3")
			So(rows[0].Total, ShouldEqual, 20)
			So(rows[1].UserID, ShouldEqual, "U2")
			So(rows[1].Total, ShouldEqual, 16)
			So(rows[1].DisplayName, ShouldEqual, "Eddy")
			So(rows[2].UserID, ShouldEqual, "U1")
			So(rows[2].Total, ShouldEqual, 15)
		})

		Convey("Then the missing race is marked unscored", func() {
			So(rows[0].Cells, ShouldHaveLength, 2)
			So(rows[0].Cells[0].RaceID, ShouldEqual, "rvv")
			So(rows[0].Cells[0].Scored, ShouldBeFalse)
			So(rows[0].Cells[1].Points, ShouldEqual, 20)
		})

		Convey("Then the result is cached until a write", func() {
			So(f.svc.GetStats()["standingsCached"], ShouldEqual, true)
			_, err := f.svc.UpsertParticipant(f.ctx, model.Participant{UserID: "U1", DisplayName: "Fausto"})
			So(err, ShouldBeNil)
			So(f.svc.GetStats()["standingsCached"], ShouldEqual, false)

			rows, err := f.svc.Standings(f.ctx)
			So(err, ShouldBeNil)
			So(rows[2].DisplayName, ShouldEqual, "Fausto")
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty service", t, func() {
		f := newFixture()

		Convey("Riders get slug ids and imports are all-or-nothing", func() {
			r, err := f.svc.CreateRider(f.ctx, model.Rider{FirstName: "Tadej", LastName: "Pogačar", Nationality: "slo"})
			So(err, ShouldBeNil)
			So(r.ID, ShouldEqual, "tadej-pogacar")
			So(r.Nationality, ShouldEqual, "SLO")

			_, err = f.svc.ImportRiders(f.ctx, []byte("Mads Pedersen, Lidl-Trek, DEN\nTadej Pogačar, UAE, SLO\n"))
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			_, err = f.svc.ImportRiders(f.ctx, []byte("Mads Pedersen, Lidl-Trek, DEN\nJasper Philipsen, Alpecin, BEL\n"))
			So(err, ShouldBeNil)

			riders, err := f.svc.ListRiders(f.ctx)
			So(err, ShouldBeNil)
			So(riders, ShouldHaveLength, 9)
		})

		Convey("Races reject unknown variants and setups reject unknown riders", func() {
			_, err := f.svc.CreateRace(f.ctx, model.Race{ID: "x", Name: "X", RegistrationDeadline: deadline, RuleVariant: "C"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			race, err := f.svc.CreateRace(f.ctx, model.Race{ID: "y", Name: "Y", RegistrationDeadline: deadline, RuleVariant: "b_finish_value"})
			So(err, ShouldBeNil)
			So(race.RuleVariant, ShouldEqual, "B")

			_, err = f.svc.ConfigureRace(f.ctx, model.RaceSetup{RaceID: "y", Candidates: []string{"r1", "ghost"}})
			So(errors.Is(err, service.ErrUnknownRider), ShouldBeTrue)

			_, err = f.svc.ConfigureRace(f.ctx, model.RaceSetup{RaceID: "y", Candidates: []string{"r1", "r2", "r3", "r4", "r5", "r6"}})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Deleting a race removes its predictions", func() {
			_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))
			So(err, ShouldBeNil)
			So(f.svc.DeleteRace(f.ctx, "rvv"), ShouldBeNil)
			_, err = f.svc.GetPrediction(f.ctx, "rvv", "u1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(service.WithRecomputeWorkers(2), service.WithQueueSize(10))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(f.svc.Start(ctx), ShouldBeNil)
		defer f.svc.Stop(context.Background())

		So(f.svc.GetStats()["started"], ShouldEqual, true)

		_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))
		So(err, ShouldBeNil)
		_, err = f.svc.CommitResult(f.ctx, rvvResult())
		So(err, ShouldBeNil)

		Convey("When every race is recomputed", func() {
			n, err := f.svc.RecomputeAll(ctx)

			Convey("Then the workers process the job", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				processed := func() bool { return f.svc.GetStats()["jobsProcessed"] == int64(1) }
				deadline := time.Now().Add(3 * time.Second)
				for !processed() && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(processed(), ShouldBeTrue)
			})
		})

		Convey("When standings are read after the commit", func() {
			rows, err := f.svc.Standings(f.ctx)

			Convey("Then they reflect the new scores", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Total, ShouldEqual, 35)
			})
		})
	})

	Convey("Given a started service with a recompute in flight", t, func() {
		slow := &slowStore{MemoryStore: repository.NewMemoryStore(), delay: 300 * time.Millisecond}
		f := &fixture{ctx: context.Background(), store: slow.MemoryStore, clock: &testClock{t: deadline.Add(-24 * time.Hour)}}
		f.svc = service.New(slow, service.WithClock(f.clock), service.WithRecomputeWorkers(1))
		_, err := f.svc.CreateRace(f.ctx, model.Race{ID: "rvv", Name: "Ronde van Vlaanderen", Date: raceDay, RegistrationDeadline: deadline})
		So(err, ShouldBeNil)
		_, err = f.svc.CommitResult(f.ctx, model.ActualResult{RaceID: "rvv", FinishPositions: map[string]int{"r1": 1}})
		So(err, ShouldBeNil)
		So(f.svc.Start(f.ctx), ShouldBeNil)

		slow.slowed.Store(true)
		n, err := f.svc.RecomputeAll(f.ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
		time.Sleep(50 * time.Millisecond)

		Convey("Stop waits for the job instead of the shutdown timeout", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			begin := time.Now()
			f.svc.Stop(ctx)
			So(time.Since(begin), ShouldBeLessThan, time.Second)
			So(ctx.Err(), ShouldBeNil)
			So(f.svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("RecomputeAll needs a started service", t, func() {
		f := newFixture()
		_, err := f.svc.SubmitPrediction(f.ctx, fullPrediction("u1"))
		So(err, ShouldBeNil)
		_, err = f.svc.CommitResult(f.ctx, rvvResult())
		So(err, ShouldBeNil)
		_, err = f.svc.RecomputeAll(f.ctx)
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}

// slowStore delays the race unit of work once slowed is set.
type slowStore struct {
	*repository.MemoryStore
	delay  time.Duration
	slowed atomic.Bool
}

func (s *slowStore) WithinRace(ctx context.Context, raceID string, fn func(ctx context.Context, tx repository.RaceTx) error) error {
	if s.slowed.Load() {
		time.Sleep(s.delay)
	}
	return s.MemoryStore.WithinRace(ctx, raceID, fn)
}
