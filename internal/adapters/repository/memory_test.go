package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/model"
)

func seedRace(ctx context.Context, s *repository.MemoryStore, id string) {
	So(s.CreateRace(ctx, model.Race{ID: id, Name: id, Date: time.Now(), RegistrationDeadline: time.Now()}), ShouldBeNil)
}

func TestMemoryStoreRegistry(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()

		Convey("Riders are inserted as a batch and sorted by name", func() {
			So(s.CreateRiders(ctx,
				model.Rider{ID: "2", FirstName: "Tadej", LastName: "Pogacar"},
				model.Rider{ID: "1", FirstName: "Mathieu", LastName: "van der Poel"},
				model.Rider{ID: "3", FirstName: "Jonas", LastName: "Vingegaard"},
			), ShouldBeNil)

			riders, err := s.ListRiders(ctx)
			So(err, ShouldBeNil)
			So([]string{riders[0].ID, riders[1].ID, riders[2].ID}, ShouldResemble, []string{"2", "3", "1"})

			Convey("A batch with a known id is rejected whole", func() {
				err := s.CreateRiders(ctx, model.Rider{ID: "9", LastName: "New"}, model.Rider{ID: "1", LastName: "Dup"})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
				_, err = s.GetRider(ctx, "9")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Deleting removes the rider", func() {
				So(s.DeleteRider(ctx, "1"), ShouldBeNil)
				So(errors.Is(s.DeleteRider(ctx, "1"), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Races are ordered by date", func() {
			day := func(d int) time.Time { return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC) }
			So(s.CreateRace(ctx, model.Race{ID: "roubaix", Date: day(12)}), ShouldBeNil)
			So(s.CreateRace(ctx, model.Race{ID: "ronde", Date: day(5)}), ShouldBeNil)
			So(errors.Is(s.CreateRace(ctx, model.Race{ID: "ronde"}), repository.ErrConflict), ShouldBeTrue)

			races, err := s.ListRaces(ctx)
			So(err, ShouldBeNil)
			So(races[0].ID, ShouldEqual, "ronde")
			So(races[1].ID, ShouldEqual, "roubaix")
		})

		Convey("Setups default to empty and require a race", func() {
			seedRace(ctx, s, "r1")
			setup, err := s.GetSetup(ctx, "r1")
			So(err, ShouldBeNil)
			So(setup.Candidates, ShouldBeEmpty)
			So(setup.HeadToHead, ShouldBeNil)

			So(errors.Is(s.PutSetup(ctx, model.RaceSetup{RaceID: "nope"}), repository.ErrNotFound), ShouldBeTrue)

			So(s.PutSetup(ctx, model.RaceSetup{RaceID: "r1", Candidates: []string{"a", "b"}, HeadToHead: &model.HeadToHead{RiderA: "a", RiderB: "c"}}), ShouldBeNil)
			setup, _ = s.GetSetup(ctx, "r1")
			So(setup.Candidates, ShouldResemble, []string{"a", "b"})
			So(setup.HeadToHead.RiderB, ShouldEqual, "c")
		})

		Convey("A second prediction replaces the first", func() {
			seedRace(ctx, s, "r1")
			So(s.PutPrediction(ctx, model.Prediction{UserID: "u", RaceID: "r1", HeadToHeadPick: "a"}), ShouldBeNil)
			So(s.PutPrediction(ctx, model.Prediction{UserID: "u", RaceID: "r1", HeadToHeadPick: "b"}), ShouldBeNil)

			preds, err := s.ListPredictions(ctx, "r1")
			So(err, ShouldBeNil)
			So(len(preds), ShouldEqual, 1)
			So(preds[0].HeadToHeadPick, ShouldEqual, "b")
		})
	})
}

func TestMemoryStoreWithinRace(t *testing.T) {
	Convey("Given a race with committed scores", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		seedRace(ctx, s, "r1")

		commit := func(total int, users ...string) error {
			return s.WithinRace(ctx, "r1", func(ctx context.Context, tx repository.RaceTx) error {
				if err := tx.PutResult(ctx, model.ActualResult{RaceID: "r1", HeadToHeadWinner: fmt.Sprint(total)}); err != nil {
					return err
				}
				if err := tx.DeleteScores(ctx); err != nil {
					return err
				}
				rows := make([]model.Score, 0, len(users))
				for _, u := range users {
					rows = append(rows, model.Score{UserID: u, RaceID: "r1", TotalScore: total})
				}
				return tx.InsertScores(ctx, rows)
			})
		}
		So(commit(10, "u1", "u2"), ShouldBeNil)

		Convey("When the unit of work fails", func() {
			err := s.WithinRace(ctx, "r1", func(ctx context.Context, tx repository.RaceTx) error {
				So(tx.PutResult(ctx, model.ActualResult{RaceID: "r1", HeadToHeadWinner: "other"}), ShouldBeNil)
				So(tx.DeleteScores(ctx), ShouldBeNil)
				So(tx.InsertScores(ctx, []model.Score{{UserID: "u1", RaceID: "r1", TotalScore: 99}}), ShouldBeNil)

				staged, err := tx.Result(ctx)
				So(err, ShouldBeNil)
				So(staged.HeadToHeadWinner, ShouldEqual, "other")
				return errors.New("scoring failed")
			})

			Convey("Then result and scores keep their prior state", func() {
				So(err, ShouldNotBeNil)
				res, err := s.GetResult(ctx, "r1")
				So(err, ShouldBeNil)
				So(res.HeadToHeadWinner, ShouldEqual, "10")
				scores, _ := s.ListRaceScores(ctx, "r1")
				So(len(scores), ShouldEqual, 2)
				So(scores[0].TotalScore, ShouldEqual, 10)
			})
		})

		Convey("When it succeeds with fewer users", func() {
			So(commit(7, "u3"), ShouldBeNil)

			Convey("Then the score set is replaced, not merged", func() {
				scores, _ := s.ListRaceScores(ctx, "r1")
				So(len(scores), ShouldEqual, 1)
				So(scores[0].UserID, ShouldEqual, "u3")
				_, err := s.GetScore(ctx, "r1", "u1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When inserting without deleting first", func() {
			err := s.WithinRace(ctx, "r1", func(ctx context.Context, tx repository.RaceTx) error {
				return tx.InsertScores(ctx, []model.Score{{UserID: "u1", RaceID: "r1"}})
			})

			Convey("Then existing rows conflict", func() {
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When the race does not exist", func() {
			err := s.WithinRace(ctx, "ghost", func(context.Context, repository.RaceTx) error { return nil })

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the race is deleted", func() {
			So(s.DeleteRace(ctx, "r1"), ShouldBeNil)

			Convey("Then its result and scores go with it", func() {
				_, err := s.GetResult(ctx, "r1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				all, _ := s.ListScores(ctx)
				So(all, ShouldBeEmpty)
			})
		})

		Convey("When commits race with readers", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})
			partial := make(chan int, 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					scores, _ := s.ListRaceScores(ctx, "r1")
					if n := len(scores); n != 0 && n != 3 && n != 2 {
						select {
						case partial <- n:
						default:
						}
					}
				}
			}()
			for i := 0; i < 50; i++ {
				if i%2 == 0 {
					So(commit(i, "a", "b", "c"), ShouldBeNil)
				} else {
					So(commit(i, "a", "b"), ShouldBeNil)
				}
			}
			close(stop)
			wg.Wait()

			Convey("Then readers only ever see whole score sets", func() {
				So(len(partial), ShouldEqual, 0)
			})
		})
	})
}
