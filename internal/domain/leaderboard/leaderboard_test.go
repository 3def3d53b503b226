package leaderboard_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
)

func row(user, race string, total int) model.Score {
	return model.Score{UserID: user, RaceID: race, TotalScore: total}
}

func TestBuildStandings(t *testing.T) {
	Convey("Given three users over two races", t, func() {
		scores := []model.Score{
			row("U1", "race1", 10), row("U1", "race2", 5),
			row("U2", "race1", 8), row("U2", "race2", 8),
			row("U3", "race2", 20),
		}
		got := leaderboard.BuildStandings(scores, []string{"race1", "race2"})

		Convey("Then totals are summed and sorted descending", func() {
			So(len(got), ShouldEqual, 3)
			So(got[0].UserID, ShouldEqual, "U3")
			So(got[0].Total, ShouldEqual, 20)
			So(got[1].UserID, ShouldEqual, "U2")
			So(got[1].Total, ShouldEqual, 16)
			So(got[2].UserID, ShouldEqual, "U1")
			So(got[2].Total, ShouldEqual, 15)
		})

		Convey("Then the missing race shows the no-score marker", func() {
			want := []leaderboard.Cell{
				{RaceID: "race1", Scored: false},
				{RaceID: "race2", Points: 20, Scored: true},
			}
			if diff := cmp.Diff(want, got[0].Cells); diff != "" {
				t.Errorf("cells mismatch (-want +got):\n%s", diff)
			}
			So(got[0].RacesScored, ShouldEqual, 1)
		})

		Convey("Then running totals skip unscored races", func() {
			So(leaderboard.Cumulative(got[0]), ShouldResemble, []int{0, 20})
			So(leaderboard.Cumulative(got[2]), ShouldResemble, []int{10, 15})
		})
	})

	Convey("Given equal totals", t, func() {
		scores := []model.Score{
			row("zoe", "r", 12), row("adam", "r", 12), row("mia", "r", 20), row("bob", "r", 3),
		}
		got := leaderboard.BuildStandings(scores, []string{"r"})

		Convey("Then ties break by user id ascending and share a rank", func() {
			ids := []string{got[0].UserID, got[1].UserID, got[2].UserID, got[3].UserID}
			So(ids, ShouldResemble, []string{"mia", "adam", "zoe", "bob"})
			ranks := []int{got[0].Rank, got[1].Rank, got[2].Rank, got[3].Rank}
			So(ranks, ShouldResemble, []int{1, 2, 2, 4})
		})

		Convey("Then rebuilding from shuffled input gives the same order", func() {
			again := leaderboard.BuildStandings([]model.Score{scores[3], scores[1], scores[2], scores[0]}, []string{"r"})
			So(cmp.Diff(got, again), ShouldBeEmpty)
		})
	})

	Convey("Given no score rows", t, func() {
		Convey("Then nobody is listed", func() {
			So(leaderboard.BuildStandings(nil, []string{"r"}), ShouldBeEmpty)
		})
	})

	Convey("Given a zero total on a scored race", t, func() {
		got := leaderboard.BuildStandings([]model.Score{row("u", "r", 0)}, []string{"r"})

		Convey("Then the user is listed with a scored zero cell", func() {
			So(len(got), ShouldEqual, 1)
			So(got[0].Cells[0], ShouldResemble, leaderboard.Cell{RaceID: "r", Points: 0, Scored: true})
		})
	})

	Convey("Given rows for a race outside the order", t, func() {
		got := leaderboard.BuildStandings([]model.Score{row("u", "a", 4), row("u", "hidden", 6)}, []string{"a"})

		Convey("Then it counts toward the total without a cell", func() {
			So(got[0].Total, ShouldEqual, 10)
			So(len(got[0].Cells), ShouldEqual, 1)
		})
	})
}

func TestRaceOrderAndHelpers(t *testing.T) {
	Convey("Given races on different dates", t, func() {
		day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
		races := []model.Race{
			{ID: "lbl", Date: day(20)},
			{ID: "msr", Date: day(14)},
			{ID: "e3", Date: day(20)},
			{ID: "unscored", Date: day(1)},
		}
		scored := leaderboard.ScoredRaces([]model.Score{row("u", "lbl", 1), row("u", "msr", 1), row("u", "e3", 1)})

		Convey("Then only scored races are ordered by date then id", func() {
			So(leaderboard.RaceOrder(races, scored), ShouldResemble, []string{"msr", "e3", "lbl"})
		})
	})

	Convey("Given standings", t, func() {
		st := leaderboard.BuildStandings([]model.Score{row("a", "r", 3), row("b", "r", 2), row("c", "r", 1)}, nil)

		Convey("Then Top limits and display names decorate", func() {
			So(len(leaderboard.Top(st, 2)), ShouldEqual, 2)
			So(len(leaderboard.Top(st, 0)), ShouldEqual, 3)
			named := leaderboard.WithDisplayNames(st, map[string]string{"a": "Annemiek"})
			So(named[0].DisplayName, ShouldEqual, "Annemiek")
			So(named[1].DisplayName, ShouldEqual, "")
		})
	})
}
