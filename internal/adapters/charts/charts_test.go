package charts

import (
	"bytes"
	"image/png"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
)

func TestCumulative(t *testing.T) {
	Convey("Given standings over two races", t, func() {
		races := []model.Race{{ID: "r1", Name: "Strade Bianche"}, {ID: "r2", Name: "Paris-Roubaix"}}
		standings := leaderboard.BuildStandings([]model.Score{
			{UserID: "u1", RaceID: "r1", TotalScore: 10},
			{UserID: "u1", RaceID: "r2", TotalScore: 5},
			{UserID: "u2", RaceID: "r2", TotalScore: 20},
		}, []string{"r1", "r2"})

		Convey("When rendered", func() {
			data, err := Cumulative(standings, races, 0)

			Convey("Then a decodable PNG of the requested size comes back", func() {
				So(err, ShouldBeNil)
				img, err := png.Decode(bytes.NewReader(data))
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, width)
				So(img.Bounds().Dy(), ShouldEqual, height)
			})
		})
	})

	Convey("No standings render a placeholder", t, func() {
		data, err := Cumulative(nil, nil, 5)
		So(err, ShouldBeNil)
		img, err := png.Decode(bytes.NewReader(data))
		So(err, ShouldBeNil)
		So(img.Bounds().Dx(), ShouldEqual, 400)
	})
}

func TestCumulativeSingleRace(t *testing.T) {
	Convey("A single race with zero points still renders", t, func() {
		standings := leaderboard.BuildStandings([]model.Score{{UserID: "u1", RaceID: "r1"}}, []string{"r1"})
		data, err := Cumulative(standings, nil, 3)
		So(err, ShouldBeNil)
		So(len(data), ShouldBeGreaterThan, 0)
	})
}
