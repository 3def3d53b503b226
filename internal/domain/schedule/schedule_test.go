package schedule_test

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/domain/schedule"
)

func TestDeadlineParser(t *testing.T) {
	Convey("Given a parser in Brussels time on a fixed Wednesday", t, func() {
		loc, err := time.LoadLocation("Europe/Brussels")
		So(err, ShouldBeNil)
		now := time.Date(2026, 3, 25, 10, 0, 0, 0, loc)
		p := schedule.NewDeadlineParser(loc, schedule.FixedClock{T: now})

		Convey("RFC 3339 input keeps its own offset", func() {
			got, err := p.Parse("2026-04-05T09:00:00Z")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC))
		})

		Convey("Zone-less layouts are read in the parser zone", func() {
			got, err := p.Parse("2026-04-05 11:00")
			So(err, ShouldBeNil)
			So(got, ShouldEqual, time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC))
		})

		Convey("Natural language resolves relative to the clock", func() {
			got, err := p.Parse("tomorrow at 9am")
			So(err, ShouldBeNil)
			So(got.In(loc).Day(), ShouldEqual, 26)
			So(got.In(loc).Hour(), ShouldEqual, 9)
		})

		Convey("Compact clock times are normalized", func() {
			got, err := p.Parse("tomorrow 930am")
			So(err, ShouldBeNil)
			So(got.In(loc).Minute(), ShouldEqual, 30)
		})

		Convey("Garbage is rejected", func() {
			_, err := p.Parse("qwxz plkj")
			So(errors.Is(err, schedule.ErrUnrecognizedDeadline), ShouldBeTrue)

			_, err = p.Parse("   ")
			So(errors.Is(err, schedule.ErrUnrecognizedDeadline), ShouldBeTrue)
		})
	})

	Convey("IsOpen compares against the clock", t, func() {
		deadline := time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC)
		So(schedule.IsOpen(schedule.FixedClock{T: deadline.Add(-time.Second)}, deadline), ShouldBeTrue)
		So(schedule.IsOpen(schedule.FixedClock{T: deadline}, deadline), ShouldBeFalse)
	})
}
