package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

func TestBus(t *testing.T) {
	Convey("Given a started bus with one subscriber", t, func() {
		So(logger.Init(), ShouldBeNil)
		bus, err := New(WithMaxRetries(2))
		So(err, ShouldBeNil)

		got := make(chan ScoresCommitted, 4)
		var attempts atomic.Int32
		failFirst := false
		So(bus.SubscribeScoresCommitted("test", func(_ context.Context, ev ScoresCommitted) error {
			if failFirst && attempts.Add(1) == 1 {
				return errors.New("transient")
			}
			got <- ev
			return nil
		}), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		Reset(func() {
			cancel()
			_ = bus.Close()
		})
		So(bus.Start(ctx), ShouldBeNil)

		ev := ScoresCommitted{
			RaceID:      "rvv",
			Scores:      []model.Score{{UserID: "u1", RaceID: "rvv", TotalScore: 15}},
			CommittedAt: time.Date(2026, 4, 5, 18, 0, 0, 0, time.UTC),
		}

		Convey("When an event is published", func() {
			So(bus.PublishScoresCommitted(context.Background(), ev), ShouldBeNil)

			Convey("Then the handler receives it", func() {
				select {
				case recv := <-got:
					So(recv.RaceID, ShouldEqual, "rvv")
					So(recv.Scores, ShouldHaveLength, 1)
					So(recv.Scores[0].TotalScore, ShouldEqual, 15)
					So(recv.CommittedAt.Equal(ev.CommittedAt), ShouldBeTrue)
				case <-time.After(2 * time.Second):
					So("timeout", ShouldBeEmpty)
				}
			})
		})

		Convey("When the handler fails once", func() {
			failFirst = true
			So(bus.PublishScoresCommitted(context.Background(), ev), ShouldBeNil)

			Convey("Then the retry middleware redelivers", func() {
				select {
				case recv := <-got:
					So(recv.RaceID, ShouldEqual, "rvv")
					So(attempts.Load(), ShouldBeGreaterThanOrEqualTo, 2)
				case <-time.After(2 * time.Second):
					So("timeout", ShouldBeEmpty)
				}
			})
		})

		Convey("When subscribing after start", func() {
			err := bus.SubscribeScoresCommitted("late", func(context.Context, ScoresCommitted) error { return nil })

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrBusRunning), ShouldBeTrue)
			})
		})

		Convey("When the bus is closed", func() {
			So(bus.Close(), ShouldBeNil)

			Convey("Then publishing fails", func() {
				So(errors.Is(bus.PublishScoresCommitted(context.Background(), ev), ErrBusClosed), ShouldBeTrue)
			})
		})
	})
}
