package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.RecordPredictionSubmitted()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_predictions_submitted_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on an isolated registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("Counters accumulate", func() {
			m.RecordPredictionsScored(3)
			m.RecordPredictionsScored(2)
			So(testutil.ToFloat64(m.predictionsScored), ShouldEqual, 5)

			m.RecordScoresWritten(4)
			So(testutil.ToFloat64(m.scoresWritten), ShouldEqual, 4)
		})

		Convey("Labelled counters split by label", func() {
			m.RecordResultCommit("ok", 12)
			m.RecordResultCommit("ok", 3)
			m.RecordResultCommit("invalid", 1)
			So(testutil.ToFloat64(m.resultCommits.WithLabelValues("ok")), ShouldEqual, 2)
			So(testutil.ToFloat64(m.resultCommits.WithLabelValues("invalid")), ShouldEqual, 1)

			m.RecordStandingsCache(true)
			m.RecordStandingsCache(false)
			m.RecordStandingsCache(false)
			So(testutil.ToFloat64(m.standingsCache.WithLabelValues("hit")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.standingsCache.WithLabelValues("miss")), ShouldEqual, 2)
		})

		Convey("Worker jobs split into completed and errors", func() {
			m.RecordWorkerJob(5, nil)
			m.RecordWorkerJob(5, errors.New("boom"))
			So(testutil.ToFloat64(m.workerJobsCompleted), ShouldEqual, 1)
			So(testutil.ToFloat64(m.workerErrors), ShouldEqual, 1)
		})

		Convey("Gauges hold the last value", func() {
			m.UpdateQueueSize(7)
			m.UpdateQueueSize(2)
			So(testutil.ToFloat64(m.queueSize), ShouldEqual, 2)
		})
	})

	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

		Convey("Nothing is recorded", func() {
			m.RecordPredictionSubmitted()
			m.RecordStoreOperation("insert_scores", 1, errors.New("x"))
			So(testutil.ToFloat64(m.predictionsSubmitted), ShouldEqual, 0)
			So(testutil.ToFloat64(m.storeErrors.WithLabelValues("insert_scores")), ShouldEqual, 0)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Package-level recorders never panic", t, func() {
		So(func() {
			RecordPredictionSubmitted()
			RecordPredictionRejected("deadline")
			RecordResultCommit("ok", 1)
			RecordEventPublished("topic", nil)
			RecordHTTPRequest("/standings", "GET", "200", 1)
			RecordHTTPError("/standings", "GET", "client_error")
			RecordRateLimited()
			UpdateSystemGoroutineCount(10)
		}, ShouldNotPanic)
		So(GetRegistry(), ShouldNotBeNil)
	})
}
