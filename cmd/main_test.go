package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/velopick/internal/config"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("VELOPICK_ADDR", ":8080")
			_ = os.Setenv("VELOPICK_RECOMPUTE_QUEUE_SIZE", "50")
			_ = os.Setenv("VELOPICK_RULE_VARIANT", "B")
			defer func() {
				_ = os.Unsetenv("VELOPICK_ADDR")
				_ = os.Unsetenv("VELOPICK_RECOMPUTE_QUEUE_SIZE")
				_ = os.Unsetenv("VELOPICK_RULE_VARIANT")
			}()

			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.RecomputeQueueSize, convey.ShouldEqual, 50)

			convey.Convey("Then the service picks up the variant", func() {
				store, closeStore, err := openStore(context.Background(), cfg)
				convey.So(err, convey.ShouldBeNil)
				defer closeStore()

				svc, err := newService(cfg, store)
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Rules().Variant.Short(), convey.ShouldEqual, "B")
				convey.So(svc.Rules().CandidatePoolSize, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the storage backend is unknown", func() {
			_ = os.Setenv("VELOPICK_STORAGE", "sqlite")
			defer func() { _ = os.Unsetenv("VELOPICK_STORAGE") }()

			convey.Convey("Then configuration loading fails", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given a router built from defaults", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		store, closeStore, err := openStore(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer closeStore()

		svc, err := newService(cfg, store)
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		r := newRouter(ctx, cfg, svc)

		convey.Convey("Then the API and the docs are served", func() {
			for _, path := range []string{"/healthz", "/stats", "/races", "/standings", "/openapi.yaml", "/api-docs"} {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("And a race can be created with a natural-language deadline", func() {
			w := httptest.NewRecorder()
			body := `{"id":"lbl","name":"Liège-Bastogne-Liège","registration_deadline":"tomorrow at 9am"}`
			r.ServeHTTP(w, httptest.NewRequest("POST", "/races", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"open":true`)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		cfg := config.New(ctx)
		store, closeStore, err := openStore(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer closeStore()
		svc, err := newService(cfg, store)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then they return when the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And single updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And a private metrics manager can be built", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}
