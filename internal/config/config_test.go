package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/velopick/internal/config"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Storage, convey.ShouldEqual, config.StorageMemory)
			convey.So(cfg.RuleVariant, convey.ShouldEqual, "A")
			convey.So(cfg.ScoringWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then default rules follow variant A", func() {
			rules, err := cfg.Rules()
			convey.So(err, convey.ShouldBeNil)
			convey.So(rules, convey.ShouldResemble, scoring.Rules{Variant: scoring.VariantExactOrTop3, TopPicksSize: 3, CandidatePoolSize: 10})
		})

		convey.Convey("When switching to variant B", func() {
			cfg.RuleVariant = "B_finish_value"
			rules, err := cfg.Rules()

			convey.Convey("Then the pool shrinks to five", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rules.CandidatePoolSize, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When overriding the pool size", func() {
			cfg.CandidatePoolSize = 8
			rules, _ := cfg.Rules()

			convey.Convey("Then the override wins", func() {
				convey.So(rules.CandidatePoolSize, convey.ShouldEqual, 8)
			})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"unknown storage", func(c *config.Config) { c.Storage = "sqlite" }},
			{"postgres without dsn", func(c *config.Config) { c.Storage = config.StoragePostgres }},
			{"unknown variant", func(c *config.Config) { c.RuleVariant = "C" }},
			{"zero scoring workers", func(c *config.Config) { c.ScoringWorkers = 0 }},
			{"negative burst", func(c *config.Config) { c.RateLimitBurst = -1 }},
			{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus_Mons" }},
			{"empty listen address", func(c *config.Config) { c.Addr = "" }},
			{"empty recompute queue", func(c *config.Config) { c.RecomputeQueueSize = 0 }},
		}
		for _, tc := range cases {
			convey.Convey("Then it rejects "+tc.name, func() {
				cfg := config.New(context.Background())
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
