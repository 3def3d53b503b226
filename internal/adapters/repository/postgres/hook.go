package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/velopick/pkg/metrics"
)

// metricsHook records every query as a store operation named after its
// SQL verb.
type metricsHook struct{}

var _ bun.QueryHook = metricsHook{}

func (metricsHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (metricsHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	op := "pg_" + strings.ToLower(event.Operation())
	metrics.RecordStoreOperation(op, float64(time.Since(event.StartTime).Microseconds())/1000, event.Err)
}
