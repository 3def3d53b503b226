package logger

import (
	"context"
	"sort"

	"github.com/ThreeDotsLabs/watermill"
)

// WatermillAdapter routes watermill's internal logging through Logger.
type WatermillAdapter struct {
	l      Logger
	fields watermill.LogFields
}

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)

// NewWatermillAdapter wraps l for use as a watermill.LoggerAdapter.
func NewWatermillAdapter(l Logger) *WatermillAdapter {
	return &WatermillAdapter{l: l}
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(context.Background(), msg, append(a.toFields(fields), Error(err))...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(context.Background(), msg, a.toFields(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, a.toFields(fields)...)
}

// Trace is folded into debug; slog has no trace level.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, a.toFields(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{l: a.l, fields: a.fields.Add(fields)}
}

func (a *WatermillAdapter) toFields(extra watermill.LogFields) []Field {
	merged := a.fields.Add(extra)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Any(k, merged[k]))
	}
	return out
}
