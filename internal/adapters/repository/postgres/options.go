package postgres

import "github.com/okian/velopick/pkg/logger"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns caps the connection pool. Zero keeps the driver default.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithQueryMetrics toggles the per-query metrics hook.
func WithQueryMetrics(enabled bool) Option {
	return func(s *Store) {
		s.queryMetrics = enabled
	}
}
