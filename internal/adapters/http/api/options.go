package api

import (
	"golang.org/x/time/rate"

	"github.com/okian/velopick/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithRateLimit throttles mutating routes per client IP. rps <= 0 disables
// the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = NewIPRateLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxStandingsLimit caps the limit query parameter of GET /standings.
func WithMaxStandingsLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.standingsLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}
