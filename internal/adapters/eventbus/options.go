package eventbus

import "github.com/okian/velopick/pkg/logger"

type options struct {
	log          logger.Logger
	outputBuffer int64
	maxRetries   int
}

// Option configures a Bus.
type Option func(*options)

// WithLogger sets the logger used by the bus and by watermill.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithOutputBuffer sets the per-subscriber channel buffer.
func WithOutputBuffer(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.outputBuffer = n
		}
	}
}

// WithMaxRetries sets how often a failing handler is retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}
