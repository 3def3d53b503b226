// Package eventbus publishes contest events over an in-process watermill
// pub/sub and dispatches them to registered handlers.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

// TopicScoresCommitted carries ScoresCommitted payloads.
const TopicScoresCommitted = "velopick.scores.committed"

const (
	defaultOutputBuffer = 64
	routerCloseTimeout  = 5 * time.Second
)

// ScoresCommitted is published after a race's score set was replaced.
type ScoresCommitted struct {
	RaceID      string        `json:"race_id"`
	Scores      []model.Score `json:"scores"`
	CommittedAt time.Time     `json:"committed_at"`
}

// Handler consumes one event. A returned error triggers the retry middleware.
type Handler func(ctx context.Context, ev ScoresCommitted) error

// Bus wraps a gochannel pub/sub and a router.
type Bus struct {
	pubSub *gochannel.GoChannel
	router *message.Router
	log    logger.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds a bus. Handlers are added with SubscribeScoresCommitted before
// calling Start.
func New(opts ...Option) (*Bus, error) {
	cfg := options{
		log:          logger.Get().Named("eventbus"),
		outputBuffer: defaultOutputBuffer,
		maxRetries:   3,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	wl := logger.NewWatermillAdapter(cfg.log)
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.outputBuffer,
	}, wl)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, wl)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.maxRetries,
			InitialInterval: 10 * time.Millisecond,
			Logger:          wl,
		}.Middleware,
	)

	return &Bus{pubSub: pubSub, router: router, log: cfg.log}, nil
}

// SubscribeScoresCommitted registers h under name.
func (b *Bus) SubscribeScoresCommitted(name string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrBusRunning
	}
	b.router.AddNoPublisherHandler(name, TopicScoresCommitted, b.pubSub, func(msg *message.Message) error {
		var ev ScoresCommitted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			// Malformed payloads are acked; retrying cannot fix them.
			b.log.Error(msg.Context(), "dropping malformed event",
				logger.String("uuid", msg.UUID),
				logger.Error(fmt.Errorf("%w: %v", ErrDecodePayload, err)),
			)
			return nil
		}
		return h(msg.Context(), ev)
	})
	return nil
}

// Start runs the router in the background and returns once it is ready.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.started = true
	b.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := b.router.Run(ctx); err != nil {
			b.log.Error(ctx, "event router stopped", logger.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-b.router.Running():
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishScoresCommitted publishes ev. Delivery is asynchronous.
func (b *Bus) PublishScoresCommitted(ctx context.Context, ev ScoresCommitted) (err error) {
	defer func() { metrics.RecordEventPublished(TopicScoresCommitted, err) }()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TopicScoresCommitted, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	middleware.SetCorrelationID(ev.RaceID, msg)
	msg.SetContext(context.WithoutCancel(ctx))

	if err := b.pubSub.Publish(TopicScoresCommitted, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicScoresCommitted, err)
	}
	b.log.Debug(ctx, "event published",
		logger.String("topic", TopicScoresCommitted),
		logger.String("race_id", ev.RaceID),
		logger.Int("scores", len(ev.Scores)),
	)
	return nil
}

// Close stops the router and the pub/sub.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.router.Close(); err != nil {
		return fmt.Errorf("close router: %w", err)
	}
	return b.pubSub.Close()
}
