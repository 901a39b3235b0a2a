package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventRouter owns the pub/sub transport for dialogue events and hosts
// long-lived handlers. The default transport is an in-memory gochannel
// pub/sub; per-conversation readers subscribe directly through Subscriber
// rather than through handlers, so they can come and go at runtime.
type EventRouter struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	router  *message.Router
	pubSub  *gochannel.GoChannel
	logger  watermill.LoggerAdapter
	verbose bool
}

type EventRouterOption func(*EventRouter)

func WithPublisher(p message.Publisher) EventRouterOption {
	return func(r *EventRouter) { r.Publisher = p }
}

func WithSubscriber(s message.Subscriber) EventRouterOption {
	return func(r *EventRouter) { r.Subscriber = s }
}

func WithVerbose(v bool) EventRouterOption {
	return func(r *EventRouter) { r.verbose = v }
}

func NewEventRouter(opts ...EventRouterOption) (*EventRouter, error) {
	r := &EventRouter{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = NewWatermillLogger(log.Logger, r.verbose)

	if r.Publisher == nil || r.Subscriber == nil {
		// Publishing blocks until every subscriber acks, which keeps
		// events in publish order per topic. Readers ack before doing any
		// socket I/O, so publishers stay decoupled from slow clients.
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            128,
			BlockPublishUntilSubscriberAck: true,
		}, r.logger)
		r.pubSub = pubSub
		if r.Publisher == nil {
			r.Publisher = pubSub
		}
		if r.Subscriber == nil {
			r.Subscriber = pubSub
		}
	}

	router, err := message.NewRouter(message.RouterConfig{}, r.logger)
	if err != nil {
		return nil, errors.Wrap(err, "create message router")
	}
	r.router = router
	return r, nil
}

// AddHandler registers a no-publish handler for a topic. Handlers must be
// added before Run.
func (r *EventRouter) AddHandler(name, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

// Run starts the router and blocks until ctx is cancelled or Close is called.
func (r *EventRouter) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once the router has started all handlers.
func (r *EventRouter) Running() <-chan struct{} {
	return r.router.Running()
}

func (r *EventRouter) Close() error {
	if err := r.router.Close(); err != nil {
		return errors.Wrap(err, "close message router")
	}
	if r.pubSub != nil {
		if err := r.pubSub.Close(); err != nil {
			return errors.Wrap(err, "close pubsub")
		}
	}
	return nil
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter.
type watermillLogger struct {
	logger  zerolog.Logger
	verbose bool
}

func NewWatermillLogger(logger zerolog.Logger, verbose bool) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger, verbose: verbose}
}

func (l *watermillLogger) with(fields watermill.LogFields) zerolog.Logger {
	c := l.logger.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return c.Logger()
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	lg := l.with(fields)
	lg.Error().Err(err).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	if !l.verbose {
		return
	}
	lg := l.with(fields)
	lg.Info().Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	lg := l.with(fields)
	lg.Debug().Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	lg := l.with(fields)
	lg.Trace().Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.with(fields), verbose: l.verbose}
}
