package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/canvasevents/internal/event/dispatch"
	"github.com/dshills/canvasevents/internal/event/topic"
)

// Bus is the central event bus interface.
type Bus interface {
	// Publish delivers an event to every matching subscriber before returning.
	Publish(ctx context.Context, event any) error

	Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	Start() error
	Stop(ctx context.Context) error

	Stats() Stats
	IsRunning() bool
}

// bus is the default Bus implementation.
type bus struct {
	registry   *Registry
	dispatcher *dispatch.SyncDispatcher
	config     busConfig

	running atomic.Bool
	nextSeq atomic.Uint64

	eventsPublished atomic.Uint64
	eventsDelivered atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		registry: NewRegistry(),
		config:   config,
	}

	b.dispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithPanicHandler(b.onPanic),
		dispatch.WithTimeout(config.handlerTimeout),
	)
	return b
}

func (b *bus) onPanic(event any, recovered any, stack []byte) {
	b.config.logger.Error().
		Str("topic", ToEnvelope(event).Topic.String()).
		Interface("panic", recovered).
		Bytes("stack", stack).
		Msg("event handler panicked")

	if b.config.panicHandler != nil {
		b.config.panicHandler(event, recovered, stack)
	}
}

// Start starts the event bus.
func (b *bus) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBusAlreadyRunning
	}
	return nil
}

// Stop stops the event bus. Delivery is synchronous, so there is nothing
// in flight to drain once Stop returns.
func (b *bus) Stop(_ context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return ErrBusNotRunning
	}
	return nil
}

// IsRunning returns true if the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

// Publish sends an event synchronously.
// Handler errors and panics are absorbed; the returned error only reports
// why the event could not be published at all.
func (b *bus) Publish(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	eventTopic := extractTopic(event)
	if eventTopic == "" {
		return ErrInvalidEvent
	}

	subs := b.registry.MatchActive(eventTopic)
	if len(subs) == 0 {
		return nil
	}

	b.eventsPublished.Add(1)

	for _, sub := range subs {
		// A previous handler may have cancelled or paused this one.
		if !sub.shouldDeliver(event) {
			continue
		}

		result := b.dispatcher.Dispatch(ctx, event, sub.Handler())

		switch {
		case result.Panicked:
			b.handlerPanics.Add(1)
		case result.Error != nil:
			b.handlerErrors.Add(1)
			b.config.logger.Warn().
				Err(result.Error).
				Str("topic", eventTopic.String()).
				Str("subscription", sub.ID()).
				Msg("event handler failed")
		case result.Success:
			b.eventsDelivered.Add(1)
		}

		if sub.Config().Once && result.Success {
			sub.Cancel()
			b.registry.Remove(sub.ID())
		}
	}

	return nil
}

// Subscribe creates a new subscription for the given topic pattern.
func (b *bus) Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !topicPattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, topicPattern)
	}

	sub := newSubscription(uuid.NewString(), b.nextSeq.Add(1), topicPattern, handler, opts...)
	b.registry.Add(sub)
	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *bus) SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(topicPattern, fn, opts...)
}

// Unsubscribe removes a subscription.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	sub.Cancel()
	if !b.registry.Remove(sub.ID()) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Stats returns current bus statistics.
func (b *bus) Stats() Stats {
	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load(),
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		ActiveSubscribers: b.registry.CountActive(),
	}
}

func extractTopic(event any) topic.Topic {
	if tp, ok := event.(TopicProvider); ok {
		return tp.EventTopic()
	}
	return ""
}
