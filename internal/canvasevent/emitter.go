package canvasevent

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/event/topic"
)

var (
	// ErrUnknownEvent is returned when publishing an identifier that is not in
	// the catalog.
	ErrUnknownEvent = errors.New("unknown canvas event")

	// ErrPayloadMismatch is returned when the payload type does not match the
	// one bound to the identifier.
	ErrPayloadMismatch = errors.New("payload type mismatch")
)

// DefaultSource is the source stamped on canvas events.
const DefaultSource = "canvas"

// Emitter publishes canvas events on a bus.
type Emitter struct {
	pub    *event.Publisher
	logger zerolog.Logger
}

// NewEmitter creates an emitter publishing on bus with the given source.
func NewEmitter(bus event.Bus, source string, logger zerolog.Logger) *Emitter {
	if source == "" {
		source = DefaultSource
	}
	return &Emitter{
		pub:    event.NewPublisher(bus, source),
		logger: logger,
	}
}

// Source returns the source stamped on published events.
func (e *Emitter) Source() string {
	return e.pub.Source()
}

// Emit publishes payload under d. Delivery is synchronous; Emit returns after
// every subscriber has run.
func Emit[P Payload](ctx context.Context, e *Emitter, d Descriptor[P], payload P) error {
	if err := validate(d.id, payload); err != nil {
		return err
	}
	e.logger.Debug().Str("event", d.id.String()).Msg(d.description)
	return event.PublishEvent(ctx, e.pub, d.id, payload)
}

func validate(id topic.Topic, payload Payload) error {
	entry, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, id)
	}
	if got := reflect.TypeOf(payload); got != entry.payloadType {
		return fmt.Errorf("%w: %s expects %s, got %v", ErrPayloadMismatch, entry.ID, entry.Payload, got)
	}
	return nil
}

// Subscribe registers fn for the events described by d.
func Subscribe[P Payload](bus event.Bus, d Descriptor[P], fn func(ctx context.Context, ev event.Event[P]) error, opts ...event.SubscriptionOption) (event.Subscription, error) {
	if d.id == "" {
		return nil, ErrUnknownEvent
	}
	return bus.Subscribe(d.id, event.AsHandler(event.TypedHandlerFunc[P](fn)), opts...)
}
