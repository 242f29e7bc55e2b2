// Package dispatch delivers one event to one handler for the event bus.
//
// Delivery is synchronous: the handler runs in the publisher's goroutine,
// before the publishing call returns. Canvas operations publish their events
// in-line, so a Before event is observed before the operation body runs and an
// After event after it returns.
//
// # Panic Recovery
//
// The executor recovers from handler panics so a misbehaving subscriber cannot
// unwind through the canvas operation that published the event. Panics are
// reported via a configurable PanicHandler callback and counted.
//
// # Usage
//
//	dispatcher := dispatch.NewSyncDispatcher(
//	    dispatch.WithPanicHandler(func(event any, v any, stack []byte) {
//	        logger.Error().Interface("panic", v).Bytes("stack", stack).Msg("handler panicked")
//	    }),
//	)
//	result := dispatcher.Dispatch(ctx, event, handler)
//	if !result.IsSuccess() {
//	    // handler returned an error or panicked
//	}
package dispatch
