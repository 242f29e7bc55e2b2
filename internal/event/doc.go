// Package event provides the process-wide publish/subscribe bus that canvas
// events are republished on.
//
// The bus is deliberately synchronous. Every handler runs in the publisher's
// goroutine before Publish returns, which is what lets a wrapped canvas
// operation guarantee that its Before event is observed before the operation
// body and its After event after it.
//
// # Architecture
//
//	                ┌─────────────────────────────────┐
//	                │             Bus                 │
//	                │  - Registry (priority ordered)  │
//	                │  - Topic matching (trie)        │
//	                │  - Sync dispatch + recovery     │
//	                └─────────────────────────────────┘
//	                        │                │
//	                        ▼                ▼
//	                ┌──────────────┐  ┌──────────────┐
//	                │   Registry   │  │  Publisher   │
//	                │ subscriptions│  │ source-bound │
//	                └──────────────┘  └──────────────┘
//
// # Topics
//
// Topics are colon separated and subscriptions may use wildcards:
//
//	canvas-events-definitions:node-moved      exact
//	canvas-events-definitions:*               one segment
//	canvas-events-definitions:**              every canvas event
//
// # Priority Ordering
//
// Handlers execute in priority order (lower first), then in subscription
// order:
//
//   - Critical (0): state that other handlers depend on
//   - High (100)
//   - Normal (200): default
//   - Low (300): metrics, logging
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	if err := bus.Start(); err != nil {
//	    return err
//	}
//	defer bus.Stop(context.Background())
//
//	sub, err := bus.Subscribe("canvas-events-definitions:**", handler,
//	    event.WithPriority(event.PriorityLow))
//
//	evt := event.NewEvent(topic.Topic("workspace:view-closed"), payload, "workspace")
//	err = bus.Publish(ctx, evt)
//
// # Failure Isolation
//
// Handler errors are counted and logged. Handler panics are recovered, counted
// and reported to the panic handler. Neither reaches the publisher, so a
// faulty subscriber cannot change the outcome of the operation that published.
//
// # Thread Safety
//
// The Bus and all public types are safe for concurrent use. Subscriptions can
// be added and removed while events are being published, including from
// inside a handler.
package event
