// Package metrics counts canvas events and controller outcomes with
// Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/patcher"
)

const namespace = "canvasevents"

// ErrAttached is returned by Attach when the collector already listens.
var ErrAttached = errors.New("metrics already attached")

// Collector counts events published under the canvas namespace and the
// outcomes of controller refreshes. It owns its registry.
type Collector struct {
	registry *prometheus.Registry

	events  *prometheus.CounterVec
	refresh *prometheus.CounterVec
	unknown prometheus.Counter

	mu  sync.Mutex
	bus event.Bus
	sub event.Subscription
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "canvas",
				Name:      "events_total",
				Help:      "Canvas events published, by category and phase",
			},
			[]string{"event", "phase"},
		),
		refresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "controller",
				Name:      "refresh_total",
				Help:      "Controller refresh attempts, by outcome",
			},
			[]string{"outcome"},
		),
		unknown: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "canvas",
				Name:      "unknown_events_total",
				Help:      "Events under the canvas namespace with no catalog entry",
			},
		),
	}
	c.registry.MustRegister(c.events, c.refresh, c.unknown)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Attach subscribes the collector to every canvas event on bus. It runs
// after ordinary subscribers.
func (c *Collector) Attach(bus event.Bus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return ErrAttached
	}
	sub, err := bus.SubscribeFunc(canvasevent.All, c.handle, event.WithPriority(event.PriorityLow))
	if err != nil {
		return fmt.Errorf("subscribe metrics: %w", err)
	}
	c.bus = bus
	c.sub = sub
	return nil
}

// Detach removes the bus subscription. It is safe to call more than once.
func (c *Collector) Detach() {
	c.mu.Lock()
	bus, sub := c.bus, c.sub
	c.bus, c.sub = nil, nil
	c.mu.Unlock()
	if sub != nil {
		_ = bus.Unsubscribe(sub)
	}
}

func (c *Collector) handle(_ context.Context, ev any) error {
	entry, ok := canvasevent.Lookup(event.ToEnvelope(ev).Topic)
	if !ok {
		c.unknown.Inc()
		return nil
	}
	c.events.WithLabelValues(entry.Category, string(entry.Phase)).Inc()
	return nil
}

// ObserveRefresh records a controller refresh outcome.
func (c *Collector) ObserveRefresh(o patcher.Outcome) {
	c.refresh.WithLabelValues(string(o)).Inc()
}

// EventCount is the number of times one event was seen.
type EventCount struct {
	Event string
	Phase string
	Count float64
}

// Snapshot is a point-in-time copy of the collected counters.
type Snapshot struct {
	Events  []EventCount
	Refresh map[string]float64
	Unknown float64
}

// Total returns the number of events counted.
func (s Snapshot) Total() float64 {
	var n float64
	for _, e := range s.Events {
		n += e.Count
	}
	return n
}

// Snapshot gathers the registry into a Snapshot. Events are sorted by name
// then phase.
func (c *Collector) Snapshot() (Snapshot, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return Snapshot{}, fmt.Errorf("gather metrics: %w", err)
	}

	snap := Snapshot{Refresh: make(map[string]float64)}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			value := m.GetCounter().GetValue()

			switch mf.GetName() {
			case namespace + "_canvas_events_total":
				snap.Events = append(snap.Events, EventCount{Event: labels["event"], Phase: labels["phase"], Count: value})
			case namespace + "_controller_refresh_total":
				snap.Refresh[labels["outcome"]] = value
			case namespace + "_canvas_unknown_events_total":
				snap.Unknown = value
			}
		}
	}

	sort.Slice(snap.Events, func(i, j int) bool {
		if snap.Events[i].Event != snap.Events[j].Event {
			return snap.Events[i].Event < snap.Events[j].Event
		}
		return snap.Events[i].Phase < snap.Events[j].Phase
	})
	return snap, nil
}

var _ patcher.Observer = (*Collector)(nil)
