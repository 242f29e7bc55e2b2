package event

import (
	"time"

	"github.com/rs/zerolog"
)

// BusOption configures an event Bus.
type BusOption func(*busConfig)

type busConfig struct {
	// handlerTimeout bounds each handler through its context; zero disables it.
	handlerTimeout time.Duration

	panicHandler PanicHandler

	logger zerolog.Logger
}

func defaultBusConfig() busConfig {
	return busConfig{
		logger: zerolog.Nop(),
	}
}

// WithHandlerTimeout sets the per-handler timeout.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		if timeout > 0 {
			c.handlerTimeout = timeout
		}
	}
}

// WithBusPanicHandler sets the panic handler for the bus.
func WithBusPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		if h != nil {
			c.panicHandler = h
		}
	}
}

// WithLogger sets the logger used for handler errors and panics.
func WithLogger(l zerolog.Logger) BusOption {
	return func(c *busConfig) {
		c.logger = l
	}
}
