package worker

import (
	"time"

	"github.com/okian/quorum/pkg/logger"
)

// settings is shared by workers and pools; a pool hands its settings to
// every worker it creates.
type settings struct {
	name            string
	logger          logger.Logger
	deliveryTimeout time.Duration
}

func newSettings(name string, opts []Option) settings {
	s := settings{name: name, logger: logger.Discard()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a worker or pool.
type Option func(*settings)

// WithName names the worker in its log lines. Pools name their workers
// "<name>-<index>".
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the parent logger; each worker logs through a child named
// after it.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDeliveryTimeout bounds each Sink.Handle call. Zero means no bound.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.deliveryTimeout = d
		}
	}
}
