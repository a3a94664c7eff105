package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/pkg/logger"
)

// CreationPolicy controls who may open new requests.
type CreationPolicy int

// Creation policies.
const (
	// PolicyOpen lets any caller create requests.
	PolicyOpen CreationPolicy = iota
	// PolicyOwner restricts creation to the registry owner.
	PolicyOwner
)

// String returns the configuration name of the policy.
func (p CreationPolicy) String() string {
	switch p {
	case PolicyOpen:
		return "open"
	case PolicyOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// ParseCreationPolicy maps a configuration value to a policy.
func ParseCreationPolicy(s string) (CreationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return PolicyOpen, nil
	case "owner":
		return PolicyOwner, nil
	default:
		return PolicyOpen, fmt.Errorf("unknown creation policy %q", s)
	}
}

// Notifier observes committed state changes. Notify must not block; the
// oracle calls it while holding the per-request lock.
type Notifier interface {
	Notify(ctx context.Context, e model.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e model.Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, e model.Event) { f(ctx, e) }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, model.Event) {}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQuorum sets the number of distinct submissions that finalizes a
// request. The default is 1.
func WithQuorum(n int) Option {
	return func(s *Service) {
		s.quorum = n
	}
}

// WithCreationPolicy sets who may create requests.
func WithCreationPolicy(p CreationPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithNotifier installs the observer for state changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
