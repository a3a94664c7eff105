// Package oracle orchestrates provider readings into finalized values.
//
// The Service owns the submit path: it checks the caller against the
// registry, records the reading in the store and, once a quorum of distinct
// providers has reported, resolves and freezes the request value. Every
// failure leaves state as it was.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/quorum/internal/domain/aggregation"
	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/logger"
	"github.com/okian/quorum/pkg/metrics"
)

// Store is the request state the service depends on.
type Store interface {
	CreateRequest(ctx context.Context) (types.RequestID, error)
	RecordSubmission(ctx context.Context, id types.RequestID, provider types.ProviderID, value types.Value) (types.Submission, error)
	Finalize(ctx context.Context, id types.RequestID, value types.Value) error
	Submissions(ctx context.Context, id types.RequestID) []types.Submission
	SubmissionCount(ctx context.Context, id types.RequestID) int
	FinalizedValue(ctx context.Context, id types.RequestID) (types.Value, bool)
	LatestFinalizedValue(ctx context.Context) (types.RequestID, types.Value, bool)
	Request(ctx context.Context, id types.RequestID) (types.Request, error)
	Count(ctx context.Context) int
	FinalizedCount(ctx context.Context) int
}

// Registry is the provider allow-list the service depends on.
type Registry interface {
	Owner() types.ProviderID
	SetProvider(ctx context.Context, caller, id types.ProviderID, authorized bool) (bool, error)
	IsAuthorized(ctx context.Context, id types.ProviderID) bool
	AuthorizedCount(ctx context.Context) int
	Providers(ctx context.Context) []types.Provider
}

// SubmitResult describes an accepted reading.
type SubmitResult struct {
	Submission types.Submission `json:"submission"`
	// Finalized is true when this reading completed the quorum.
	Finalized bool `json:"finalized"`
	// Value is the resolved value, set only when Finalized.
	Value types.Value `json:"value,omitempty"`
}

// Stats is a point-in-time summary.
type Stats struct {
	Requests            int    `json:"requests"`
	Finalized           int    `json:"finalized"`
	Open                int    `json:"open"`
	AuthorizedProviders int    `json:"authorized_providers"`
	Quorum              int    `json:"quorum"`
	CreationPolicy      string `json:"creation_policy"`
}

// Service is the oracle entry point.
type Service struct {
	store    Store
	registry Registry
	resolver aggregation.Resolver
	quorum   int
	policy   CreationPolicy
	notifier Notifier
	log      logger.Logger
	now      func() time.Time

	// locks serializes record/count/finalize per request. Entries exist only
	// for ids the store has created and are never removed.
	locks sync.Map // types.RequestID -> *sync.Mutex
}

// New builds a Service. It fails with ErrInvalidQuorum when the quorum is
// below one.
func New(store Store, registry Registry, resolver aggregation.Resolver, opts ...Option) (*Service, error) {
	s := &Service{
		store:    store,
		registry: registry,
		resolver: resolver,
		quorum:   1,
		policy:   PolicyOpen,
		notifier: noopNotifier{},
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quorum < 1 {
		return nil, types.WrapKind("oracle.new", types.ErrInvalidQuorum, fmt.Errorf("quorum must be at least 1, got %d", s.quorum))
	}
	if s.resolver == nil {
		s.resolver = aggregation.NewMedian()
	}
	return s, nil
}

// Quorum returns the configured quorum.
func (s *Service) Quorum() int { return s.quorum }

// ValidateQuorum fails with ErrInvalidQuorum when fewer providers are
// authorized than the quorum requires, since no request could finalize.
func (s *Service) ValidateQuorum(ctx context.Context) error {
	n := s.registry.AuthorizedCount(ctx)
	if s.quorum > n {
		return types.WrapKind("oracle.validate_quorum", types.ErrInvalidQuorum,
			fmt.Errorf("quorum %d exceeds %d authorized providers", s.quorum, n))
	}
	return nil
}

// CreateRequest opens a new request on behalf of caller.
func (s *Service) CreateRequest(ctx context.Context, caller types.ProviderID) (types.RequestID, error) {
	const op = "oracle.create_request"
	if s.policy == PolicyOwner && caller != s.registry.Owner() {
		return 0, types.NewKind(op, types.ErrUnauthorized)
	}

	id, err := s.store.CreateRequest(ctx)
	if err != nil {
		return 0, err
	}
	metrics.RecordRequestCreated()
	s.log.Debug(ctx, "request created",
		logger.Uint64("request_id", uint64(id)),
		logger.String("caller", string(caller)))
	s.notifier.Notify(ctx, model.RequestCreated(id, s.now()))
	return id, nil
}

// SubmitReading records caller's value for request id. The submission that
// brings the request to quorum also resolves and finalizes it.
func (s *Service) SubmitReading(ctx context.Context, caller types.ProviderID, id types.RequestID, value types.Value) (SubmitResult, error) {
	const op = "oracle.submit_reading"
	if !s.registry.IsAuthorized(ctx, caller) {
		metrics.RecordSubmissionRejected(types.Reason(types.ErrUnauthorized))
		return SubmitResult{}, types.NewKind(op, types.ErrUnauthorized)
	}

	if _, err := s.store.Request(ctx, id); err != nil {
		s.reject(err)
		return SubmitResult{}, err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	// The completing value is resolved before it is recorded.
	var (
		final     types.Value
		finalizes bool
		createdAt time.Time
	)
	if s.store.SubmissionCount(ctx, id)+1 == s.quorum {
		req, err := s.store.Request(ctx, id)
		if err != nil {
			s.reject(err)
			return SubmitResult{}, err
		}
		if req.Status == types.StatusOpen {
			final, err = s.resolver.Resolve(append(req.Values(), value))
			if err != nil {
				s.reject(err)
				return SubmitResult{}, types.WrapKind(op, types.KindOf(err), err)
			}
			finalizes = true
			createdAt = req.CreatedAt
		}
	}

	sub, err := s.store.RecordSubmission(ctx, id, caller, value)
	if err != nil {
		s.reject(err)
		return SubmitResult{}, err
	}
	metrics.RecordSubmissionAccepted()
	s.notifier.Notify(ctx, model.SubmissionRecorded(id, caller, value, s.now()))

	result := SubmitResult{Submission: sub}
	if !finalizes {
		return result, nil
	}

	if err := s.store.Finalize(ctx, id, final); err != nil {
		// Unreachable while the store is only written through this
		// service: the request lock is held and the request was open.
		s.log.Error(ctx, "finalize failed after quorum",
			logger.Uint64("request_id", uint64(id)), logger.Error(err))
		return result, err
	}

	at := s.now()
	metrics.RecordFinalization(float64(at.Sub(createdAt).Milliseconds()))
	s.log.Info(ctx, "request finalized",
		logger.Uint64("request_id", uint64(id)),
		logger.Int64("value", int64(final)),
		logger.Int("submissions", sub.Index+1))
	s.notifier.Notify(ctx, model.RequestFinalized(id, final, at))

	result.Finalized = true
	result.Value = final
	return result, nil
}

func (s *Service) lockFor(id types.RequestID) *sync.Mutex {
	if mu, ok := s.locks.Load(id); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Service) reject(err error) {
	metrics.RecordSubmissionRejected(types.Reason(err))
}

// SetProvider changes the authorization of id. Only the registry owner may
// call it.
func (s *Service) SetProvider(ctx context.Context, caller, id types.ProviderID, authorized bool) error {
	changed, err := s.registry.SetProvider(ctx, caller, id, authorized)
	if err != nil {
		return err
	}
	count := s.registry.AuthorizedCount(ctx)
	metrics.UpdateAuthorizedProviders(count)
	if !changed {
		return nil
	}

	metrics.RecordAuthorizationChange(authorized)
	s.log.Info(ctx, "provider authorization changed",
		logger.String("provider", string(id)),
		logger.Bool("authorized", authorized))
	if count < s.quorum {
		s.log.Warn(ctx, "authorized providers below quorum",
			logger.Int("authorized", count),
			logger.Int("quorum", s.quorum))
	}
	s.notifier.Notify(ctx, model.ProviderAuthorizationChanged(id, authorized, s.now()))
	return nil
}

// LatestValue returns the value of the finalized request with the highest id.
func (s *Service) LatestValue(ctx context.Context) (types.RequestID, types.Value, error) {
	id, v, ok := s.store.LatestFinalizedValue(ctx)
	if !ok {
		return 0, 0, types.NewKind("oracle.latest_value", types.ErrNoFinalizedRequest)
	}
	return id, v, nil
}

// Value returns the finalized value of id. Unknown ids are reported as not
// finalized.
func (s *Service) Value(ctx context.Context, id types.RequestID) (types.Value, error) {
	v, ok := s.store.FinalizedValue(ctx, id)
	if !ok {
		return 0, types.NewKind("oracle.value", types.ErrNotFinalized)
	}
	return v, nil
}

// Submissions returns the readings of id in arrival order.
func (s *Service) Submissions(ctx context.Context, id types.RequestID) []types.Submission {
	return s.store.Submissions(ctx, id)
}

// Request returns a snapshot of id.
func (s *Service) Request(ctx context.Context, id types.RequestID) (types.Request, error) {
	return s.store.Request(ctx, id)
}

// Providers returns the registry listing.
func (s *Service) Providers(ctx context.Context) []types.Provider {
	return s.registry.Providers(ctx)
}

// Stats summarizes the current state.
func (s *Service) Stats(ctx context.Context) Stats {
	total := s.store.Count(ctx)
	finalized := s.store.FinalizedCount(ctx)
	return Stats{
		Requests:            total,
		Finalized:           finalized,
		Open:                total - finalized,
		AuthorizedProviders: s.registry.AuthorizedCount(ctx),
		Quorum:              s.quorum,
		CreationPolicy:      s.policy.String(),
	}
}
