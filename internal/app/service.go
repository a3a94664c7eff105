// Package service assembles the oracle and its adapters into a runnable
// service: request store, provider registry, notification queue, dispatch
// workers and the optional journal.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/quorum/internal/adapters/journal"
	eventqueue "github.com/okian/quorum/internal/adapters/mq/queue"
	workerpool "github.com/okian/quorum/internal/adapters/mq/worker"
	repository "github.com/okian/quorum/internal/adapters/repository"
	"github.com/okian/quorum/internal/domain/aggregation"
	"github.com/okian/quorum/internal/domain/dedupe"
	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/internal/domain/oracle"
	"github.com/okian/quorum/internal/domain/registry"
	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/logger"
	"github.com/okian/quorum/pkg/metrics"
)

// sinkTimeout bounds a single delivery to the log or journal sink.
const sinkTimeout = 5 * time.Second

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns the oracle and the infrastructure around it.
type Service struct {
	mu sync.RWMutex

	// Core components
	oracle     *oracle.Service
	store      *repository.MemoryStore
	registry   *registry.Registry
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	journal    *journal.Journal

	// Configuration
	owner       types.ProviderID
	providers   []types.ProviderID
	quorum      int
	policy      oracle.CreationPolicy
	workerCount int
	queueSize   int
	dedupeSize  int
	journalPath string
	now         func() time.Time

	// State
	started   bool
	runCancel context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithOwner sets the registry owner.
func WithOwner(owner string) Option {
	return func(s *Service) {
		if owner != "" {
			s.owner = types.ProviderID(owner)
		}
	}
}

// WithProviders sets the providers the owner authorizes at startup.
func WithProviders(providers ...string) Option {
	return func(s *Service) {
		s.providers = make([]types.ProviderID, 0, len(providers))
		for _, p := range providers {
			s.providers = append(s.providers, types.ProviderID(p))
		}
	}
}

// WithQuorum sets the number of distinct submissions that finalizes a request.
func WithQuorum(n int) Option {
	return func(s *Service) {
		s.quorum = n
	}
}

// WithCreationPolicy sets who may create requests.
func WithCreationPolicy(p oracle.CreationPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithWorkerCount sets the number of dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJournalPath enables the event journal at path.
func WithJournalPath(path string) Option {
	return func(s *Service) {
		s.journalPath = path
	}
}

// WithClock overrides the time source for the store, registry and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		owner:       "owner",
		providers:   []types.ProviderID{"client1", "client2", "client3"},
		quorum:      3,
		policy:      oracle.PolicyOpen,
		workerCount: 1,
		queueSize:   4096,
		dedupeSize:  100_000,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, authorizes the configured providers and
// starts dispatching notifications. It fails if the quorum cannot be met by
// the authorized providers or if the journal does not verify.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting oracle service...")

	sinks := []workerpool.Sink{workerpool.NewLogSink(s.logger.Named("events"))}
	storeOpts := []repository.Option{repository.WithClock(s.now)}
	if s.journalPath != "" {
		j, err := journal.Open(s.journalPath)
		if err != nil {
			return err
		}
		n, err := j.Verify(ctx)
		if err != nil {
			_ = j.Close()
			return fmt.Errorf("verify journal %s: %w", s.journalPath, err)
		}
		last, err := lastRequestID(ctx, j)
		if err != nil {
			_ = j.Close()
			return fmt.Errorf("replay journal %s: %w", s.journalPath, err)
		}
		s.logger.Info(ctx, "journal verified",
			logger.String("path", s.journalPath),
			logger.Int("records", n),
			logger.Uint64("last_request_id", uint64(last)))
		s.journal = j
		sinks = append(sinks, j)
		storeOpts = append(storeOpts, repository.WithFirstID(uint64(last)+1))
	}

	s.store = repository.NewMemoryStore(storeOpts...)
	s.registry = registry.New(s.owner, registry.WithClock(s.now))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	// Workers outlive the start context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, sinks,
		workerpool.WithLogger(s.logger),
		workerpool.WithDeliveryTimeout(sinkTimeout))
	s.workerPool.Start(runCtx)

	o, err := oracle.New(s.store, s.registry, aggregation.NewMedian(),
		oracle.WithQuorum(s.quorum),
		oracle.WithCreationPolicy(s.policy),
		oracle.WithNotifier(s),
		oracle.WithLogger(s.logger.Named("oracle")),
		oracle.WithClock(s.now),
	)
	if err != nil {
		s.abort(ctx)
		return err
	}
	for _, p := range s.providers {
		if err := o.SetProvider(ctx, s.owner, p, true); err != nil {
			s.abort(ctx)
			return fmt.Errorf("authorize provider %s: %w", p, err)
		}
	}
	if err := o.ValidateQuorum(ctx); err != nil {
		s.abort(ctx)
		return err
	}
	s.oracle = o

	s.started = true
	s.logger.Info(ctx, "oracle service started",
		logger.String("owner", string(s.owner)),
		logger.Int("providers", len(s.providers)),
		logger.Int("quorum", s.quorum),
		logger.String("creation_policy", s.policy.String()),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("journal", s.journal != nil),
	)
	return nil
}

// abort releases what Start had built so far. Must be called with s.mu held.
func (s *Service) abort(ctx context.Context) {
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.journal != nil {
		_ = s.journal.Close()
		s.journal = nil
	}
}

// lastRequestID returns the highest request id recorded in j, or zero.
func lastRequestID(ctx context.Context, j *journal.Journal) (types.RequestID, error) {
	var last types.RequestID
	err := j.Replay(ctx, func(r journal.Record) error {
		e, err := r.Event()
		if err != nil {
			return fmt.Errorf("decode record %d: %w", r.Seq, err)
		}
		if e.RequestID > last {
			last = e.RequestID
		}
		return nil
	})
	return last, err
}

// Stop drains pending notifications and closes the journal.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping oracle service...")

	var errs []error
	if err := s.workerPool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.runCancel()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "oracle service stopped")
	return errors.Join(errs...)
}

// Notify implements oracle.Notifier by queueing e for the dispatch workers.
// A full queue drops the event; the oracle state is already committed.
func (s *Service) Notify(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam
	if s.eventQueue.Enqueue(ctx, e) {
		return
	}
	s.logger.Warn(ctx, "notification dropped",
		logger.String("event_id", e.ID),
		logger.String("kind", string(e.Kind)),
		logger.Uint64("request_id", uint64(e.RequestID)))
}

// Oracle returns the running oracle.
func (s *Service) Oracle() (*oracle.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.oracle == nil {
		return nil, ErrNotStarted
	}
	return s.oracle, nil
}

// Deduper returns the idempotency cache used by the transport.
func (s *Service) Deduper() dedupe.Deduper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper
}

// Journal returns the event journal, or nil when it is disabled.
func (s *Service) Journal() *journal.Journal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"quorum":         s.quorum,
		"creationPolicy": s.policy.String(),
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"journal":        s.journalPath != "",
	}

	if s.started {
		st := s.oracle.Stats(ctx)
		queueLen := s.eventQueue.Len(ctx)

		stats["requests"] = st.Requests
		stats["finalized"] = st.Finalized
		stats["open"] = st.Open
		stats["authorizedProviders"] = st.AuthorizedProviders
		stats["queueLength"] = queueLen
		stats["idempotencyKeys"] = s.deduper.Size()
		if s.journal != nil {
			seq, head := s.journal.Head()
			stats["journalSeq"] = seq
			stats["journalHead"] = head.String()
		}

		metrics.UpdateOpenRequests(st.Open)
		metrics.UpdateAuthorizedProviders(st.AuthorizedProviders)
	}
	return stats
}
