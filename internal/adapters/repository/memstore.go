package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/metrics"
)

// request is the mutable record behind a types.Request snapshot.
type request struct {
	id          types.RequestID
	status      types.Status
	submissions []types.Submission
	byProvider  map[types.ProviderID]int // provider -> index into submissions
	value       types.Value
	createdAt   time.Time
	finalizedAt time.Time
}

func (r *request) snapshot() types.Request {
	out := types.Request{
		ID:          r.id,
		Status:      r.status,
		Submissions: slices.Clone(r.submissions),
		CreatedAt:   r.createdAt,
		FinalizedAt: r.finalizedAt,
	}
	if out.Submissions == nil {
		out.Submissions = []types.Submission{}
	}
	if r.status == types.StatusFinalized {
		v := r.value
		out.FinalizedValue = &v
	}
	return out
}

// MemoryStore is an in-memory Store guarded by a single RWMutex. Readers
// always receive copies, so a snapshot never changes after it is returned.
type MemoryStore struct {
	mu          sync.RWMutex
	requests    map[types.RequestID]*request
	nextID      uint64
	finalized   int
	latestFinal types.RequestID // highest finalized id, 0 if none
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Ids start at 1.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		requests: make(map[types.RequestID]*request),
		nextID:   1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest implements Store.
func (s *MemoryStore) CreateRequest(_ context.Context) (types.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.RequestID(s.nextID)
	s.nextID++
	s.requests[id] = &request{
		id:         id,
		status:     types.StatusOpen,
		byProvider: make(map[types.ProviderID]int),
		createdAt:  s.now(),
	}
	metrics.UpdateOpenRequests(len(s.requests) - s.finalized)
	return id, nil
}

// RecordSubmission implements Store.
func (s *MemoryStore) RecordSubmission(_ context.Context, id types.RequestID, provider types.ProviderID, value types.Value) (types.Submission, error) {
	const op = "repository.record_submission"

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return types.Submission{}, types.NewKind(op, types.ErrUnknownRequest)
	}
	if r.status != types.StatusOpen {
		return types.Submission{}, types.NewKind(op, types.ErrRequestClosed)
	}
	if _, dup := r.byProvider[provider]; dup {
		return types.Submission{}, types.NewKind(op, types.ErrDuplicateSubmission)
	}

	sub := types.Submission{
		RequestID:  id,
		ProviderID: provider,
		Value:      value,
		Index:      len(r.submissions),
		RecordedAt: s.now(),
	}
	r.submissions = append(r.submissions, sub)
	r.byProvider[provider] = sub.Index
	return sub, nil
}

// Finalize implements Store.
func (s *MemoryStore) Finalize(_ context.Context, id types.RequestID, value types.Value) error {
	const op = "repository.finalize"

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return types.NewKind(op, types.ErrUnknownRequest)
	}
	if r.status == types.StatusFinalized {
		return types.NewKind(op, types.ErrAlreadyFinalized)
	}

	r.status = types.StatusFinalized
	r.value = value
	r.finalizedAt = s.now()
	s.finalized++
	if id > s.latestFinal {
		s.latestFinal = id
	}
	metrics.UpdateOpenRequests(len(s.requests) - s.finalized)
	return nil
}

// Submissions implements Store.
func (s *MemoryStore) Submissions(_ context.Context, id types.RequestID) []types.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok || len(r.submissions) == 0 {
		return []types.Submission{}
	}
	return slices.Clone(r.submissions)
}

// SubmissionCount implements Store.
func (s *MemoryStore) SubmissionCount(_ context.Context, id types.RequestID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.requests[id]; ok {
		return len(r.submissions)
	}
	return 0
}

// FinalizedValue implements Store.
func (s *MemoryStore) FinalizedValue(_ context.Context, id types.RequestID) (types.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok || r.status != types.StatusFinalized {
		return 0, false
	}
	return r.value, true
}

// LatestFinalizedValue implements Store. "Latest" is the highest request id
// in the Finalized state, which may differ from the last one to finalize
// when several requests are in flight.
func (s *MemoryStore) LatestFinalizedValue(_ context.Context) (types.RequestID, types.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestFinal == 0 {
		return 0, 0, false
	}
	return s.latestFinal, s.requests[s.latestFinal].value, true
}

// Request implements Store.
func (s *MemoryStore) Request(_ context.Context, id types.RequestID) (types.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return types.Request{}, types.NewKind("repository.request", types.ErrUnknownRequest)
	}
	return r.snapshot(), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// FinalizedCount implements Store.
func (s *MemoryStore) FinalizedCount(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}
