// Package repository owns request and submission state.
package repository

import (
	"context"

	"github.com/okian/quorum/internal/domain/types"
)

// Store provides read/write access to requests and their submissions.
//
// Write methods fail with typed errors from the types package; read methods
// never fail for unknown ids and return empty results instead, except Request
// which reports ErrUnknownRequest.
type Store interface {
	// CreateRequest allocates a fresh, never reused id in the Open state.
	CreateRequest(ctx context.Context) (types.RequestID, error)

	// RecordSubmission appends a reading in arrival order.
	// Fails with ErrUnknownRequest, ErrRequestClosed or ErrDuplicateSubmission.
	RecordSubmission(ctx context.Context, id types.RequestID, provider types.ProviderID, value types.Value) (types.Submission, error)

	// Finalize freezes the resolved value. Fails with ErrUnknownRequest or
	// ErrAlreadyFinalized.
	Finalize(ctx context.Context, id types.RequestID, value types.Value) error

	// Submissions returns the readings of id in arrival order.
	Submissions(ctx context.Context, id types.RequestID) []types.Submission

	// SubmissionCount returns the number of readings recorded for id.
	SubmissionCount(ctx context.Context, id types.RequestID) int

	// FinalizedValue returns the resolved value of id, if any.
	FinalizedValue(ctx context.Context, id types.RequestID) (types.Value, bool)

	// LatestFinalizedValue returns the value of the finalized request with
	// the highest id.
	LatestFinalizedValue(ctx context.Context) (types.RequestID, types.Value, bool)

	// Request returns a snapshot of id.
	Request(ctx context.Context, id types.RequestID) (types.Request, error)

	// Count returns the number of requests ever created.
	Count(ctx context.Context) int

	// FinalizedCount returns the number of finalized requests.
	FinalizedCount(ctx context.Context) int
}
