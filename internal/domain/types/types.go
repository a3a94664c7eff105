// Package types contains the identifiers, values and snapshots shared across
// the oracle components.
package types

import (
	"strconv"
	"time"
)

// ProviderID identifies a reporter. It is an opaque, already-authenticated
// token handed to the core by the transport layer.
type ProviderID string

// RequestID identifies a request. Ids start at 1 and are never reused.
type RequestID uint64

// String renders the id in base 10.
func (id RequestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseRequestID parses a base-10 request id. Zero is never a valid id.
func ParseRequestID(s string) (RequestID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, strconv.ErrRange
	}
	return RequestID(n), nil
}

// Value is a signed fixed-point reading. The scale is a deployment concern;
// the core only ever compares values.
type Value int64

// Status is the lifecycle state of a request.
type Status int

// Request states.
const (
	StatusOpen Status = iota
	StatusFinalized
)

// String returns the lower-case state name.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Provider is the registry view of a reporter.
type Provider struct {
	ID         ProviderID `json:"id"`
	Authorized bool       `json:"authorized"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Submission is a single recorded reading. Index is the arrival order
// within its request, starting at 0.
type Submission struct {
	RequestID  RequestID  `json:"request_id"`
	ProviderID ProviderID `json:"provider_id"`
	Value      Value      `json:"value"`
	Index      int        `json:"index"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Request is a point-in-time copy of a request and its submissions.
type Request struct {
	ID             RequestID    `json:"request_id"`
	Status         Status       `json:"status"`
	Submissions    []Submission `json:"submissions"`
	FinalizedValue *Value       `json:"finalized_value,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	FinalizedAt    time.Time    `json:"finalized_at,omitzero"`
}

// Values returns the submitted values in arrival order.
func (r Request) Values() []Value {
	out := make([]Value, len(r.Submissions))
	for i, s := range r.Submissions {
		out[i] = s.Value
	}
	return out
}
