// Package model contains the notifications the oracle publishes to observers.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/quorum/internal/domain/types"
)

// Kind names a notification.
type Kind string

// Notification kinds.
const (
	KindRequestCreated              Kind = "request_created"
	KindSubmissionRecorded          Kind = "submission_recorded"
	KindRequestFinalized            Kind = "request_finalized"
	KindProviderAuthorizationChange Kind = "provider_authorization_changed"
)

// Event is a notification emitted after a state change has been committed.
// Only the fields relevant to Kind are set.
type Event struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	RequestID  types.RequestID  `json:"request_id,omitempty"`
	ProviderID types.ProviderID `json:"provider_id,omitempty"`
	Value      types.Value      `json:"value,omitempty"`
	Authorized bool             `json:"authorized,omitempty"`
	At         time.Time        `json:"at"`
}

func newEvent(kind Kind, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: kind, At: at}
}

// RequestCreated announces a freshly allocated request.
func RequestCreated(id types.RequestID, at time.Time) Event {
	e := newEvent(KindRequestCreated, at)
	e.RequestID = id
	return e
}

// SubmissionRecorded announces an accepted reading.
func SubmissionRecorded(id types.RequestID, provider types.ProviderID, value types.Value, at time.Time) Event {
	e := newEvent(KindSubmissionRecorded, at)
	e.RequestID = id
	e.ProviderID = provider
	e.Value = value
	return e
}

// RequestFinalized announces the resolved value of a request.
func RequestFinalized(id types.RequestID, value types.Value, at time.Time) Event {
	e := newEvent(KindRequestFinalized, at)
	e.RequestID = id
	e.Value = value
	return e
}

// ProviderAuthorizationChanged announces a registry change.
func ProviderAuthorizationChanged(provider types.ProviderID, authorized bool, at time.Time) Event {
	e := newEvent(KindProviderAuthorizationChange, at)
	e.ProviderID = provider
	e.Authorized = authorized
	return e
}
