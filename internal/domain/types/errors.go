package types

import (
	"errors"
	"strings"
)

// Sentinel kinds for oracle errors. Every error returned by the oracle
// components matches exactly one of these with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownRequest      = errors.New("unknown request")
	ErrRequestClosed       = errors.New("request closed")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrAlreadyFinalized    = errors.New("already finalized")
	ErrEmptyInput          = errors.New("empty input")
	ErrNoFinalizedRequest  = errors.New("no finalized request")
	ErrNotFinalized        = errors.New("not finalized")
	ErrInvalidQuorum       = errors.New("invalid quorum")
)

// Error carries the failing operation alongside its kind and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind returns an error of the given kind raised by op, caused by err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the sentinel kind carried by err, or nil if err is not an
// oracle error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrUnauthorized,
		ErrUnknownRequest,
		ErrRequestClosed,
		ErrDuplicateSubmission,
		ErrAlreadyFinalized,
		ErrEmptyInput,
		ErrNoFinalizedRequest,
		ErrNotFinalized,
		ErrInvalidQuorum,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Reason returns a stable snake_case label for err, suitable for metrics and
// API error codes.
func Reason(err error) string {
	kind := KindOf(err)
	if kind == nil {
		return "internal"
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
