package api

import (
	"errors"
	"net/http"

	"github.com/okian/quorum/internal/domain/types"
)

// Sentinel kinds for transport errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrRateLimited     = errors.New("rate limited")
)

// statusFor maps an oracle error onto an HTTP status and error code.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.ErrUnauthorized:
		return http.StatusForbidden
	case types.ErrUnknownRequest, types.ErrNoFinalizedRequest:
		return http.StatusNotFound
	case types.ErrRequestClosed, types.ErrDuplicateSubmission, types.ErrAlreadyFinalized, types.ErrNotFinalized:
		return http.StatusConflict
	case types.ErrEmptyInput, types.ErrInvalidQuorum:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeOracleError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), types.Reason(err), err)
}

func badRequest(w http.ResponseWriter, op string, err error) {
	writeError(w, http.StatusBadRequest, "bad_request", types.WrapKind(op, ErrBadRequest, err))
}
