package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/logger"
	"github.com/okian/quorum/pkg/metrics"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader lets a provider retry a submission safely.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 16

type createResponse struct {
	RequestID types.RequestID `json:"request_id"`
}

// submitRequest mirrors the OpenAPI schema for POST /requests/{id}/submissions.
// Value is a pointer so that a missing field is told apart from zero.
type submitRequest struct {
	Value *int64 `json:"value"`
}

type submitResponse struct {
	Status    string       `json:"status"`
	Duplicate bool         `json:"duplicate"`
	Index     *int         `json:"index,omitempty"`
	Finalized bool         `json:"finalized"`
	Value     *types.Value `json:"value,omitempty"`
	Display   string       `json:"display,omitempty"`
}

type valueResponse struct {
	RequestID types.RequestID `json:"request_id"`
	Value     types.Value     `json:"value"`
	Display   string          `json:"display"`
}

// display renders v as a fixed-point decimal with the configured scale.
func (s *Server) display(v types.Value) string {
	return decimal.New(int64(v), -s.decimals).StringFixed(s.decimals)
}

func requestID(r *http.Request) (types.RequestID, error) {
	id, err := types.ParseRequestID(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("invalid request id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleCreateRequest handles POST /requests.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r, "create_request")
	if !ok {
		return
	}
	id, err := s.oracle.CreateRequest(r.Context(), caller)
	if err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{RequestID: id})
}

// handleSubmitReading handles POST /requests/{id}/submissions.
//
// With an Idempotency-Key the key is recorded before calling the core, so a
// concurrent retry is answered as a duplicate. If the core rejects the call
// the key is released and the provider may retry with it.
func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_reading"
	id, err := requestID(r)
	if err != nil {
		badRequest(w, op, err)
		return
	}
	caller, ok := s.caller(w, r, "submit_reading")
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, op, err)
		return
	}
	if req.Value == nil {
		badRequest(w, op, errors.New("missing value"))
		return
	}

	ctx := r.Context()
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && s.dedupe != nil {
		key = id.String() + "/" + key
		if s.dedupe.SeenAndRecord(ctx, caller, key) {
			metrics.RecordIdempotentReplay()
			writeJSON(w, http.StatusOK, submitResponse{Status: "duplicate", Duplicate: true})
			return
		}
	}

	res, err := s.oracle.SubmitReading(ctx, caller, id, types.Value(*req.Value))
	if err != nil {
		if key != "" && s.dedupe != nil {
			s.dedupe.Unrecord(ctx, caller, key)
		}
		s.log.Debug(ctx, "submission rejected",
			logger.String("caller", string(caller)),
			logger.Uint64("request_id", uint64(id)),
			logger.Error(err))
		writeOracleError(w, err)
		return
	}

	resp := submitResponse{
		Status:    "accepted",
		Index:     &res.Submission.Index,
		Finalized: res.Finalized,
	}
	if res.Finalized {
		resp.Value = &res.Value
		resp.Display = s.display(res.Value)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleGetRequest handles GET /requests/{id}.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		badRequest(w, "api.get_request", err)
		return
	}
	req, err := s.oracle.Request(r.Context(), id)
	if err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleListSubmissions handles GET /requests/{id}/submissions.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		badRequest(w, "api.list_submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, s.oracle.Submissions(r.Context(), id))
}

// handleGetValue handles GET /requests/{id}/value.
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		badRequest(w, "api.get_value", err)
		return
	}
	v, err := s.oracle.Value(r.Context(), id)
	if err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{RequestID: id, Value: v, Display: s.display(v)})
}

// handleLatestValue handles GET /value/latest.
func (s *Server) handleLatestValue(w http.ResponseWriter, r *http.Request) {
	id, v, err := s.oracle.LatestValue(r.Context())
	if err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{RequestID: id, Value: v, Display: s.display(v)})
}
