package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/quorum/internal/domain/types"
)

type providerRequest struct {
	Authorized *bool `json:"authorized"`
}

type providerResponse struct {
	ProviderID types.ProviderID `json:"provider_id"`
	Authorized bool             `json:"authorized"`
}

// handleSetProvider handles PUT /providers/{id}. Only the registry owner
// may call it.
func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_provider"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		badRequest(w, op, errors.New("missing provider id"))
		return
	}
	caller, ok := s.caller(w, r, "set_provider")
	if !ok {
		return
	}

	var req providerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, op, err)
		return
	}
	if req.Authorized == nil {
		badRequest(w, op, errors.New("missing authorized"))
		return
	}

	if err := s.oracle.SetProvider(r.Context(), caller, types.ProviderID(id), *req.Authorized); err != nil {
		writeOracleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, providerResponse{ProviderID: types.ProviderID(id), Authorized: *req.Authorized})
}

// handleListProviders handles GET /providers.
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.oracle.Providers(r.Context()))
}
