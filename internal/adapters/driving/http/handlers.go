package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// maxBodyBytes caps request bodies; queries are at most a few KB
const maxBodyBytes = 1 << 20

// readyTimeout bounds each readiness probe
const readyTimeout = 2 * time.Second

// ErrorBody is the error envelope of every /v1 response
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"requestId"`
}

// ErrorDetail carries the taxonomy code and field details
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady probes every configured dependency. Any failure reports 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness check failed", "check", c.Name, "error", err)
			resp.Checks[c.Name] = "unavailable"
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Search endpoints

// handleSearch ranks items for a query within the caller's tenancy
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeAPIError(w, r, domain.ErrUnauthorized)
		return
	}

	var req domain.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := authorize(authCtx, req.Scope, &req.OrganizationID, req.WorkspaceID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	req.ActorID = authCtx.ActorID

	resp, err := s.searchService.Search(r.Context(), &req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSimilar ranks items near a stored chunk or document
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeAPIError(w, r, domain.ErrUnauthorized)
		return
	}

	var req domain.SimilarRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := authorize(authCtx, req.Scope, &req.OrganizationID, req.WorkspaceID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	req.ActorID = authCtx.ActorID

	resp, err := s.searchService.Similar(r.Context(), &req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorize defaults the organization to the caller's and rejects tenancy
// the credential does not grant. Org scope must name its organization, so
// it is left empty there for validation to reject.
func authorize(authCtx *domain.AuthContext, scope domain.Scope, organizationID *string, workspaceID string) error {
	*organizationID = strings.TrimSpace(*organizationID)
	if *organizationID == "" && scope != domain.ScopeOrg {
		*organizationID = authCtx.OrganizationID
	}
	if !authCtx.Allows(*organizationID, workspaceID) {
		return fmt.Errorf("%w: credential does not grant this organization or workspace", domain.ErrForbidden)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.InvalidField("body", "invalid JSON: %v", err)
	}
	return nil
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAPIError renders err as the error envelope. Internal errors never
// leak their message.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusForCode(code)

	detail := ErrorDetail{Code: code, Message: err.Error()}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		detail.Details = map[string]string{"field": fe.Field, "reason": fe.Reason}
	}
	if status == http.StatusInternalServerError {
		detail.Message = "internal server error"
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, ErrorBody{Error: detail, RequestID: domain.RequestIDFromContext(r.Context())})
}

func statusForCode(code string) int {
	switch code {
	case "InvalidArgument":
		return http.StatusBadRequest
	case "Unauthorized":
		return http.StatusUnauthorized
	case "Forbidden":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "RateLimited":
		return http.StatusTooManyRequests
	case "NoCandidateSources", "RetrieverUnavailable", "ServiceUnavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
