package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/logger"
)

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeSummarization      = "SUMMARIZATION_ERROR"
	CodeModelNotConfigured = "MODEL_NOT_CONFIGURED"
	CodeInternal           = "INTERNAL"
)

type errorResponse struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type analyzeRequest struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Repository string `json:"repository"`
}

// ref resolves the body to a repository. owner/repo win over repository.
func (req analyzeRequest) ref() (domain.RepositoryRef, error) {
	if req.Owner != "" || req.Repo != "" {
		return domain.NewRepositoryRef(req.Owner, req.Repo)
	}
	if req.Repository != "" {
		return domain.ParseRepositoryRef(req.Repository)
	}
	return domain.RepositoryRef{}, errors.New("owner and repo are required")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// handleDomainError logs the cause and answers with a generic message for its category.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logger.LogDomainAware(r.Context(), err, msg)

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, CodeInvalidInput, "invalid request")
	case errors.Is(err, domain.ErrAuthentication):
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "repository not found")
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, http.StatusInternalServerError, CodeRateLimited, "GitHub rate limit exceeded")
	case errors.Is(err, domain.ErrSummarization):
		respondError(w, http.StatusInternalServerError, CodeSummarization, "failed to analyze repository")
	case errors.Is(err, domain.ErrUpstream):
		respondError(w, http.StatusInternalServerError, CodeUpstream, msg)
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
