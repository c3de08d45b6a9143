// Package httptransport exposes the GitHub gateway and the analyzer as a JSON API.
package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/logger"
	"github.com/naka-gawa/repo-insights/internal/metrics"
	"github.com/naka-gawa/repo-insights/internal/usecase"
)

// maxAnalyzeBodyBytes bounds the POST /api/analyze body.
const maxAnalyzeBodyBytes = 4 << 10

type tokenKey struct{}

type Handler struct {
	newFetcher     gateway.Factory
	summarizer     usecase.RepositorySummarizer
	logger         *zap.Logger
	allowedOrigins []string
}

type Option func(*Handler)

// WithSummarizer enables POST /api/analyze.
func WithSummarizer(s usecase.RepositorySummarizer) Option {
	return func(h *Handler) {
		h.summarizer = s
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.allowedOrigins = origins
	}
}

func NewHandler(newFetcher gateway.Factory, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		newFetcher:     newFetcher,
		logger:         log,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireToken)

		r.Get("/identity", h.GetIdentity)
		r.Get("/repos", h.ListRepositories)
		r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
			r.Get("/", h.GetRepository)
			r.Get("/issues", h.ListIssues)
			r.Post("/issues/{number}/analyze", h.AnalyzeIssue)
			r.Get("/pulls", h.ListPullRequests)
			r.Get("/activity", h.GetActivity)
		})
		r.Post("/analyze", h.Analyze)
	})

	return r
}

// requireToken rejects requests without a bearer credential and stores it in the context.
// The credential is never kept beyond the request.
func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			respondError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization token required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	})
}

// bearerToken accepts "Bearer <token>" and GitHub's "token <token>".
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "token") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (h *Handler) fetcher(r *http.Request) (gateway.Fetcher, error) {
	token, _ := r.Context().Value(tokenKey{}).(string)
	return h.newFetcher(token)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	user, err := fetcher.Authenticate(r.Context())
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch user information")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	repos, err := fetcher.ListRepositories(r.Context())
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch repositories")
		return
	}

	respondJSON(w, http.StatusOK, repos)
}

func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	ref, err := pathRef(r)
	if err != nil {
		handleDomainError(w, r, err, "invalid repository")
		return
	}
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	repo, err := fetcher.GetRepository(r.Context(), ref)
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch repository")
		return
	}

	respondJSON(w, http.StatusOK, repo)
}

func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	ref, state, err := listingParams(r)
	if err != nil {
		handleDomainError(w, r, err, "invalid issues request")
		return
	}
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	issues, err := fetcher.ListIssues(r.Context(), ref, state)
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch issues")
		return
	}

	respondJSON(w, http.StatusOK, issues)
}

func (h *Handler) ListPullRequests(w http.ResponseWriter, r *http.Request) {
	ref, state, err := listingParams(r)
	if err != nil {
		handleDomainError(w, r, err, "invalid pull requests request")
		return
	}
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	prs, err := fetcher.ListPullRequests(r.Context(), ref, state)
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch pull requests")
		return
	}

	respondJSON(w, http.StatusOK, prs)
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	ref, err := pathRef(r)
	if err != nil {
		handleDomainError(w, r, err, "invalid repository")
		return
	}
	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	activity, err := fetcher.FetchActivity(r.Context(), ref)
	if err != nil {
		handleDomainError(w, r, err, "failed to fetch repository activity")
		return
	}

	respondJSON(w, http.StatusOK, activity)
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		logger.FromContext(r.Context()).Error("analyze requested without a Gemini API key")
		respondError(w, http.StatusInternalServerError, CodeModelNotConfigured, "Gemini API key not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidInput, "invalid request body")
		return
	}
	ref, err := req.ref()
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid analyze request", zap.Error(err))
		respondError(w, http.StatusBadRequest, CodeInvalidInput, "owner and repo parameters required")
		return
	}

	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	analysis, err := usecase.NewAnalyzer(fetcher, h.summarizer, logger.FromContext(r.Context())).Analyze(r.Context(), ref)
	if err != nil {
		handleDomainError(w, r, err, "failed to analyze repository")
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

func (h *Handler) AnalyzeIssue(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		logger.FromContext(r.Context()).Error("issue analysis requested without a Gemini API key")
		respondError(w, http.StatusInternalServerError, CodeModelNotConfigured, "Gemini API key not configured")
		return
	}

	ref, err := pathRef(r)
	if err != nil {
		handleDomainError(w, r, err, "invalid repository")
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		respondError(w, http.StatusBadRequest, CodeInvalidInput, "issue number must be a positive integer")
		return
	}

	fetcher, err := h.fetcher(r)
	if err != nil {
		handleDomainError(w, r, err, "failed to create GitHub client")
		return
	}

	analysis, err := usecase.NewAnalyzer(fetcher, h.summarizer, logger.FromContext(r.Context())).AnalyzeIssue(r.Context(), ref, number)
	if err != nil {
		handleDomainError(w, r, err, "failed to analyze issue")
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

func pathRef(r *http.Request) (domain.RepositoryRef, error) {
	return domain.NewRepositoryRef(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
}

func listingParams(r *http.Request) (domain.RepositoryRef, domain.IssueState, error) {
	ref, err := pathRef(r)
	if err != nil {
		return domain.RepositoryRef{}, "", err
	}
	state, err := domain.ParseIssueState(r.URL.Query().Get("state"))
	if err != nil {
		return domain.RepositoryRef{}, "", err
	}
	return ref, state, nil
}
