// Package dashboard is the command-line front end of the API server: an HTTP client,
// a local credential store and plain-text rendering.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const (
	DefaultServerURL = "http://localhost:3001"
	defaultTimeout   = 2 * time.Minute
)

var (
	// ErrNoCredential is returned before any request is sent when no token is known.
	ErrNoCredential = errors.New("no GitHub token")
	ErrUnreachable  = errors.New("server unreachable")
)

// APIError is a non-2xx answer of the API server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the repo-insights API server on behalf of one token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Identity(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/identity", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Repositories(ctx context.Context) ([]domain.RepositorySummary, error) {
	var repos []domain.RepositorySummary
	if err := c.do(ctx, http.MethodGet, "/api/repos", nil, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Client) Repository(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositorySummary, error) {
	var repo domain.RepositorySummary
	if err := c.do(ctx, http.MethodGet, repoPath(ref, ""), nil, nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (c *Client) Issues(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.IssueSummary, error) {
	var issues []domain.IssueSummary
	if err := c.do(ctx, http.MethodGet, repoPath(ref, "/issues"), stateQuery(state), nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *Client) PullRequests(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.PullRequestSummary, error) {
	var prs []domain.PullRequestSummary
	if err := c.do(ctx, http.MethodGet, repoPath(ref, "/pulls"), stateQuery(state), nil, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

func (c *Client) Activity(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositoryActivity, error) {
	var activity domain.RepositoryActivity
	if err := c.do(ctx, http.MethodGet, repoPath(ref, "/activity"), nil, nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (c *Client) Analyze(ctx context.Context, ref domain.RepositoryRef) (*domain.Analysis, error) {
	body := map[string]string{"owner": ref.Owner, "repo": ref.Name}
	var analysis domain.Analysis
	if err := c.do(ctx, http.MethodPost, "/api/analyze", nil, body, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (c *Client) AnalyzeIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueAnalysis, error) {
	var analysis domain.IssueAnalysis
	path := repoPath(ref, "/issues/"+strconv.Itoa(number)+"/analyze")
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.token == "" {
		return ErrNoCredential
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
	}
	return apiErr
}

func repoPath(ref domain.RepositoryRef, suffix string) string {
	return "/api/repos/" + url.PathEscape(ref.Owner) + "/" + url.PathEscape(ref.Name) + suffix
}

func stateQuery(state domain.IssueState) url.Values {
	if state == "" {
		return nil
	}
	return url.Values{"state": []string{string(state)}}
}

// IsFriendly reports whether FriendlyMessage has a dedicated message for err.
func IsFriendly(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, domain.ErrInvalidInput)
}

// FriendlyMessage turns a client error into one line fit for a terminal.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoCredential) {
		return "Not logged in. Run `repo-insights login` or set GITHUB_TOKEN."
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	}

	if errors.Is(err, ErrUnreachable) {
		return "Could not reach the repo-insights server. Is `repo-insights serve` running?"
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return "Failed to authenticate. Please check your token."
	case apiErr.Status == http.StatusNotFound:
		return "Repository or issue not found."
	case apiErr.Status == http.StatusBadRequest:
		return "Invalid request: " + apiErr.Message
	case apiErr.Code == "RATE_LIMITED":
		return "Rate limit exceeded. Please try again later."
	case apiErr.Code == "MODEL_NOT_CONFIGURED":
		return "Analysis is unavailable. Make sure GEMINI_API_KEY is configured on the server."
	case apiErr.Code == "SUMMARIZATION_ERROR":
		return "Failed to analyze repository. Please try again."
	default:
		return "The server failed to handle the request."
	}
}
