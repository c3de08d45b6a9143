package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/summarizer"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Authenticate(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockFetcher) ListRepositories(ctx context.Context) ([]domain.RepositorySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RepositorySummary), args.Error(1)
}

func (m *mockFetcher) GetRepository(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositorySummary, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepositorySummary), args.Error(1)
}

func (m *mockFetcher) ListIssues(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.IssueSummary, error) {
	args := m.Called(ctx, ref, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IssueSummary), args.Error(1)
}

func (m *mockFetcher) ListPullRequests(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.PullRequestSummary, error) {
	args := m.Called(ctx, ref, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequestSummary), args.Error(1)
}

func (m *mockFetcher) FetchActivity(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositoryActivity, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepositoryActivity), args.Error(1)
}

func (m *mockFetcher) GetIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueSummary, error) {
	args := m.Called(ctx, ref, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IssueSummary), args.Error(1)
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) SummarizeRepository(ctx context.Context, data summarizer.RepositoryData) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisResult), args.Error(1)
}

func (m *mockSummarizer) SummarizeIssue(ctx context.Context, repoName string, issue domain.IssueSummary) (string, error) {
	args := m.Called(ctx, repoName, issue)
	return args.String(0), args.Error(1)
}

var helloWorld = domain.RepositoryRef{Owner: "octocat", Name: "Hello-World"}

// newTestRouter wires a handler whose factory always returns fetcher and records the token it got.
func newTestRouter(fetcher gateway.Fetcher, gotToken *string, opts ...Option) http.Handler {
	factory := func(token string) (gateway.Fetcher, error) {
		if gotToken != nil {
			*gotToken = token
		}
		return fetcher, nil
	}
	return NewHandler(factory, zap.NewNop(), opts...).Router()
}

func doRequest(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandler_Health(t *testing.T) {
	rec := doRequest(t, newTestRouter(new(mockFetcher), nil), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_RequiresToken(t *testing.T) {
	routes := []struct {
		method, target string
	}{
		{http.MethodGet, "/api/identity"},
		{http.MethodGet, "/api/repos"},
		{http.MethodGet, "/api/repos/octocat/Hello-World"},
		{http.MethodGet, "/api/repos/octocat/Hello-World/issues"},
		{http.MethodGet, "/api/repos/octocat/Hello-World/pulls"},
		{http.MethodPost, "/api/analyze"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			fetcher := new(mockFetcher)
			rec := doRequest(t, newTestRouter(fetcher, nil), route.method, route.target, "", "")

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, CodeUnauthorized, decodeError(t, rec).Code)
			fetcher.AssertNotCalled(t, "Authenticate", mock.Anything)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "abc", bearerToken("token abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken("Bearer "))
}

func TestHandler_GetIdentity(t *testing.T) {
	testCases := []struct {
		name         string
		user         *domain.User
		err          error
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "happy path",
			user:         &domain.User{Login: "octocat", URL: "https://github.com/octocat"},
			expectedCode: http.StatusOK,
		},
		{
			name:         "error case - token rejected upstream",
			err:          fmt.Errorf("%w: bad credentials", domain.ErrAuthentication),
			expectedCode: http.StatusUnauthorized,
			expectedErr:  CodeUnauthorized,
		},
		{
			name:         "error case - upstream failure",
			err:          fmt.Errorf("%w: connection refused", domain.ErrUpstream),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  CodeUpstream,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			fetcher.On("Authenticate", mock.Anything).Return(tc.user, tc.err)
			var gotToken string

			rec := doRequest(t, newTestRouter(fetcher, &gotToken), http.MethodGet, "/api/identity", "ghp_secret", "")

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, "ghp_secret", gotToken)
			if tc.expectedErr != "" {
				payload := decodeError(t, rec)
				assert.Equal(t, tc.expectedErr, payload.Code)
				assert.NotContains(t, payload.Message, "connection refused")
				return
			}
			assert.JSONEq(t, `{"login":"octocat","html_url":"https://github.com/octocat","public_repos":0}`, rec.Body.String())
		})
	}
}

func TestHandler_ListRepositories(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("ListRepositories", mock.Anything).Return([]domain.RepositorySummary{
		{Name: "Hello-World", FullName: "octocat/Hello-World", URL: "https://github.com/octocat/Hello-World", StarCount: 3},
	}, nil)

	rec := doRequest(t, newTestRouter(fetcher, nil), http.MethodGet, "/api/repos", "tok", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"Hello-World","full_name":"octocat/Hello-World","description":null,"html_url":"https://github.com/octocat/Hello-World","stargazers_count":3,"open_issues_count":0}]`, rec.Body.String())
}

func TestHandler_GetRepository(t *testing.T) {
	testCases := []struct {
		name         string
		repo         *domain.RepositorySummary
		err          error
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "happy path",
			repo:         &domain.RepositorySummary{Name: "Hello-World", FullName: "octocat/Hello-World"},
			expectedCode: http.StatusOK,
		},
		{
			name:         "error case - not found",
			err:          fmt.Errorf("%w: 404", domain.ErrNotFound),
			expectedCode: http.StatusNotFound,
			expectedErr:  CodeNotFound,
		},
		{
			name:         "error case - rate limited",
			err:          fmt.Errorf("%w: 403", domain.ErrRateLimited),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  CodeRateLimited,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			fetcher.On("GetRepository", mock.Anything, helloWorld).Return(tc.repo, tc.err)

			rec := doRequest(t, newTestRouter(fetcher, nil), http.MethodGet, "/api/repos/octocat/Hello-World", "tok", "")

			assert.Equal(t, tc.expectedCode, rec.Code)
			if tc.expectedErr != "" {
				assert.Equal(t, tc.expectedErr, decodeError(t, rec).Code)
			}
			fetcher.AssertExpectations(t)
		})
	}
}

func TestHandler_Listings(t *testing.T) {
	testCases := []struct {
		name          string
		target        string
		method        string
		expectedState domain.IssueState
		expectedCode  int
	}{
		{name: "issues default to open", target: "/api/repos/octocat/Hello-World/issues", method: "ListIssues", expectedState: domain.StateOpen, expectedCode: http.StatusOK},
		{name: "issues closed", target: "/api/repos/octocat/Hello-World/issues?state=closed", method: "ListIssues", expectedState: domain.StateClosed, expectedCode: http.StatusOK},
		{name: "pulls default to open", target: "/api/repos/octocat/Hello-World/pulls", method: "ListPullRequests", expectedState: domain.StateOpen, expectedCode: http.StatusOK},
		{name: "pulls all", target: "/api/repos/octocat/Hello-World/pulls?state=all", method: "ListPullRequests", expectedState: domain.StateAll, expectedCode: http.StatusOK},
		{name: "unknown state is rejected", target: "/api/repos/octocat/Hello-World/issues?state=merged", expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			fetcher.On("ListIssues", mock.Anything, helloWorld, tc.expectedState).Return([]domain.IssueSummary{}, nil).Maybe()
			fetcher.On("ListPullRequests", mock.Anything, helloWorld, tc.expectedState).Return([]domain.PullRequestSummary{}, nil).Maybe()

			rec := doRequest(t, newTestRouter(fetcher, nil), http.MethodGet, tc.target, "tok", "")

			assert.Equal(t, tc.expectedCode, rec.Code)
			if tc.method != "" {
				fetcher.AssertCalled(t, tc.method, mock.Anything, helloWorld, tc.expectedState)
				assert.JSONEq(t, `[]`, rec.Body.String())
			} else {
				assert.Equal(t, CodeInvalidInput, decodeError(t, rec).Code)
			}
		})
	}
}

func TestHandler_GetActivity(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("FetchActivity", mock.Anything, helloWorld).Return(&domain.RepositoryActivity{
		Repository: "octocat/Hello-World", OpenIssues: 2, OpenPullRequests: 1,
	}, nil)

	rec := doRequest(t, newTestRouter(fetcher, nil), http.MethodGet, "/api/repos/octocat/Hello-World/activity", "tok", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"repository":"octocat/Hello-World","open_issues":2,"closed_issues":0,"open_pull_requests":1,"merged_pull_requests":0}`, rec.Body.String())
}

func TestHandler_Analyze(t *testing.T) {
	result := &domain.AnalysisResult{IssuesAnalysis: "i", PullRequestsAnalysis: "p", OverallInsights: "o"}

	testCases := []struct {
		name          string
		body          string
		noSummarizer  bool
		summarizeErr  error
		expectFetch   bool
		expectedCode  int
		expectedError string
	}{
		{
			name:         "happy path - owner and repo",
			body:         `{"owner":"octocat","repo":"Hello-World"}`,
			expectFetch:  true,
			expectedCode: http.StatusOK,
		},
		{
			name:         "happy path - repository URL",
			body:         `{"repository":"https://github.com/octocat/Hello-World/issues"}`,
			expectFetch:  true,
			expectedCode: http.StatusOK,
		},
		{
			name:          "error case - model key missing",
			body:          `{"owner":"octocat","repo":"Hello-World"}`,
			noSummarizer:  true,
			expectedCode:  http.StatusInternalServerError,
			expectedError: CodeModelNotConfigured,
		},
		{
			name:          "error case - repo missing",
			body:          `{"owner":"octocat"}`,
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - empty body",
			body:          `{}`,
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - malformed body",
			body:          `{"owner":`,
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - oversized body",
			body:          `{"owner":"octocat","repo":"Hello-World","repository":"` + strings.Repeat("a", maxAnalyzeBodyBytes) + `"}`,
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - summarization fails",
			body:          `{"owner":"octocat","repo":"Hello-World"}`,
			summarizeErr:  fmt.Errorf("%w: quota", domain.ErrSummarization),
			expectFetch:   true,
			expectedCode:  http.StatusInternalServerError,
			expectedError: CodeSummarization,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			fetcher.On("ListIssues", mock.Anything, helloWorld, domain.StateOpen).Return([]domain.IssueSummary{{Number: 1}, {Number: 2}}, nil).Maybe()
			fetcher.On("ListPullRequests", mock.Anything, helloWorld, domain.StateOpen).Return([]domain.PullRequestSummary{{Number: 3}}, nil).Maybe()

			sum := new(mockSummarizer)
			var ret interface{}
			if tc.summarizeErr == nil {
				ret = result
			}
			sum.On("SummarizeRepository", mock.Anything, mock.Anything).Return(ret, tc.summarizeErr).Maybe()

			var opts []Option
			if !tc.noSummarizer {
				opts = append(opts, WithSummarizer(sum))
			}

			rec := doRequest(t, newTestRouter(fetcher, nil, opts...), http.MethodPost, "/api/analyze", "tok", tc.body)

			assert.Equal(t, tc.expectedCode, rec.Code)
			if tc.expectFetch {
				fetcher.AssertCalled(t, "ListIssues", mock.Anything, helloWorld, domain.StateOpen)
				fetcher.AssertCalled(t, "ListPullRequests", mock.Anything, helloWorld, domain.StateOpen)
			} else {
				fetcher.AssertNotCalled(t, "ListIssues", mock.Anything, mock.Anything, mock.Anything)
			}
			if tc.expectedError != "" {
				assert.Equal(t, tc.expectedError, decodeError(t, rec).Code)
				assert.NotContains(t, rec.Body.String(), "issuesAnalysis")
				return
			}

			var analysis domain.Analysis
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
			assert.Equal(t, "octocat/Hello-World", analysis.Repository)
			assert.Equal(t, *result, analysis.Result)
			assert.Equal(t, 2, analysis.Metadata.IssuesCount)
			assert.Equal(t, 1, analysis.Metadata.PullRequestsCount)
			assert.False(t, analysis.Metadata.AnalyzedAt.IsZero())
		})
	}
}

func TestHandler_AnalyzeIssue(t *testing.T) {
	issue := &domain.IssueSummary{Number: 7, Title: "Crash on start", State: "open", Labels: []string{"bug"}}

	testCases := []struct {
		name          string
		target        string
		noSummarizer  bool
		fetchErr      error
		expectFetch   bool
		expectedCode  int
		expectedError string
	}{
		{
			name:         "happy path",
			target:       "/api/repos/octocat/Hello-World/issues/7/analyze",
			expectFetch:  true,
			expectedCode: http.StatusOK,
		},
		{
			name:          "error case - model key missing",
			target:        "/api/repos/octocat/Hello-World/issues/7/analyze",
			noSummarizer:  true,
			expectedCode:  http.StatusInternalServerError,
			expectedError: CodeModelNotConfigured,
		},
		{
			name:          "error case - number not numeric",
			target:        "/api/repos/octocat/Hello-World/issues/seven/analyze",
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - number zero",
			target:        "/api/repos/octocat/Hello-World/issues/0/analyze",
			expectedCode:  http.StatusBadRequest,
			expectedError: CodeInvalidInput,
		},
		{
			name:          "error case - issue not found",
			target:        "/api/repos/octocat/Hello-World/issues/7/analyze",
			fetchErr:      fmt.Errorf("%w: #7 is a pull request", domain.ErrNotFound),
			expectFetch:   true,
			expectedCode:  http.StatusNotFound,
			expectedError: CodeNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			var fetched interface{}
			if tc.fetchErr == nil {
				fetched = issue
			}
			fetcher.On("GetIssue", mock.Anything, helloWorld, 7).Return(fetched, tc.fetchErr).Maybe()

			sum := new(mockSummarizer)
			sum.On("SummarizeIssue", mock.Anything, "octocat/Hello-World", *issue).Return("a nil map", nil).Maybe()

			var opts []Option
			if !tc.noSummarizer {
				opts = append(opts, WithSummarizer(sum))
			}

			rec := doRequest(t, newTestRouter(fetcher, nil, opts...), http.MethodPost, tc.target, "tok", "")

			assert.Equal(t, tc.expectedCode, rec.Code)
			if tc.expectFetch {
				fetcher.AssertCalled(t, "GetIssue", mock.Anything, helloWorld, 7)
			} else {
				fetcher.AssertNotCalled(t, "GetIssue", mock.Anything, mock.Anything, mock.Anything)
			}
			if tc.expectedError != "" {
				assert.Equal(t, tc.expectedError, decodeError(t, rec).Code)
				return
			}

			var analysis domain.IssueAnalysis
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
			assert.Equal(t, "octocat/Hello-World", analysis.Repository)
			assert.Equal(t, "a nil map", analysis.Analysis)
			assert.Equal(t, []string{"bug"}, analysis.Issue.Labels)
		})
	}
}

func TestHandler_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/repos", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()

	newTestRouter(new(mockFetcher), nil).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}
