// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/metrics"
)

const (
	// PageSize is the number of items requested from every listing endpoint.
	// Only the first page is ever fetched.
	PageSize = 30

	// DefaultTimeout bounds every outbound GitHub call.
	DefaultTimeout = 30 * time.Second

	unknownAuthor = "unknown"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	Authenticate(ctx context.Context) (*domain.User, error)
	ListRepositories(ctx context.Context) ([]domain.RepositorySummary, error)
	GetRepository(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositorySummary, error)
	ListIssues(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.IssueSummary, error)
	GetIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueSummary, error)
	ListPullRequests(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.PullRequestSummary, error)
	FetchActivity(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositoryActivity, error)
}

// Factory builds a Fetcher for one bearer credential.
type Factory func(token string) (Fetcher, error)

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.Logger
}

// repositoryActivityQuery fetches issue and pull request totals in one round trip.
type repositoryActivityQuery struct {
	Repository struct {
		NameWithOwner string
		OpenIssues    struct {
			TotalCount int
		} `graphql:"openIssues: issues(states: OPEN)"`
		ClosedIssues struct {
			TotalCount int
		} `graphql:"closedIssues: issues(states: CLOSED)"`
		OpenPullRequests struct {
			TotalCount int
		} `graphql:"openPullRequests: pullRequests(states: OPEN)"`
		MergedPullRequests struct {
			TotalCount int
		} `graphql:"mergedPullRequests: pullRequests(states: MERGED)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type options struct {
	baseURL string
	timeout time.Duration
}

// Option configures NewGitHubGateway.
type Option func(*options)

// WithBaseURL points the gateway at a GitHub Enterprise REST root (".../api/v3/") or a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// The token is used for every call made through the returned gateway.
func NewGitHubGateway(token string, logger *zap.Logger, opts ...Option) (Fetcher, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	// A zero single-sleep budget keeps the waiter from sleeping. It still resends when the
	// reported reset is already past, so attemptLimit refuses any second round trip.
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(
		attemptLimit{base: http.DefaultTransport},
		github_ratelimit.WithSingleSleepLimit(0, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout: o.timeout,
		Transport: &oauth2.Transport{
			Base:   singleAttempt{next: rateLimitWaiter},
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if o.baseURL != "" {
		baseURL := o.baseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", o.baseURL, err)
		}
		restClient.BaseURL = parsed
		graphqlClient = githubv4.NewEnterpriseClient(graphqlEndpoint(baseURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

// graphqlEndpoint derives the GraphQL URL from a REST base URL.
// Enterprise servers serve REST under /api/v3/ and GraphQL under /api/graphql.
func graphqlEndpoint(restBase string) string {
	if strings.HasSuffix(restBase, "/api/v3/") {
		return strings.TrimSuffix(restBase, "v3/") + "graphql"
	}
	return restBase + "graphql"
}

// NewFactory returns a Factory that builds gateways sharing the given logger and options.
func NewFactory(logger *zap.Logger, opts ...Option) Factory {
	return func(token string) (Fetcher, error) {
		return NewGitHubGateway(token, logger, opts...)
	}
}

func (g *GitHubGateway) Authenticate(ctx context.Context) (*domain.User, error) {
	g.logger.Debug("Fetching authenticated user")
	user, _, err := g.restClient.Users.Get(ctx, "")
	g.record("authenticate", err)
	if err != nil {
		var errResp *github.ErrorResponse
		var rateErr *github.RateLimitError
		var abuseErr *github.AbuseRateLimitError
		// Any non-2xx on the identity endpoint means the credential is unusable.
		if errors.As(err, &errResp) || errors.As(err, &rateErr) || errors.As(err, &abuseErr) ||
			errors.Is(err, errRetrySuppressed) {
			return nil, fmt.Errorf("%w: failed to get authenticated user: %w", domain.ErrAuthentication, err)
		}
		return nil, fmt.Errorf("%w: failed to get authenticated user: %w", domain.ErrUpstream, err)
	}

	return &domain.User{
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		AvatarURL:   user.GetAvatarURL(),
		URL:         user.GetHTMLURL(),
		PublicRepos: user.GetPublicRepos(),
	}, nil
}

func (g *GitHubGateway) ListRepositories(ctx context.Context) ([]domain.RepositorySummary, error) {
	g.logger.Debug("Fetching repositories of the authenticated user")
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: PageSize},
	}
	repos, _, err := g.restClient.Repositories.ListByAuthenticatedUser(ctx, opts)
	g.record("list_repositories", err)
	if err != nil {
		return nil, classify("failed to list repositories", err)
	}

	summaries := make([]domain.RepositorySummary, 0, len(repos))
	for _, repo := range repos {
		summaries = append(summaries, convertRepository(repo))
	}
	return summaries, nil
}

func (g *GitHubGateway) GetRepository(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositorySummary, error) {
	g.logger.Debug("Fetching repository", zap.Stringer("repository", ref))
	repo, _, err := g.restClient.Repositories.Get(ctx, ref.Owner, ref.Name)
	g.record("get_repository", err)
	if err != nil {
		return nil, classify("failed to get repository", err)
	}

	summary := convertRepository(repo)
	return &summary, nil
}

// ListIssues returns the first page of issues. The issues endpoint also returns
// pull requests; those are dropped and the remaining order is kept.
func (g *GitHubGateway) ListIssues(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.IssueSummary, error) {
	g.logger.Debug("Fetching issues", zap.Stringer("repository", ref), zap.String("state", string(state)))
	opts := &github.IssueListByRepoOptions{
		State:       string(state),
		ListOptions: github.ListOptions{PerPage: PageSize},
	}
	issues, _, err := g.restClient.Issues.ListByRepo(ctx, ref.Owner, ref.Name, opts)
	g.record("list_issues", err)
	if err != nil {
		return nil, classify("failed to list issues", err)
	}

	issues = issues[:min(len(issues), PageSize)]
	summaries := make([]domain.IssueSummary, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		summaries = append(summaries, convertIssue(issue))
	}
	g.logger.Debug("Completed fetching issues",
		zap.Int("received", len(issues)),
		zap.Int("kept", len(summaries)),
	)
	return summaries, nil
}

// GetIssue fetches one issue. A pull request number is reported as not found.
func (g *GitHubGateway) GetIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueSummary, error) {
	g.logger.Debug("Fetching issue", zap.Stringer("repository", ref), zap.Int("number", number))
	issue, _, err := g.restClient.Issues.Get(ctx, ref.Owner, ref.Name, number)
	g.record("get_issue", err)
	if err != nil {
		return nil, classify("failed to get issue", err)
	}
	if issue.IsPullRequest() {
		return nil, fmt.Errorf("%w: #%d in %s is a pull request", domain.ErrNotFound, number, ref)
	}

	summary := convertIssue(issue)
	return &summary, nil
}

func (g *GitHubGateway) ListPullRequests(ctx context.Context, ref domain.RepositoryRef, state domain.IssueState) ([]domain.PullRequestSummary, error) {
	g.logger.Debug("Fetching pull requests", zap.Stringer("repository", ref), zap.String("state", string(state)))
	opts := &github.PullRequestListOptions{
		State:       string(state),
		ListOptions: github.ListOptions{PerPage: PageSize},
	}
	prs, _, err := g.restClient.PullRequests.List(ctx, ref.Owner, ref.Name, opts)
	g.record("list_pull_requests", err)
	if err != nil {
		return nil, classify("failed to list pull requests", err)
	}

	prs = prs[:min(len(prs), PageSize)]
	summaries := make([]domain.PullRequestSummary, 0, len(prs))
	for _, pr := range prs {
		summaries = append(summaries, convertPullRequest(pr))
	}
	return summaries, nil
}

// FetchActivity reads issue and pull request totals with the GraphQL API.
func (g *GitHubGateway) FetchActivity(ctx context.Context, ref domain.RepositoryRef) (*domain.RepositoryActivity, error) {
	g.logger.Debug("Fetching repository activity using GraphQL API", zap.Stringer("repository", ref))
	variables := map[string]interface{}{
		"owner": githubv4.String(ref.Owner),
		"name":  githubv4.String(ref.Name),
	}

	var q repositoryActivityQuery
	err := g.graphqlClient.Query(ctx, &q, variables)
	g.record("fetch_activity", err)
	if err != nil {
		return nil, classifyGraphQL("failed to execute GraphQL query for activity", err)
	}

	name := q.Repository.NameWithOwner
	if name == "" {
		name = ref.FullName()
	}
	return &domain.RepositoryActivity{
		Repository:         name,
		OpenIssues:         q.Repository.OpenIssues.TotalCount,
		ClosedIssues:       q.Repository.ClosedIssues.TotalCount,
		OpenPullRequests:   q.Repository.OpenPullRequests.TotalCount,
		MergedPullRequests: q.Repository.MergedPullRequests.TotalCount,
	}, nil
}

func (g *GitHubGateway) record(operation string, err error) {
	metrics.GitHubRequestsTotal.WithLabelValues(operation, metrics.Outcome(err)).Inc()
	if err != nil {
		g.logger.Debug("GitHub request failed", zap.String("operation", operation), zap.Error(err))
	}
}

func convertRepository(repo *github.Repository) domain.RepositorySummary {
	return domain.RepositorySummary{
		Name:           repo.GetName(),
		FullName:       repo.GetFullName(),
		Description:    repo.Description,
		URL:            repo.GetHTMLURL(),
		StarCount:      repo.GetStargazersCount(),
		OpenIssueCount: repo.GetOpenIssuesCount(),
	}
}

func convertIssue(issue *github.Issue) domain.IssueSummary {
	return domain.IssueSummary{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		State:     issue.GetState(),
		URL:       issue.GetHTMLURL(),
		Author:    actor(issue.GetUser()),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
		Body:      nonEmpty(issue.Body),
		Labels:    labelNames(issue.Labels),
	}
}

func convertPullRequest(pr *github.PullRequest) domain.PullRequestSummary {
	return domain.PullRequestSummary{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		URL:       pr.GetHTMLURL(),
		Author:    actor(pr.GetUser()),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
		Body:      nonEmpty(pr.Body),
		Labels:    labelNames(pr.Labels),
	}
}

func labelNames(labels []*github.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		if name := label.GetName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func actor(user *github.User) domain.Actor {
	if login := user.GetLogin(); login != "" {
		return domain.Actor{Login: login}
	}
	return domain.Actor{Login: unknownAuthor}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
