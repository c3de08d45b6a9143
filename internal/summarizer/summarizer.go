// Package summarizer turns issues and pull requests into language model prompts
// and collects the free-text answers.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/metrics"
)

// ErrEmptyResponse is returned when the model answers with blank text.
var ErrEmptyResponse = errors.New("empty response from model")

// Generator produces text from a prompt.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// RepositoryData is the input of SummarizeRepository.
type RepositoryData struct {
	RepoName       string
	Issues         []domain.IssueSummary
	PullRequests   []domain.PullRequestSummary
	IssueAge       domain.AgeStats
	PullRequestAge domain.AgeStats
}

// Summarizer requests insights about repository activity from a Generator.
type Summarizer struct {
	generator Generator
	logger    *zap.Logger
}

func New(generator Generator, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		logger:    logger,
	}
}

func (s *Summarizer) SummarizeIssues(ctx context.Context, issues []domain.IssueSummary) (string, error) {
	return s.generate(ctx, "issues", issuesPrompt(issues))
}

func (s *Summarizer) SummarizePullRequests(ctx context.Context, prs []domain.PullRequestSummary) (string, error) {
	return s.generate(ctx, "pull_requests", pullRequestsPrompt(prs))
}

// SummarizeIssue analyzes one issue on its own.
func (s *Summarizer) SummarizeIssue(ctx context.Context, repoName string, issue domain.IssueSummary) (string, error) {
	return s.generate(ctx, "issue", issuePrompt(repoName, issue))
}

// SummarizeRepository runs the issue and pull request summaries in parallel and the
// overall summary last. Any failure discards every partial answer.
func (s *Summarizer) SummarizeRepository(ctx context.Context, data RepositoryData) (*domain.AnalysisResult, error) {
	s.logger.Debug("Summarizing repository",
		zap.String("repository", data.RepoName),
		zap.Int("issues", len(data.Issues)),
		zap.Int("pull_requests", len(data.PullRequests)),
	)

	var issuesAnalysis, pullRequestsAnalysis string

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		issuesAnalysis, err = s.SummarizeIssues(egCtx, data.Issues)
		return err
	})

	eg.Go(func() error {
		var err error
		pullRequestsAnalysis, err = s.SummarizePullRequests(egCtx, data.PullRequests)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to summarize repository %s: %w", data.RepoName, err)
	}

	overallInsights, err := s.generate(ctx, "overall", overallPrompt(data))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize repository %s: %w", data.RepoName, err)
	}

	return &domain.AnalysisResult{
		IssuesAnalysis:       issuesAnalysis,
		PullRequestsAnalysis: pullRequestsAnalysis,
		OverallInsights:      overallInsights,
	}, nil
}

func (s *Summarizer) generate(ctx context.Context, kind, prompt string) (string, error) {
	text, err := s.generator.GenerateText(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	metrics.SummariesTotal.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("%w: %s prompt: %w", domain.ErrSummarization, kind, err)
	}
	return text, nil
}
