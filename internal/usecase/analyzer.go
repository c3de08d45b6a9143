// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/metrics"
	"github.com/naka-gawa/repo-insights/internal/summarizer"
)

// RepositorySummarizer produces the analysis texts for a repository or one of its issues.
type RepositorySummarizer interface {
	SummarizeRepository(ctx context.Context, data summarizer.RepositoryData) (*domain.AnalysisResult, error)
	SummarizeIssue(ctx context.Context, repoName string, issue domain.IssueSummary) (string, error)
}

// Analyzer is the use case for analyzing a repository's open activity.
// It orchestrates the fetching of issues and pull requests and their summarization.
type Analyzer struct {
	fetcher    gateway.Fetcher
	summarizer RepositorySummarizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer(fetcher gateway.Fetcher, summarizer RepositorySummarizer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		fetcher:    fetcher,
		summarizer: summarizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Analyze fetches open issues and open pull requests concurrently, then asks
// the summarizer for insights. Nothing is returned unless every step succeeds.
func (a *Analyzer) Analyze(ctx context.Context, ref domain.RepositoryRef) (*domain.Analysis, error) {
	analysis, err := a.analyze(ctx, ref)
	metrics.AnalysesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return analysis, err
}

func (a *Analyzer) analyze(ctx context.Context, ref domain.RepositoryRef) (*domain.Analysis, error) {
	a.logger.Debug("Usecase: Starting repository analysis", zap.Stringer("repository", ref))

	var issues []domain.IssueSummary
	var pullRequests []domain.PullRequestSummary

	// Use an errgroup to fetch both listings concurrently.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		issues, err = a.fetcher.ListIssues(egCtx, ref, domain.StateOpen)
		return err
	})

	eg.Go(func() error {
		var err error
		pullRequests, err = a.fetcher.ListPullRequests(egCtx, ref, domain.StateOpen)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Debug("Usecase: All data fetched successfully.",
		zap.Int("issues", len(issues)),
		zap.Int("pull_requests", len(pullRequests)),
	)

	now := a.now().UTC()

	issueCreated := make([]time.Time, 0, len(issues))
	for _, issue := range issues {
		issueCreated = append(issueCreated, issue.CreatedAt)
	}
	prCreated := make([]time.Time, 0, len(pullRequests))
	for _, pr := range pullRequests {
		prCreated = append(prCreated, pr.CreatedAt)
	}
	issueAge := ageStats(now, issueCreated)
	prAge := ageStats(now, prCreated)

	result, err := a.summarizer.SummarizeRepository(ctx, summarizer.RepositoryData{
		RepoName:       ref.FullName(),
		Issues:         issues,
		PullRequests:   pullRequests,
		IssueAge:       issueAge,
		PullRequestAge: prAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", ref, err)
	}

	a.logger.Debug("Usecase: Analysis complete.", zap.Stringer("repository", ref))
	return &domain.Analysis{
		Repository: ref.FullName(),
		Result:     *result,
		Metadata: domain.AnalysisMetadata{
			IssuesCount:       len(issues),
			PullRequestsCount: len(pullRequests),
			AnalyzedAt:        now,
			IssueAge:          issueAge,
			PullRequestAge:    prAge,
		},
	}, nil
}

// AnalyzeIssue fetches a single issue and asks the summarizer about it alone.
func (a *Analyzer) AnalyzeIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueAnalysis, error) {
	analysis, err := a.analyzeIssue(ctx, ref, number)
	metrics.AnalysesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return analysis, err
}

func (a *Analyzer) analyzeIssue(ctx context.Context, ref domain.RepositoryRef, number int) (*domain.IssueAnalysis, error) {
	a.logger.Debug("Usecase: Starting issue analysis", zap.Stringer("repository", ref), zap.Int("number", number))

	issue, err := a.fetcher.GetIssue(ctx, ref, number)
	if err != nil {
		return nil, err
	}

	text, err := a.summarizer.SummarizeIssue(ctx, ref.FullName(), *issue)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s#%d: %w", ref, number, err)
	}

	return &domain.IssueAnalysis{
		Repository: ref.FullName(),
		Issue:      *issue,
		Analysis:   text,
		AnalyzedAt: a.now().UTC(),
	}, nil
}

// ageStats summarizes how many days each item has been open at now.
// Items without a creation time are ignored.
func ageStats(now time.Time, created []time.Time) domain.AgeStats {
	ages := make(stats.Float64Data, 0, len(created))
	for _, c := range created {
		if c.IsZero() {
			continue
		}
		ages = append(ages, now.Sub(c).Hours()/24)
	}
	if len(ages) == 0 {
		return domain.AgeStats{}
	}

	median, _ := ages.Median()
	mean, _ := ages.Mean()
	oldest, _ := ages.Max()
	return domain.AgeStats{
		Count:      len(ages),
		MedianDays: round1(median),
		MeanDays:   round1(mean),
		OldestDays: round1(oldest),
	}
}

func round1(v float64) float64 {
	r, _ := stats.Round(v, 1)
	return r
}
