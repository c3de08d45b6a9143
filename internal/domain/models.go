// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Actor is the account that opened an issue or pull request.
type Actor struct {
	Login string `json:"login"`
}

// IssueSummary is the narrow projection of a GitHub issue.
// Pull requests returned by the issues endpoint never become an IssueSummary.
type IssueSummary struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"html_url"`
	Author    Actor     `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Body      *string   `json:"body"`
	Labels    []string  `json:"labels,omitempty"`
}

// PullRequestSummary has the same shape as IssueSummary but comes from the pulls endpoint.
type PullRequestSummary struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"html_url"`
	Author    Actor     `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Body      *string   `json:"body"`
	Labels    []string  `json:"labels,omitempty"`
}

// RepositorySummary is a read-only snapshot of a repository.
type RepositorySummary struct {
	Name           string  `json:"name"`
	FullName       string  `json:"full_name"`
	Description    *string `json:"description"`
	URL            string  `json:"html_url"`
	StarCount      int     `json:"stargazers_count"`
	OpenIssueCount int     `json:"open_issues_count"`
}

// User is the identity behind a bearer credential.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	URL         string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
}

// RepositoryActivity holds totals that keep issues and pull requests apart,
// unlike open_issues_count which counts both.
type RepositoryActivity struct {
	Repository         string `json:"repository"`
	OpenIssues         int    `json:"open_issues"`
	ClosedIssues       int    `json:"closed_issues"`
	OpenPullRequests   int    `json:"open_pull_requests"`
	MergedPullRequests int    `json:"merged_pull_requests"`
}

// AgeStats describes how long a set of items has been open, in days.
type AgeStats struct {
	Count      int     `json:"count"`
	MedianDays float64 `json:"median_days"`
	MeanDays   float64 `json:"mean_days"`
	OldestDays float64 `json:"oldest_days"`
}

// AnalysisResult is the three free-text answers of the language model.
type AnalysisResult struct {
	IssuesAnalysis       string `json:"issuesAnalysis"`
	PullRequestsAnalysis string `json:"pullRequestsAnalysis"`
	OverallInsights      string `json:"overallInsights"`
}

// AnalysisMetadata describes the data an analysis was computed from.
type AnalysisMetadata struct {
	IssuesCount       int       `json:"issuesCount"`
	PullRequestsCount int       `json:"pullRequestsCount"`
	AnalyzedAt        time.Time `json:"analyzedAt"`
	IssueAge          AgeStats  `json:"issueAge"`
	PullRequestAge    AgeStats  `json:"pullRequestAge"`
}

// Analysis is the full response of a repository analysis.
type Analysis struct {
	Repository string           `json:"repository"`
	Result     AnalysisResult   `json:"analysis"`
	Metadata   AnalysisMetadata `json:"metadata"`
}

// IssueAnalysis is the language model's reading of a single issue.
type IssueAnalysis struct {
	Repository string       `json:"repository"`
	Issue      IssueSummary `json:"issue"`
	Analysis   string       `json:"analysis"`
	AnalyzedAt time.Time    `json:"analyzedAt"`
}
