package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const (
	bodyLimit     = 200
	noDescription = "No description"
	dateLayout    = "2006-01-02"
)

func issuesPrompt(issues []domain.IssueSummary) string {
	var b strings.Builder
	b.WriteString("As an engineering assistant, analyze these GitHub issues and provide insights:\n\n")

	if len(issues) == 0 {
		b.WriteString("There are no issues to analyze.\n")
	}
	for i, issue := range issues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. Issue #%d: %s\n", i+1, issue.Number, issue.Title)
		fmt.Fprintf(&b, "   State: %s\n", issue.State)
		fmt.Fprintf(&b, "   Created: %s\n", formatDate(issue.CreatedAt))
		fmt.Fprintf(&b, "   Body: %s\n", excerpt(issue.Body))
	}

	b.WriteString(`
Please provide:
1. A summary of the main themes or patterns
2. Priority suggestions based on issue content
3. Any potential correlations or dependencies between issues
4. Recommendations for the development team

Keep your analysis concise and actionable.`)
	return b.String()
}

func pullRequestsPrompt(prs []domain.PullRequestSummary) string {
	var b strings.Builder
	b.WriteString("As an engineering assistant, analyze these GitHub pull requests and provide insights:\n\n")

	if len(prs) == 0 {
		b.WriteString("There are no pull requests to analyze.\n")
	}
	for i, pr := range prs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. PR #%d: %s\n", i+1, pr.Number, pr.Title)
		fmt.Fprintf(&b, "   State: %s\n", pr.State)
		fmt.Fprintf(&b, "   Created: %s\n", formatDate(pr.CreatedAt))
		fmt.Fprintf(&b, "   Author: %s\n", pr.Author.Login)
		fmt.Fprintf(&b, "   Body: %s\n", excerpt(pr.Body))
	}

	b.WriteString(`
Please provide:
1. Overview of the types of changes being proposed
2. Potential risks or areas needing attention
3. Review priority recommendations
4. Any patterns in the contribution workflow

Keep your analysis concise and actionable.`)
	return b.String()
}

func issuePrompt(repoName string, issue domain.IssueSummary) string {
	body := noDescription + " provided"
	if issue.Body != nil && strings.TrimSpace(*issue.Body) != "" {
		body = *issue.Body
	}
	labels := "none"
	if len(issue.Labels) > 0 {
		labels = strings.Join(issue.Labels, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "As an engineering assistant, analyze this GitHub issue from %s:\n\n", repoName)
	fmt.Fprintf(&b, "Title: %s\n", issue.Title)
	fmt.Fprintf(&b, "Labels: %s\n", labels)
	fmt.Fprintf(&b, "Opened by %s on %s\n\n", issue.Author.Login, formatDate(issue.CreatedAt))
	fmt.Fprintf(&b, "Description:\n%s\n", body)
	b.WriteString(`
Please provide:
1. A one-paragraph summary of the problem or request
2. A suggested priority and the reasoning behind it
3. Concrete next steps for whoever picks it up

Keep your analysis concise and actionable.`)
	return b.String()
}

func overallPrompt(data RepositoryData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provide overall insights for the repository %q:\n", data.RepoName)
	fmt.Fprintf(&b, "- Total open issues: %d\n", len(data.Issues))
	fmt.Fprintf(&b, "- Total open pull requests: %d\n", len(data.PullRequests))
	if data.IssueAge.Count > 0 {
		fmt.Fprintf(&b, "- Median open issue age: %.1f days\n", data.IssueAge.MedianDays)
	}
	if data.PullRequestAge.Count > 0 {
		fmt.Fprintf(&b, "- Median open pull request age: %.1f days\n", data.PullRequestAge.MedianDays)
	}
	b.WriteString("\nBased on this data, what is the current health and activity level of this repository? Provide 2-3 key recommendations.")
	return b.String()
}

// excerpt cuts a body to bodyLimit runes.
func excerpt(body *string) string {
	if body == nil || strings.TrimSpace(*body) == "" {
		return noDescription
	}
	runes := []rune(*body)
	if len(runes) <= bodyLimit {
		return *body
	}
	return string(runes[:bodyLimit]) + "..."
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(dateLayout)
}
