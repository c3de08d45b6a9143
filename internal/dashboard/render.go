package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const titleWidth = 60

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func RenderUser(w io.Writer, user *domain.User) error {
	name := user.Name
	if name == "" {
		name = "-"
	}
	_, err := fmt.Fprintf(w, "Logged in as %s (%s)\nPublic repositories: %d\n%s\n",
		user.Login, name, user.PublicRepos, user.URL)
	return err
}

func RenderRepositories(w io.Writer, repos []domain.RepositorySummary) error {
	if len(repos) == 0 {
		_, err := fmt.Fprintln(w, "No repositories found.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "REPOSITORY\tSTARS\tOPEN ISSUES\tDESCRIPTION")
	for _, repo := range repos {
		description := "-"
		if repo.Description != nil && *repo.Description != "" {
			description = truncate(*repo.Description, titleWidth)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", repo.FullName, repo.StarCount, repo.OpenIssueCount, description)
	}
	return tw.Flush()
}

func RenderIssues(w io.Writer, issues []domain.IssueSummary) error {
	if len(issues) == 0 {
		_, err := fmt.Fprintln(w, "No issues found.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tTITLE\tAUTHOR\tSTATE\tCREATED\tLABELS")
	for _, issue := range issues {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", issue.Number, truncate(issue.Title, titleWidth),
			issue.Author.Login, issue.State, issue.CreatedAt.Format("2006-01-02"), labelList(issue.Labels))
	}
	return tw.Flush()
}

func RenderPullRequests(w io.Writer, prs []domain.PullRequestSummary) error {
	if len(prs) == 0 {
		_, err := fmt.Fprintln(w, "No pull requests found.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tTITLE\tAUTHOR\tSTATE\tCREATED")
	for _, pr := range prs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", pr.Number, truncate(pr.Title, titleWidth),
			pr.Author.Login, pr.State, pr.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func RenderActivity(w io.Writer, activity *domain.RepositoryActivity) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Repository:\t%s\n", activity.Repository)
	fmt.Fprintf(tw, "Open issues:\t%d\n", activity.OpenIssues)
	fmt.Fprintf(tw, "Closed issues:\t%d\n", activity.ClosedIssues)
	fmt.Fprintf(tw, "Open pull requests:\t%d\n", activity.OpenPullRequests)
	fmt.Fprintf(tw, "Merged pull requests:\t%d\n", activity.MergedPullRequests)
	return tw.Flush()
}

func RenderAnalysis(w io.Writer, analysis *domain.Analysis) error {
	meta := analysis.Metadata
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis of %s (%s)\n", analysis.Repository, meta.AnalyzedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Open issues: %d, median age %.1f days\n", meta.IssuesCount, meta.IssueAge.MedianDays)
	fmt.Fprintf(&b, "Open pull requests: %d, median age %.1f days\n", meta.PullRequestsCount, meta.PullRequestAge.MedianDays)
	section(&b, "Issues", analysis.Result.IssuesAnalysis)
	section(&b, "Pull requests", analysis.Result.PullRequestsAnalysis)
	section(&b, "Overall insights", analysis.Result.OverallInsights)
	_, err := io.WriteString(w, b.String())
	return err
}

func RenderIssueAnalysis(w io.Writer, analysis *domain.IssueAnalysis) error {
	issue := analysis.Issue
	var b strings.Builder
	fmt.Fprintf(&b, "%s#%d: %s\n", analysis.Repository, issue.Number, issue.Title)
	fmt.Fprintf(&b, "Labels: %s\n", labelList(issue.Labels))
	if issue.URL != "" {
		fmt.Fprintf(&b, "%s\n", issue.URL)
	}
	section(&b, "Analysis", analysis.Analysis)
	_, err := io.WriteString(w, b.String())
	return err
}

func labelList(labels []string) string {
	if len(labels) == 0 {
		return "-"
	}
	return strings.Join(labels, ",")
}

func section(b *strings.Builder, title, text string) {
	fmt.Fprintf(b, "\n== %s ==\n%s\n", title, strings.TrimSpace(text))
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
