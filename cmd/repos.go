package cmd

import (
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/dashboard"
	"github.com/naka-gawa/repo-insights/internal/domain"
)

var reposCmd = &cobra.Command{
	Use:   "repos [owner/repo]",
	Short: "List your repositories, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newDashboardClient(cmd)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			repos, err := client.Repositories(cmd.Context())
			if err != nil {
				return err
			}
			return dashboard.RenderRepositories(cmd.OutOrStdout(), repos)
		}

		ref, err := domain.ParseRepositoryRef(args[0])
		if err != nil {
			return err
		}
		repo, err := client.Repository(cmd.Context(), ref)
		if err != nil {
			return err
		}
		return dashboard.RenderRepositories(cmd.OutOrStdout(), []domain.RepositorySummary{*repo})
	},
}

var issuesCmd = &cobra.Command{
	Use:   "issues <owner/repo | url>",
	Short: "List issues of a repository, without pull requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ref, state, err := listingArgs(cmd, args)
		if err != nil {
			return err
		}
		issues, err := client.Issues(cmd.Context(), ref, state)
		if err != nil {
			return err
		}
		return dashboard.RenderIssues(cmd.OutOrStdout(), issues)
	},
}

var pullsCmd = &cobra.Command{
	Use:   "pulls <owner/repo | url>",
	Short: "List pull requests of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ref, state, err := listingArgs(cmd, args)
		if err != nil {
			return err
		}
		prs, err := client.PullRequests(cmd.Context(), ref, state)
		if err != nil {
			return err
		}
		return dashboard.RenderPullRequests(cmd.OutOrStdout(), prs)
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity <owner/repo | url>",
	Short: "Show issue and pull request totals of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := domain.ParseRepositoryRef(args[0])
		if err != nil {
			return err
		}
		client, err := newDashboardClient(cmd)
		if err != nil {
			return err
		}
		activity, err := client.Activity(cmd.Context(), ref)
		if err != nil {
			return err
		}
		return dashboard.RenderActivity(cmd.OutOrStdout(), activity)
	},
}

func init() {
	rootCmd.AddCommand(reposCmd, issuesCmd, pullsCmd, activityCmd)
	issuesCmd.Flags().StringP("state", "s", "open", "Issue state: open, closed or all")
	pullsCmd.Flags().StringP("state", "s", "open", "Pull request state: open, closed or all")
}

func listingArgs(cmd *cobra.Command, args []string) (*dashboard.Client, domain.RepositoryRef, domain.IssueState, error) {
	ref, err := domain.ParseRepositoryRef(args[0])
	if err != nil {
		return nil, domain.RepositoryRef{}, "", err
	}
	stateFlag, _ := cmd.Flags().GetString("state")
	state, err := domain.ParseIssueState(stateFlag)
	if err != nil {
		return nil, domain.RepositoryRef{}, "", err
	}
	client, err := newDashboardClient(cmd)
	if err != nil {
		return nil, domain.RepositoryRef{}, "", err
	}
	return client, ref, state, nil
}
