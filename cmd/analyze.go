package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/dashboard"
	"github.com/naka-gawa/repo-insights/internal/domain"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/repo | url>",
	Short: "Ask Gemini for insights on the open issues and pull requests of a repository, or on one issue",
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

		if number, _ := cmd.Flags().GetInt("issue"); number != 0 {
			if number < 0 {
				return fmt.Errorf("%w: issue number must be positive, got %d", domain.ErrInvalidInput, number)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing %s#%d...\n", ref, number)
			analysis, err := client.AnalyzeIssue(cmd.Context(), ref, number)
			if err != nil {
				return err
			}
			return dashboard.RenderIssueAnalysis(cmd.OutOrStdout(), analysis)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing %s...\n", ref)
		analysis, err := client.Analyze(cmd.Context(), ref)
		if err != nil {
			return err
		}
		return dashboard.RenderAnalysis(cmd.OutOrStdout(), analysis)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntP("issue", "i", 0, "Analyze a single issue instead of the whole repository")
}
