// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/repo-insights/internal/dashboard"
)

var rootCmd = &cobra.Command{
	Use:   "repo-insights",
	Short: "Browse GitHub repositories and get AI insights on their issues and pull requests.",
	Long: `repo-insights runs a small API server in front of the GitHub API and Gemini,
and a command-line dashboard that talks to it. Start the server with
"repo-insights serve", log in with a personal access token, then list
repositories, issues and pull requests or ask for an analysis.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd, err)
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("server", dashboard.DefaultServerURL, "URL of the repo-insights API server")
	rootCmd.PersistentFlags().String("token", "", "GitHub personal access token (overrides GITHUB_TOKEN and the stored login)")
}

// printError prints the short message of dashboard errors and the full chain with --verbose.
func printError(cmd *cobra.Command, err error) {
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	if verbose || !dashboard.IsFriendly(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	if dashboard.IsFriendly(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), dashboard.FriendlyMessage(err))
	}
}

func cliLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// resolveToken picks --token, then GITHUB_TOKEN, then the stored login.
func resolveToken(cmd *cobra.Command, store *dashboard.CredentialStore) (string, error) {
	if token, _ := cmd.Flags().GetString("token"); token != "" {
		return token, nil
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	token, _, err := store.Load()
	return token, err
}

func newDashboardClient(cmd *cobra.Command) (*dashboard.Client, error) {
	store, err := dashboard.DefaultCredentialStore()
	if err != nil {
		return nil, err
	}
	token, err := resolveToken(cmd, store)
	if err != nil {
		return nil, err
	}
	server, _ := cmd.Flags().GetString("server")
	return dashboard.NewClient(server, token, dashboard.WithLogger(cliLogger(cmd))), nil
}
