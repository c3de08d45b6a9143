package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/naka-gawa/repo-insights/internal/dashboard"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify a GitHub token and store it for later commands",
	Long: `Checks the token against the API server and stores it in the user config
directory. The token is taken from --token, GITHUB_TOKEN or standard input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dashboard.DefaultCredentialStore()
		if err != nil {
			return err
		}

		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		if token == "" {
			token, err = promptToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}
		if token == "" {
			return dashboard.ErrNoCredential
		}

		server, _ := cmd.Flags().GetString("server")
		client := dashboard.NewClient(server, token, dashboard.WithLogger(cliLogger(cmd)))
		user, err := client.Identity(cmd.Context())
		if err != nil {
			return err
		}

		if err := store.Save(token, user.Login); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. Token saved to %s\n", user.Login, store.Path())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored GitHub token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dashboard.DefaultCredentialStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the GitHub account behind the current token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newDashboardClient(cmd)
		if err != nil {
			return err
		}
		user, err := client.Identity(cmd.Context())
		if err != nil {
			return err
		}
		return dashboard.RenderUser(cmd.OutOrStdout(), user)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

// promptToken reads a token from in. A terminal does not echo what is typed.
func promptToken(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "GitHub token: ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", dashboard.ErrNoCredential
	}
	return strings.TrimSpace(line), nil
}
