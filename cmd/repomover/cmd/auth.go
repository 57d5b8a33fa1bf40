package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/spf13/cobra"
)

var (
	loginToken  string
	loginFromGH bool
	loginHost   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Validate and store a GitHub token",
	Long: `Validates a personal access token against GitHub and stores it,
encrypted, for later commands. The token needs the repo scope, plus
admin:org for organization repositories.

Pass the token with --token, use --token - to read it from stdin, or
reuse the token of the gh CLI with --from-gh.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, err := resolveLoginToken(cmd.InOrStdin())
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		identity, err := a.workflow.Authenticate(cmd.Context(), token)
		if err != nil {
			return err
		}

		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), identity)
		}
		st := a.workflow.State()
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. %d repositories visible.\n", identity.Label(), len(st.Repositories))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored GitHub token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.workflow.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		id := a.identity.Current()
		if id == nil {
			return errors.New("not logged in")
		}
		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), id)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.Label())
		return nil
	},
}

// resolveLoginToken picks the token source from the login flags. Exactly one
// of --token and --from-gh must be given.
func resolveLoginToken(stdin io.Reader) (string, error) {
	switch {
	case loginToken != "" && loginFromGH:
		return "", errors.New("use either --token or --from-gh, not both")
	case loginFromGH:
		token, _ := auth.TokenForHost(loginHost)
		if token == "" {
			return "", fmt.Errorf("no gh CLI token found for %s: run 'gh auth login' first", loginHost)
		}
		return token, nil
	case loginToken == "-":
		return readToken(stdin)
	case loginToken != "":
		return loginToken, nil
	default:
		return "", errors.New("a token is required: pass --token or --from-gh")
	}
}

// readToken reads the first non-blank line from r.
func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return "", errors.New("no token on stdin")
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "personal access token, or - to read from stdin")
	loginCmd.Flags().BoolVar(&loginFromGH, "from-gh", false, "reuse the token stored by the gh CLI")
	loginCmd.Flags().StringVar(&loginHost, "host", "github.com", "GitHub host for --from-gh")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
