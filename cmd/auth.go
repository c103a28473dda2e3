package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxagent/inboxagent/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access for an account",
		Long: `Authorize inboxagent to access a Gmail account.

Opens an OAuth consent URL. Visit it in a browser, grant access, and paste
the authorization code back here. The token is stored in the user cache
directory and refreshed automatically afterwards.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment
(Desktop app credentials from Google Cloud).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, account)
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Account name to store the token under")

	return cmd
}

func runAuth(cmd *cobra.Command, account string) error {
	if os.Getenv("GOOGLE_CLIENT_ID") == "" || os.Getenv("GOOGLE_CLIENT_SECRET") == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	if google.HasTokenForAccount(account) {
		fmt.Printf("A token for account %q already exists and will be replaced.\n", account)
	}

	fmt.Println("Visit the following URL and authorize access:")
	fmt.Println()
	fmt.Println("  " + google.GetAuthURL())
	fmt.Println()
	fmt.Print("Paste the authorization code: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("no authorization code provided")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	if err := google.SaveTokenForAccount(cmd.Context(), account, code); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Printf("Token saved for account %q.\n", account)
	return nil
}
