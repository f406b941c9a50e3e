package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"claudebridge/internal/credstore"
	"claudebridge/internal/oauth"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the status command, which inspects the stored
// credential without triggering a refresh.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the stored Claude Code credential",
		Long: `status reads the credential from its store and reports where it lives,
whether it is still valid, when it expires and which scopes it carries.
No refresh is performed. Exit code 2 means no usable credential exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			doc, state, err := a.manager.Peek(cmd.Context())
			if err != nil {
				if errors.Is(err, credstore.ErrNotFound) {
					return fmt.Errorf("no credential found in %s: %w", a.store.Source(), oauth.ErrUnavailable)
				}
				return fmt.Errorf("reading credential from %s: %w", a.store.Source(), err)
			}

			printStatus(cmd, a.store.Source(), doc.Credentials, state)

			if state == oauth.StateUnrefreshable {
				return fmt.Errorf("credential is expired and has no refresh token: %w", oauth.ErrUnavailable)
			}
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, source string, creds credstore.Credentials, state oauth.State) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)

	t.AppendRow(table.Row{"Source", source})
	t.AppendRow(table.Row{"State", state.String()})
	t.AppendRow(table.Row{"Expires", formatExpiry(creds.ExpiresAt)})
	if len(creds.Scopes) > 0 {
		t.AppendRow(table.Row{"Scopes", strings.Join(creds.Scopes, "\n")})
	}
	if creds.SubscriptionType != "" {
		t.AppendRow(table.Row{"Subscription", creds.SubscriptionType})
	}
	t.AppendRow(table.Row{"Refresh token", presence(creds.RefreshToken)})

	t.Render()
}

// formatExpiry renders an epoch-milliseconds expiry with its remaining
// lifetime relative to now.
func formatExpiry(expiresAt int64) string {
	if expiresAt == 0 {
		return "unknown"
	}

	expiry := time.UnixMilli(expiresAt)
	remaining := time.Until(expiry).Round(time.Second)
	if remaining <= 0 {
		return fmt.Sprintf("%s (expired)", expiry.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s (in %s)", expiry.Format(time.RFC3339), remaining)
}

func presence(token string) string {
	if token == "" {
		return "absent"
	}
	return "present"
}
