// Package googleauth provides tools for completing the Google OAuth flow
// from within a conversation.
//
// When the server starts without a stored Gmail token, the email tools fail
// until the user authorizes access. These tools close that gap without
// leaving the MCP session:
//
//  1. Call google_get_auth_url to get the authorization URL
//  2. Visit the URL and authorize access
//  3. Call google_save_auth_code with the resulting code
//
// Once the token is saved it is refreshed automatically; the email tools
// work from the next call on.
package googleauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inboxagent/inboxagent/internal/google"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/tools"
)

// Exchanger exchanges an authorization code for a stored token. The google
// package functions satisfy it; tests substitute their own.
type Exchanger func(ctx context.Context, account, authCode string) error

// Toolset builds the OAuth tools.
type Toolset struct {
	exchange     Exchanger
	onAuthorized func(ctx context.Context, account string)
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// Option configures a Toolset.
type Option func(*Toolset)

// WithExchanger replaces the default token exchange.
func WithExchanger(e Exchanger) Option {
	return func(ts *Toolset) { ts.exchange = e }
}

// WithOnAuthorized sets a callback invoked after a token is saved. The
// server uses it to warm the Gmail client for the account.
func WithOnAuthorized(fn func(ctx context.Context, account string)) Option {
	return func(ts *Toolset) { ts.onAuthorized = fn }
}

// WithMetrics enables OAuth metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(ts *Toolset) { ts.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ts *Toolset) { ts.logger = logger }
}

// New creates a Toolset.
func New(opts ...Option) *Toolset {
	ts := &Toolset{
		exchange: google.SaveTokenForAccount,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Tools returns the OAuth tools.
func (ts *Toolset) Tools() []tools.Tool {
	return []tools.Tool{
		{
			Name:        "google_get_auth_url",
			Description: "Get the Google OAuth authorization URL to grant Gmail access for an account",
			Schema:      getAuthURLSchema,
			Handler:     ts.getAuthURL,
		},
		{
			Name:        "google_save_auth_code",
			Description: "Save the OAuth authorization code to complete Gmail authentication for an account",
			Schema:      saveAuthCodeSchema,
			Handler:     ts.saveAuthCode,
		},
	}
}

func (ts *Toolset) getAuthURL(ctx context.Context, args map[string]any) (string, error) {
	account := accountArg(args)

	return fmt.Sprintf(`To authorize Gmail access for account %q:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant access
3. Copy the authorization code
4. Call google_save_auth_code with the code to complete authentication`,
		account, google.GetAuthURL()), nil
}

func (ts *Toolset) saveAuthCode(ctx context.Context, args map[string]any) (string, error) {
	account := accountArg(args)
	authCode, _ := args["auth_code"].(string)

	if err := ts.exchange(ctx, account, authCode); err != nil {
		if ts.metrics != nil {
			ts.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		}
		return "", fmt.Errorf("save authorization code for account %s: %w", account, err)
	}
	if ts.metrics != nil {
		ts.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	}
	ts.logger.Info("oauth token saved", "account", account)

	if ts.onAuthorized != nil {
		ts.onAuthorized(ctx, account)
	}

	return fmt.Sprintf("Authorization successful for account %q. Gmail tools are ready to use.", account), nil
}

func accountArg(args map[string]any) string {
	if account, ok := args["account"].(string); ok && account != "" {
		return account
	}
	return "default"
}
