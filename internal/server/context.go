package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inboxagent/inboxagent/internal/agent"
	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/llm"
)

// DefaultSessionCacheSize bounds the session-scoped reply-target cache.
const DefaultSessionCacheSize = 32

// ServerContext holds the shared state for a serve-mode process: Gmail
// clients per account, the model client, the session cache, and
// instrumentation.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	gmailClients map[string]*gmail.Client // account name to client
	llmClient    *llm.Client
	sessionCache *agent.Cache
	metrics      *instrumentation.Metrics
	auditLogger  *instrumentation.AuditLogger
	logger       *slog.Logger
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a server context. The model client is created
// eagerly because serving without a model is pointless; Gmail clients are
// created lazily per account so the server can start before every account
// has a token.
func NewServerContext(ctx context.Context, model string) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	llmClient, err := llm.NewClient(model)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create model client: %w", err)
	}

	sc := &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		gmailClients: make(map[string]*gmail.Client),
		llmClient:    llmClient,
		sessionCache: agent.NewBoundedCache(DefaultSessionCacheSize),
		logger:       slog.Default(),
	}

	// Warm up the default account when its token already exists. Failure
	// here is not fatal; the first tool call retries.
	if gmail.HasToken() {
		client, err := gmail.NewClient(shutdownCtx)
		if err != nil {
			sc.logger.Warn("failed to create Gmail client for default account", "error", err)
		} else {
			sc.gmailClients["default"] = client
		}
	}

	return sc, nil
}

// Context returns the server's lifecycle context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// GmailClientForAccount returns the Gmail client for a specific account,
// creating and caching it on first use. Returns nil if the account has no
// stored token.
func (sc *ServerContext) GmailClientForAccount(account string) *gmail.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.gmailClients[account]; ok {
		return client
	}

	if !gmail.HasTokenForAccount(account) {
		return nil
	}

	// Client creation refreshes the stored token, so its outcome doubles
	// as the token refresh signal.
	client, err := gmail.NewClientForAccount(sc.ctx, account)
	if err != nil {
		if sc.metrics != nil {
			sc.metrics.RecordOAuthTokenRefresh(sc.ctx, instrumentation.OAuthResultFailure)
		}
		sc.logger.Warn("failed to create Gmail client", "account", account, "error", err)
		return nil
	}

	if sc.metrics != nil {
		sc.metrics.RecordOAuthTokenRefresh(sc.ctx, instrumentation.OAuthResultSuccess)
	}
	sc.gmailClients[account] = client
	return client
}

// GmailClient returns the Gmail client for the default account.
func (sc *ServerContext) GmailClient() *gmail.Client {
	return sc.GmailClientForAccount("default")
}

// SetGmailClientForAccount sets the Gmail client for a specific account.
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClients[account] = client
}

// LLMClient returns the model client.
func (sc *ServerContext) LLMClient() *llm.Client {
	return sc.llmClient
}

// SessionCache returns the bounded reply-target cache shared by the
// server's tool handlers.
func (sc *ServerContext) SessionCache() *agent.Cache {
	return sc.sessionCache
}

// SetInstrumentation wires metrics and audit logging into the context.
func (sc *ServerContext) SetInstrumentation(m *instrumentation.Metrics, al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
	sc.auditLogger = al
}

// Metrics returns the metrics recorder, or nil when not configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the lifecycle context and marks the server as down.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
