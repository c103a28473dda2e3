package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/logging"
	"github.com/inboxagent/inboxagent/internal/server"
	"github.com/inboxagent/inboxagent/internal/tools"
	"github.com/inboxagent/inboxagent/internal/tools/googleauth"
	"github.com/inboxagent/inboxagent/internal/tools/mail"
)

// MetricsConfig holds the metrics server settings for serve mode.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

func newServeCmd() *cobra.Command {
	var (
		account        string
		model          string
		metricsEnabled bool
		metricsAddr    string
		logLevel       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as an MCP server over stdio",
		Long: `Run inboxagent as an MCP (Model Context Protocol) server.

The server speaks the MCP protocol over stdio and exposes the email tools
to AI assistants. Emails fetched by one tool call stay addressable by later
calls for the lifetime of the session.

Requires the OPENAI_API_KEY environment variable. Gmail access can be
authorized ahead of time with 'inboxagent auth' or in-session through the
google_get_auth_url and google_save_auth_code tools.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(account, model, MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}, logLevel)
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Gmail account to operate on")
	cmd.Flags().StringVar(&model, "model", "", "OpenAI model to use. Can also use OPENAI_MODEL env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func runServe(account, model string, metricsConfig MetricsConfig, logLevel string) error {
	// stdout carries the MCP protocol; all logging goes to stderr.
	logger := logging.Setup(logLevel)

	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	sc, err := server.NewServerContext(shutdownCtx, model)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	// Readiness flips on once the tool registry is wired below.
	health := server.NewHealthChecker(sc)

	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
			Health:                  health,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
	sc.SetInstrumentation(provider.Metrics(), auditLogger)

	// The Gmail client resolves lazily so the server can start before a
	// token exists; the OAuth tools complete authentication in-session.
	mailbox := &lazyMailbox{sc: sc, account: account}

	registry := tools.NewRegistry()
	toolset := mail.New(mailbox, sc.LLMClient(), sc.SessionCache()).
		WithLogger(logger).
		WithMetrics(sc.Metrics())
	if err := tools.InstrumentAllForAccount(registry, account, sc.Metrics(), sc.AuditLogger(), toolset.Tools()); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	authToolset := googleauth.New(
		googleauth.WithMetrics(sc.Metrics()),
		googleauth.WithLogger(logger),
		googleauth.WithOnAuthorized(func(ctx context.Context, acct string) {
			client, err := gmail.NewClientForAccount(ctx, acct)
			if err != nil {
				logger.Warn("failed to create Gmail client after authorization",
					"account", acct, "error", err)
				return
			}
			sc.SetGmailClientForAccount(acct, client)
		}),
	)
	if err := tools.InstrumentAllForAccount(registry, account, sc.Metrics(), sc.AuditLogger(), authToolset.Tools()); err != nil {
		return fmt.Errorf("failed to register auth tools: %w", err)
	}

	mcpSrv := mcpserver.NewMCPServer("inboxagent", version,
		mcpserver.WithToolCapabilities(true),
	)
	tools.AddToMCPServer(mcpSrv, registry)

	logger.Info("starting MCP server",
		"transport", "stdio",
		"tools", registry.Len(),
		"account", account,
	)

	health.SetReady(true)
	serveErr := runStdioServer(shutdownCtx, mcpSrv)
	health.SetReady(false)

	if metricsServer != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	return serveErr
}

// runStdioServer serves MCP over stdio until EOF or shutdown.
func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("stdio server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
