package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inboxagent/inboxagent/internal/agent"
	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/llm"
	"github.com/inboxagent/inboxagent/internal/logging"
	"github.com/inboxagent/inboxagent/internal/tools"
	"github.com/inboxagent/inboxagent/internal/tools/mail"
)

func newChatCmd() *cobra.Command {
	var (
		account    string
		model      string
		maxSteps   int
		maxResults int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive email agent session",
		Long: `Start an interactive session with the email agent.

The agent answers natural language requests by calling Gmail tools: searching
the inbox, reading messages, generating replies, sending them or saving them
as drafts. Requires a Gmail token (run 'inboxagent auth' first) and the
OPENAI_API_KEY environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(account, model, maxSteps, maxResults, logLevel)
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Gmail account to operate on")
	cmd.Flags().StringVar(&model, "model", "", "OpenAI model to use. Can also use OPENAI_MODEL env var.")
	cmd.Flags().IntVar(&maxSteps, "max-steps", agent.DefaultMaxRounds, "Maximum model rounds per request")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Default search result count when a tool call leaves max_results unset")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	return cmd
}

func runChat(account, model string, maxSteps, maxResults int, logLevel string) error {
	logger := logging.Setup(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}

	if !gmail.HasTokenForAccount(account) {
		return fmt.Errorf("no Gmail token for account %q: run 'inboxagent auth --account %s' first", account, account)
	}

	mailbox, err := gmail.NewClientForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}

	llmClient, err := llm.NewClient(model, llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()
	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	cache := agent.NewCache()
	registry := tools.NewRegistry()
	toolset := mail.New(mailbox, llmClient, cache).
		WithLogger(logger).
		WithMetrics(provider.Metrics()).
		WithMaxResults(maxResults)
	if err := tools.InstrumentAllForAccount(registry, account, provider.Metrics(), auditLogger, toolset.Tools()); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	ag := agent.New(llmClient, registry, cache,
		agent.WithMaxRounds(maxSteps),
		agent.WithLogger(logger),
		agent.WithMetrics(provider.Metrics()),
	)

	fmt.Printf("inboxagent %s (model: %s, account: %s)\n", version, llmClient.Model(), account)
	fmt.Println("Ask me about your email. Type 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			fmt.Println("Bye.")
			return nil
		}

		reply, ok := runTurn(ctx, ag, scanner, line)
		if !ok {
			return nil
		}
		if reply == "" {
			continue
		}

		fmt.Printf("\n%s\n", reply)
	}
}

// runTurn executes one request, offering a retry when the backend was
// rate limited or unreachable. A retry re-runs the whole turn. Returns
// ok=false when the session should end.
func runTurn(ctx context.Context, ag *agent.Agent, scanner *bufio.Scanner, line string) (string, bool) {
	for {
		reply, err := ag.RunTurn(ctx, line)
		if err == nil {
			return reply, true
		}
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted.")
			return "", false
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var backendErr *llm.Error
		if errors.As(err, &backendErr) &&
			(backendErr.Kind == llm.KindRateLimited || backendErr.Kind == llm.KindConnection) {
			if askYesNo(scanner, "Retry? (y/n): ") {
				continue
			}
		}
		return "", askYesNo(scanner, "Continue? (y/n): ")
	}
}

// isExitCommand reports whether the input ends the session.
func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// askYesNo prompts until the user answers y or n. EOF counts as no.
func askYesNo(scanner *bufio.Scanner, prompt string) bool {
	for {
		fmt.Print(prompt)
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Println("Please enter 'y' or 'n'.")
	}
}
