package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inboxagent/inboxagent/internal/chat"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/llm"
	"github.com/inboxagent/inboxagent/internal/logging"
	"github.com/inboxagent/inboxagent/internal/tools"
)

const (
	// DefaultMaxRounds bounds the number of model calls per turn.
	DefaultMaxRounds = 20

	// StepLimitMessage is returned to the user when a turn hits the round
	// limit without the model producing a final answer.
	StepLimitMessage = "I reached the step limit. Please try a shorter flow or rephrase."

	missingTargetMessage = "Error: reply_to_message_id is required. Open the email first by " +
		"calling get_email(message_id) or parse_email(message_id), then try again."
)

// Completer is the model surface the loop drives. *llm.Client satisfies it;
// tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, messages []chat.Message, tools []llm.ToolDefinition) (chat.Message, error)
}

// Agent runs conversational turns against a tool registry.
// All methods are safe for concurrent use; turns are serialized.
type Agent struct {
	mu           sync.Mutex
	completer    Completer
	registry     *tools.Registry
	cache        *Cache
	defs         []llm.ToolDefinition
	conversation []chat.Message
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	maxRounds    int
	windowBudget int
	perTurnCache bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxRounds overrides the per-turn round limit.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithWindowBudget overrides the conversation token budget.
func WithWindowBudget(tokens int) Option {
	return func(a *Agent) {
		if tokens > 0 {
			a.windowBudget = tokens
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithMetrics enables metrics recording.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithSessionCache keeps the reply-target cache across turns instead of
// clearing it when a turn starts. Pair it with a bounded cache.
func WithSessionCache(c *Cache) Option {
	return func(a *Agent) {
		a.cache = c
		a.perTurnCache = false
	}
}

// New creates an Agent. The registry's tools are offered to the model on
// every call; the cache records fetched emails for reply-target injection.
func New(completer Completer, registry *tools.Registry, cache *Cache, opts ...Option) *Agent {
	if cache == nil {
		cache = NewCache()
	}

	a := &Agent{
		completer:    completer,
		registry:     registry,
		cache:        cache,
		conversation: []chat.Message{chat.System(SystemPrompt)},
		logger:       slog.Default(),
		maxRounds:    DefaultMaxRounds,
		windowBudget: DefaultWindowBudget,
		perTurnCache: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, t := range registry.List() {
		a.defs = append(a.defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return a
}

// Cache returns the reply-target cache.
func (a *Agent) Cache() *Cache { return a.cache }

// History returns a copy of the conversation.
func (a *Agent) History() []chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]chat.Message, len(a.conversation))
	copy(out, a.conversation)
	return out
}

// Reset clears the conversation back to just the system prompt and empties
// the cache.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conversation = []chat.Message{chat.System(SystemPrompt)}
	a.cache.Clear()
}

// RunTurn appends the user's message and drives the loop until the model
// answers without tool calls, the round limit is hit, or ctx is canceled.
//
// Tool failures of any kind are folded back into the conversation as tool
// results so the model can react; only model backend failures and context
// cancellation return an error. Hitting the round limit is not an error:
// the fallback answer is returned instead.
func (a *Agent) RunTurn(ctx context.Context, userText string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := instrumentation.StartSpan(ctx, "agent.turn")
	defer span.End()

	if a.perTurnCache {
		a.cache.Clear()
	}
	// Failed turns roll back to this mark, so a caller can re-run the
	// turn without duplicating the request or any partial rounds.
	mark := len(a.conversation)
	a.conversation = append(a.conversation, chat.User(userText))

	turnStart := time.Now()
	rounds := 0
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordTurn(ctx, rounds, time.Since(turnStart))
		}
	}()

	for round := 1; round <= a.maxRounds; round++ {
		rounds = round
		if err := ctx.Err(); err != nil {
			a.conversation = a.conversation[:mark]
			return "", err
		}

		window := Window(a.conversation, a.windowBudget)
		a.logger.Debug("calling model",
			logging.Round(round),
			slog.Int("window_messages", len(window)),
			slog.Int("window_tokens", estimateTotal(window)))

		callStart := time.Now()
		assistant, err := a.completer.Complete(ctx, window, a.defs)
		callElapsed := time.Since(callStart)
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordModelCall(ctx, logging.StatusError, callElapsed)
			}
			instrumentation.SetSpanError(span, err)
			a.conversation = a.conversation[:mark]
			return "", fmt.Errorf("model call: %w", err)
		}
		if a.metrics != nil {
			a.metrics.RecordModelCall(ctx, logging.StatusSuccess, callElapsed)
		}

		a.conversation = append(a.conversation, assistant)

		if !assistant.HasToolCalls() {
			a.logger.Debug("turn completed",
				logging.Round(round),
				logging.Duration(time.Since(turnStart)))
			instrumentation.SetSpanSuccess(span)
			a.prune()
			return strings.TrimSpace(assistant.Content), nil
		}

		for _, tc := range assistant.ToolCalls {
			result := a.executeCall(ctx, tc)
			a.conversation = append(a.conversation, chat.ToolResponse(tc.ID, TruncateToolResult(result)))
		}
	}

	a.logger.Warn("turn hit round limit", logging.Round(a.maxRounds))
	a.conversation = append(a.conversation, chat.Assistant(StepLimitMessage))
	a.prune()
	return StepLimitMessage, nil
}

// executeCall runs one tool call. Every failure mode is returned as result
// text for the model rather than an error.
func (a *Agent) executeCall(ctx context.Context, tc chat.ToolCall) string {
	ctx, span := instrumentation.StartToolSpan(ctx, tc.Name)
	defer span.End()

	raw := tc.Arguments
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		instrumentation.SetSpanError(span, err)
		return fmt.Sprintf("Error parsing arguments: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	tool, ok := a.registry.Get(tc.Name)
	if !ok {
		a.logger.Warn("model requested unknown tool", logging.Tool(tc.Name))
		return fmt.Sprintf("Error: unknown tool: %s", tc.Name)
	}

	if tool.RequiresReplyTarget {
		if target, _ := args[tools.ReplyTargetArg].(string); target == "" {
			id, ok := a.cache.LastID()
			if !ok {
				a.logger.Debug("refused reply tool without target", logging.Tool(tc.Name))
				return missingTargetMessage
			}
			args[tools.ReplyTargetArg] = id
		}
	}

	result, err := a.registry.Execute(ctx, tc.Name, args)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		a.logger.Warn("tool failed",
			logging.Tool(tc.Name),
			logging.Err(err))
		return fmt.Sprintf("Error: %v", err)
	}

	instrumentation.SetSpanSuccess(span)
	return result
}

// prune trims retained history to the window budget so long sessions don't
// grow without bound. The trimmed conversation is exactly what the next
// model call would see anyway.
func (a *Agent) prune() {
	a.conversation = Window(a.conversation, a.windowBudget)
}
