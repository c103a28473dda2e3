package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inboxagent/inboxagent/internal/chat"
	"github.com/inboxagent/inboxagent/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4"

// completionMaxTokens caps the assistant completion so the conversation
// window plus the tool schemas plus the completion stay under the backend
// context limit.
const completionMaxTokens = 512

// ToolDefinition is a tool schema handed to the model on every completion
// call. Parameters must be a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Client wraps the OpenAI chat completions API.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		cfg := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
		cfg.BaseURL = url
		c.api = openai.NewClientWithConfig(cfg)
	}
}

// WithLogger sets the logger used for per-call debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the given model. The API key is read from
// the OPENAI_API_KEY environment variable.
func NewClient(model string, opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
	}
	if model == "" {
		model = DefaultModel
	}

	c := &Client{
		api:    openai.NewClient(apiKey),
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the message window plus every tool schema to the model and
// returns the assistant message: final content, tool calls, or both.
func (c *Client) Complete(ctx context.Context, messages []chat.Message, tools []ToolDefinition) (chat.Message, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toOpenAI(messages),
		MaxTokens: completionMaxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return chat.Message{}, wrapError("complete", err)
	}
	c.logger.Debug("model call completed",
		logging.Operation("complete"),
		slog.String("model", c.model),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	if len(resp.Choices) == 0 {
		return chat.Message{}, &Error{Kind: KindMalformed, Op: "complete", Err: errors.New("response contains no choices")}
	}
	return fromOpenAI(resp.Choices[0].Message), nil
}

// GenerateReply drafts a reply body for the given email. It is a nested,
// single-shot completion used by the generate_reply tool; it does not count
// against the agent loop's step limit.
func (c *Client) GenerateReply(ctx context.Context, email ReplyContext, extra, tone, language string) (string, error) {
	if tone == "" {
		tone = "professional"
	}
	prompt := buildReplyPrompt(email, extra, tone, language)
	return c.singleShot(ctx, "generate_reply", replySystemPrompt, prompt)
}

// ImproveReply rewrites an existing reply according to user feedback.
func (c *Client) ImproveReply(ctx context.Context, original, feedback, language string) (string, error) {
	prompt := buildImprovePrompt(original, feedback, language)
	return c.singleShot(ctx, "improve_reply", improveSystemPrompt, prompt)
}

func (c *Client) singleShot(ctx context.Context, op, system, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", wrapError(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Op: op, Err: errors.New("response contains no choices")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAI(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func fromOpenAI(m openai.ChatCompletionMessage) chat.Message {
	out := chat.Message{
		Role:    chat.RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out
}
