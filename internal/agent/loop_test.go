package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/inboxagent/inboxagent/internal/chat"
	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/llm"
	"github.com/inboxagent/inboxagent/internal/tools"
)

// scripted returns canned assistant messages in order and repeats the last
// one when the script runs out. With err set it fails every call, or only
// the failOn-th call when failOn is positive.
type scripted struct {
	responses []chat.Message
	calls     int
	windows   [][]chat.Message
	err       error
	failOn    int
}

func (s *scripted) Complete(ctx context.Context, messages []chat.Message, defs []llm.ToolDefinition) (chat.Message, error) {
	s.windows = append(s.windows, messages)
	if s.err != nil && (s.failOn == 0 || s.failOn == s.calls+1) {
		s.calls++
		return chat.Message{}, s.err
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

func toolCallMsg(id, name, args string) chat.Message {
	return chat.Message{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{
			{ID: id, Name: name, Arguments: json.RawMessage(args)},
		},
	}
}

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	r.MustRegister(tools.Tool{
		Name:        "echo",
		Description: "echoes its message",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string"}},
			"required": ["message"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return args["message"].(string), nil
		},
	})
	return r
}

func TestRunTurnPlainAnswer(t *testing.T) {
	model := &scripted{responses: []chat.Message{chat.Assistant("  Hello there.  ")}}
	a := New(model, echoRegistry(t), nil)

	got, err := a.RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if got != "Hello there." {
		t.Errorf("RunTurn() = %q", got)
	}
	if model.calls != 1 {
		t.Errorf("model called %d times, want 1", model.calls)
	}

	history := a.History()
	if history[0].Role != chat.RoleSystem {
		t.Error("conversation must start with the system prompt")
	}
}

func TestRunTurnToolRoundTrip(t *testing.T) {
	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "echo", `{"message":"pong"}`),
		chat.Assistant("The tool said pong."),
	}}
	a := New(model, echoRegistry(t), nil)

	got, err := a.RunTurn(context.Background(), "ping the tool")
	if err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if got != "The tool said pong." {
		t.Errorf("RunTurn() = %q", got)
	}
	if model.calls != 2 {
		t.Fatalf("model called %d times, want 2", model.calls)
	}

	// The second model call must see the tool result answering call-1.
	second := model.windows[1]
	var toolMsg *chat.Message
	for i := range second {
		if second[i].Role == chat.RoleTool {
			toolMsg = &second[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("second window contains no tool result")
	}
	if toolMsg.ToolCallID != "call-1" || toolMsg.Content != "pong" {
		t.Errorf("tool result = %+v", toolMsg)
	}
}

func TestRunTurnUnknownToolIsRecoverable(t *testing.T) {
	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "frobnicate", `{}`),
		chat.Assistant("That tool does not exist."),
	}}
	a := New(model, echoRegistry(t), nil)

	got, err := a.RunTurn(context.Background(), "do something odd")
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if got != "That tool does not exist." {
		t.Errorf("RunTurn() = %q", got)
	}

	second := model.windows[1]
	last := second[len(second)-1]
	if last.Role != chat.RoleTool || !strings.Contains(last.Content, "unknown tool") {
		t.Errorf("model should see the failure as a tool result, got %+v", last)
	}
}

func TestRunTurnInvalidArgumentsIsRecoverable(t *testing.T) {
	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "echo", `{"wrong":"field"}`),
		chat.Assistant("Let me try again."),
	}}
	a := New(model, echoRegistry(t), nil)

	if _, err := a.RunTurn(context.Background(), "echo badly"); err != nil {
		t.Fatalf("invalid arguments must not abort the turn: %v", err)
	}

	second := model.windows[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "invalid tool arguments") {
		t.Errorf("tool result = %q", last.Content)
	}
}

func TestRunTurnMalformedArgumentsJSON(t *testing.T) {
	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "echo", `{"message":`),
		chat.Assistant("done"),
	}}
	a := New(model, echoRegistry(t), nil)

	if _, err := a.RunTurn(context.Background(), "echo"); err != nil {
		t.Fatalf("malformed JSON must not abort the turn: %v", err)
	}

	second := model.windows[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "Error parsing arguments") {
		t.Errorf("tool result = %q", last.Content)
	}
}

func TestRunTurnBackendFailurePropagates(t *testing.T) {
	backendErr := &llm.Error{Kind: llm.KindConnection, Op: "complete", Err: errors.New("dial tcp: refused")}
	model := &scripted{err: backendErr}
	a := New(model, echoRegistry(t), nil)

	_, err := a.RunTurn(context.Background(), "hi")
	if err == nil {
		t.Fatal("backend failure must abort the turn")
	}
	var lerr *llm.Error
	if !errors.As(err, &lerr) {
		t.Errorf("error should unwrap to *llm.Error, got %v", err)
	}
}

// A backend failure mid-turn must leave no trace in history: re-running
// the turn may not duplicate the user message or the failed attempt's
// partial rounds, and must not re-execute tools that already ran.
func TestRunTurnBackendFailureRollsBack(t *testing.T) {
	backendErr := &llm.Error{Kind: llm.KindConnection, Op: "complete", Err: errors.New("dial tcp: refused")}
	model := &scripted{
		responses: []chat.Message{
			toolCallMsg("call-1", "echo", `{"message":"pong"}`),
			chat.Assistant("Done."),
		},
		err:    backendErr,
		failOn: 2,
	}
	a := New(model, echoRegistry(t), nil)

	if _, err := a.RunTurn(context.Background(), "ping the tool"); err == nil {
		t.Fatal("backend failure must abort the turn")
	}
	for _, m := range a.History() {
		if m.Role != chat.RoleSystem {
			t.Fatalf("failed turn left %s message in history", m.Role)
		}
	}

	got, err := a.RunTurn(context.Background(), "ping the tool")
	if err != nil {
		t.Fatalf("retried turn failed: %v", err)
	}
	if got != "Done." {
		t.Errorf("RunTurn() = %q", got)
	}

	users, toolResults := 0, 0
	for _, m := range a.History() {
		switch m.Role {
		case chat.RoleUser:
			users++
		case chat.RoleTool:
			toolResults++
		}
	}
	if users != 1 {
		t.Errorf("user message appears %d times in history, want 1", users)
	}
	if toolResults != 0 {
		t.Errorf("history keeps %d tool results from the failed attempt, want 0", toolResults)
	}
}

func TestRunTurnStepLimit(t *testing.T) {
	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "echo", `{"message":"again"}`),
	}}
	a := New(model, echoRegistry(t), nil, WithMaxRounds(3))

	got, err := a.RunTurn(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("hitting the round limit is not an error: %v", err)
	}
	if got != StepLimitMessage {
		t.Errorf("RunTurn() = %q, want the fallback message", got)
	}
	if model.calls != 3 {
		t.Errorf("model called %d times, want exactly the round limit", model.calls)
	}
}

func TestRunTurnContextCanceled(t *testing.T) {
	model := &scripted{responses: []chat.Message{chat.Assistant("never reached")}}
	a := New(model, echoRegistry(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.RunTurn(ctx, "hi")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunTurn() error = %v, want context.Canceled", err)
	}
}

func TestRunTurnReplyTargetInjection(t *testing.T) {
	r := tools.NewRegistry()
	cache := NewCache()

	r.MustRegister(tools.Tool{
		Name:        "fetch",
		Description: "fetches an email",
		Schema:      json.RawMessage(`{"type":"object","properties":{"message_id":{"type":"string"}},"required":["message_id"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := args["message_id"].(string)
			cache.Put(id, &gmail.Email{Subject: "fetched"})
			return "ok", nil
		},
		CachesResult: true,
	})

	var sentTarget string
	sendCalls := 0
	r.MustRegister(tools.Tool{
		Name:        "send",
		Description: "sends a reply",
		Schema:      json.RawMessage(`{"type":"object","properties":{"reply_to_message_id":{"type":"string"},"body":{"type":"string"}},"required":["body"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sendCalls++
			sentTarget, _ = args[tools.ReplyTargetArg].(string)
			return "sent", nil
		},
		RequiresReplyTarget: true,
	})

	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "fetch", `{"message_id":"m42"}`),
		toolCallMsg("call-2", "send", `{"body":"thanks"}`),
		chat.Assistant("Reply sent."),
	}}
	a := New(model, r, cache)

	got, err := a.RunTurn(context.Background(), "reply to the last email")
	if err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if got != "Reply sent." {
		t.Errorf("RunTurn() = %q", got)
	}
	if sentTarget != "m42" {
		t.Errorf("injected target = %q, want m42", sentTarget)
	}
	if sendCalls != 1 {
		t.Errorf("send handler called %d times", sendCalls)
	}
}

func TestRunTurnReplyToolWithoutTarget(t *testing.T) {
	r := tools.NewRegistry()
	sendCalls := 0
	r.MustRegister(tools.Tool{
		Name:        "send",
		Description: "sends a reply",
		Schema:      json.RawMessage(`{"type":"object","properties":{"reply_to_message_id":{"type":"string"},"body":{"type":"string"}},"required":["body"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sendCalls++
			return "sent", nil
		},
		RequiresReplyTarget: true,
	})

	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "send", `{"body":"hello"}`),
		chat.Assistant("I need an email to reply to."),
	}}
	a := New(model, r, nil)

	if _, err := a.RunTurn(context.Background(), "send a reply"); err != nil {
		t.Fatalf("missing target must not abort the turn: %v", err)
	}
	if sendCalls != 0 {
		t.Error("handler must not run without a reply target")
	}

	second := model.windows[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "reply_to_message_id is required") {
		t.Errorf("synthesized result = %q", last.Content)
	}
}

// Full flow: search for an email, open it, reply without naming the target.
func TestRunTurnSearchFetchReplyFlow(t *testing.T) {
	r := tools.NewRegistry()
	cache := NewCache()

	r.MustRegister(tools.Tool{
		Name:        "search",
		Description: "searches the mailbox",
		Schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "1. Q3 budget (id: abc123)", nil
		},
	})
	r.MustRegister(tools.Tool{
		Name:        "fetch",
		Description: "fetches an email",
		Schema:      json.RawMessage(`{"type":"object","properties":{"message_id":{"type":"string"}},"required":["message_id"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id := args["message_id"].(string)
			cache.Put(id, &gmail.Email{From: "cfo@example.com", Subject: "Q3 budget"})
			return "From: cfo@example.com\nSubject: Q3 budget", nil
		},
		CachesResult: true,
	})
	var sentTarget string
	r.MustRegister(tools.Tool{
		Name:        "send",
		Description: "sends a reply",
		Schema:      json.RawMessage(`{"type":"object","properties":{"reply_to_message_id":{"type":"string"},"body":{"type":"string"}},"required":["body"]}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sentTarget, _ = args[tools.ReplyTargetArg].(string)
			return "Reply sent (message id: out-1)", nil
		},
		RequiresReplyTarget: true,
	})

	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "search", `{"query":"Q3 budget"}`),
		toolCallMsg("call-2", "fetch", `{"message_id":"abc123"}`),
		toolCallMsg("call-3", "send", `{"body":"I approve."}`),
		chat.Assistant("I've sent your approval."),
	}}
	a := New(model, r, cache)

	got, err := a.RunTurn(context.Background(), "find the email about Q3 budget and reply saying I approve")
	if err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if got != "I've sent your approval." {
		t.Errorf("RunTurn() = %q", got)
	}
	if model.calls != 4 {
		t.Errorf("model called %d times, want 4", model.calls)
	}
	if sentTarget != "abc123" {
		t.Errorf("send target = %q, want abc123 injected from the fetch", sentTarget)
	}

	// Every tool result must answer the call that produced it, in order.
	var ids []string
	for _, m := range a.History() {
		if m.Role == chat.RoleTool {
			ids = append(ids, m.ToolCallID)
		}
	}
	want := []string{"call-1", "call-2", "call-3"}
	if len(ids) != len(want) {
		t.Fatalf("tool results = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("tool result %d answers %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestRunTurnClearsCacheBetweenTurns(t *testing.T) {
	model := &scripted{responses: []chat.Message{chat.Assistant("ok")}}
	a := New(model, echoRegistry(t), nil)

	a.Cache().Put("m1", &gmail.Email{})
	if _, err := a.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if a.Cache().Len() != 0 {
		t.Error("per-turn cache should be cleared when a turn starts")
	}
}

func TestRunTurnSessionCacheSurvivesTurns(t *testing.T) {
	model := &scripted{responses: []chat.Message{chat.Assistant("ok")}}
	cache := NewBoundedCache(8)
	a := New(model, echoRegistry(t), nil, WithSessionCache(cache))

	cache.Put("m1", &gmail.Email{})
	if _, err := a.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}
	if cache.Len() != 1 {
		t.Error("session cache must survive across turns")
	}
}

func TestRunTurnTruncatesLargeToolResults(t *testing.T) {
	r := tools.NewRegistry()
	r.MustRegister(tools.Tool{
		Name:        "dump",
		Description: "returns a large blob",
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return strings.Repeat("z", ToolResultMaxChars*3), nil
		},
	})

	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "dump", `{}`),
		chat.Assistant("done"),
	}}
	a := New(model, r, nil)

	if _, err := a.RunTurn(context.Background(), "dump it"); err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}

	second := model.windows[1]
	last := second[len(second)-1]
	if len(last.Content) != ToolResultMaxChars {
		t.Errorf("stored tool result length = %d, want %d", len(last.Content), ToolResultMaxChars)
	}
	if !strings.HasSuffix(last.Content, truncationNotice) {
		t.Error("stored tool result missing truncation notice")
	}
}

func TestRunTurnWindowRespectsBudget(t *testing.T) {
	big := strings.Repeat("q", 2000)
	r := tools.NewRegistry()
	r.MustRegister(tools.Tool{
		Name:        "dump",
		Description: "returns a large blob",
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return big, nil
		},
	})

	script := []chat.Message{
		toolCallMsg("call-1", "dump", `{}`),
		toolCallMsg("call-2", "dump", `{}`),
		toolCallMsg("call-3", "dump", `{}`),
		chat.Assistant("done"),
	}
	budget := 1200
	model := &scripted{responses: script}
	a := New(model, r, nil, WithWindowBudget(budget))

	if _, err := a.RunTurn(context.Background(), "dump repeatedly"); err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}

	for i, window := range model.windows {
		if total := estimateTotal(window); total > budget {
			t.Errorf("window %d over budget: %d tokens", i, total)
		}
		if len(window) == 0 {
			t.Errorf("window %d is empty", i)
		}
		for j, m := range window {
			if m.Role == chat.RoleTool && (j == 0 || (window[j-1].Role != chat.RoleAssistant && window[j-1].Role != chat.RoleTool)) {
				t.Errorf("window %d has an orphan tool result at %d", i, j)
			}
		}
	}
}

func TestRunTurnRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	metrics, err := instrumentation.NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	model := &scripted{responses: []chat.Message{
		toolCallMsg("call-1", "echo", `{"message":"pong"}`),
		chat.Assistant("The tool said pong."),
	}}
	a := New(model, echoRegistry(t), nil, WithMetrics(metrics))

	if _, err := a.RunTurn(context.Background(), "ping the tool"); err != nil {
		t.Fatalf("RunTurn() failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[m.Name] += dp.Value
			}
		}
	}

	if counts["agent_turns_total"] != 1 {
		t.Errorf("agent_turns_total = %d, want 1", counts["agent_turns_total"])
	}
	if counts["model_calls_total"] != 2 {
		t.Errorf("model_calls_total = %d, want 2", counts["model_calls_total"])
	}
}
