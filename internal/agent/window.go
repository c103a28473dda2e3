package agent

import (
	"unicode/utf8"

	"github.com/inboxagent/inboxagent/internal/chat"
)

const (
	// DefaultWindowBudget is the token budget for the conversation sent to
	// the model, leaving headroom below typical model context limits for
	// the tool schemas and the completion.
	DefaultWindowBudget = 7000

	// ToolResultMaxChars caps the size of a single tool result before it
	// is folded into the conversation.
	ToolResultMaxChars = 3500

	// charsPerToken is the rough chars-to-tokens ratio used for budget
	// estimates. Deliberately conservative for English text.
	charsPerToken = 4

	// messageOverheadTokens accounts for role framing and message
	// delimiters the API adds around each message.
	messageOverheadTokens = 4

	truncationNotice = "\n[... truncated to fit context limit]"
)

// EstimateTokens approximates the token cost of a message.
func EstimateTokens(m chat.Message) int {
	chars := len(m.Content)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments)
	}
	return chars/charsPerToken + messageOverheadTokens
}

func estimateTotal(msgs []chat.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m)
	}
	return total
}

// TruncateToolResult shortens a tool result that would otherwise dominate
// the context window. The notice tells the model content was dropped. The
// cut lands on a rune boundary so multibyte content stays valid UTF-8.
func TruncateToolResult(s string) string {
	if len(s) <= ToolResultMaxChars {
		return s
	}
	cut := ToolResultMaxChars - len(truncationNotice)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationNotice
}

// Window selects the messages to send to the model: the system message (if
// any) plus the longest suffix of the remaining conversation that fits the
// budget.
//
// Two rules hold regardless of budget:
//
//   - The suffix never starts with a tool result whose assistant message
//     was evicted; an assistant message and its tool results leave the
//     window together.
//   - The window is never empty. If even the newest message exceeds the
//     budget it is sent anyway and the model's own limit decides.
func Window(msgs []chat.Message, budget int) []chat.Message {
	if len(msgs) == 0 {
		return nil
	}
	if budget <= 0 {
		budget = DefaultWindowBudget
	}

	var system []chat.Message
	rest := msgs
	if msgs[0].Role == chat.RoleSystem {
		system = msgs[:1]
		rest = msgs[1:]
		budget -= EstimateTokens(msgs[0])
	}
	if len(rest) == 0 {
		return system
	}

	start := len(rest)
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := EstimateTokens(rest[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	// A suffix must not begin with orphaned tool results.
	for start < len(rest) && rest[start].Role == chat.RoleTool {
		start++
	}

	if start == len(rest) {
		// Nothing fits. Fall back to the shortest coherent suffix: the
		// last message, extended back over any trailing tool results to
		// their assistant message.
		start = len(rest) - 1
		for start > 0 && rest[start].Role == chat.RoleTool {
			start--
		}
	}

	out := make([]chat.Message, 0, len(system)+len(rest)-start)
	out = append(out, system...)
	out = append(out, rest[start:]...)
	return out
}
