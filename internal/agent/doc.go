// Package agent implements the conversational turn loop: it sends the
// conversation to the model, dispatches any tool calls the model requests,
// folds the results back into the conversation, and repeats until the model
// answers in plain text or the round limit is reached.
//
// The loop keeps three guarantees:
//
//   - Tool failures are folded back as tool results so the model can
//     recover; only model backend failures abort the turn.
//   - The conversation sent to the model always fits the context budget,
//     and assistant messages are never separated from their tool results
//     when older history is evicted.
//   - A runaway turn terminates after a fixed number of rounds with a
//     fallback answer instead of an error.
package agent
