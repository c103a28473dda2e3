// Package chat defines the conversation data model shared by the agent loop,
// the context window manager and the LLM client.
//
// A conversation is an ordered sequence of messages. Assistant messages may
// carry tool calls; each tool call is answered by a tool message referencing
// it through its tool call ID. The window manager guarantees that a tool
// message is never sent to the model without the assistant message that
// produced it.
package chat
