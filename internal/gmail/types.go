package gmail

import (
	"errors"
	"fmt"
)

// MessageRef is a lightweight search result: just enough identity to fetch
// the full message later.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Email is the flat, parsed representation of a Gmail message that tools and
// prompts work with.
type Email struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	Date            string `json:"date"`
	MessageID       string `json:"message_id"`
	ThreadID        string `json:"thread_id"`
	MessageIDHeader string `json:"message_id_header,omitempty"`
	References      string `json:"references,omitempty"`
	InReplyTo       string `json:"in_reply_to,omitempty"`
}

// Contact is a simplified People API contact entry.
type Contact struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address"`
}

// ErrNotFound is returned when a message ID does not resolve.
var ErrNotFound = errors.New("message not found")

// APIError wraps a Gmail API failure with the operation that caused it.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
