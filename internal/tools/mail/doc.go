// Package mail defines the email tools the agent can call: searching and
// reading messages, drafting and improving replies, sending, and contact
// lookup. Handlers are bound to one Gmail account and one model client at
// construction time.
package mail
