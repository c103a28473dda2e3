// Package gmail wraps the Gmail API operations the agent's tools are built
// on: searching messages, fetching them fully or metadata-only, parsing them
// into a flat representation, replying within a thread and creating drafts.
//
// Outgoing mail is constructed as RFC 2822 text with RFC 2047 encoded
// subjects and proper In-Reply-To/References threading headers, then sent
// base64url-encoded through the API.
//
// The package never talks to the text-generation backend; the agent loop
// calls it exclusively through registered tool handlers.
package gmail
