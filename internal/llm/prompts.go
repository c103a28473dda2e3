package llm

import (
	"fmt"
	"strings"
)

const replySystemPrompt = "You are a helpful email assistant that writes clear, concise, and appropriate email replies."

const improveSystemPrompt = "You are a helpful email assistant that improves email replies based on feedback."

// ReplyContext is the parsed email passed to the reply prompt.
type ReplyContext struct {
	From    string
	To      string
	Subject string
	Body    string
	Date    string
}

func buildReplyPrompt(email ReplyContext, extra, tone, language string) string {
	var sb strings.Builder

	from := email.From
	if from == "" {
		from = "Unknown"
	}
	subject := email.Subject
	if subject == "" {
		subject = "No Subject"
	}
	date := email.Date
	if date == "" {
		date = "Unknown"
	}
	body := email.Body
	if body == "" {
		body = "No body content"
	}

	fmt.Fprintf(&sb, "Generate a %s email reply to the following email:\n\n", tone)
	fmt.Fprintf(&sb, "From: %s\nSubject: %s\nDate: %s\n\nBody:\n%s\n", from, subject, date, body)

	if extra != "" {
		fmt.Fprintf(&sb, "\nAdditional context: %s\n", extra)
	}
	if !defaultLanguage(language) {
		fmt.Fprintf(&sb, "\nWrite the reply in %s.\n", language)
	}

	sb.WriteString("\nPlease write a clear, concise, and appropriate reply. Do not include the subject line or email headers, just the body text of the reply.")
	return sb.String()
}

func buildImprovePrompt(original, feedback, language string) string {
	var sb strings.Builder
	sb.WriteString("The following email reply needs to be improved based on this feedback:\n\n")
	fmt.Fprintf(&sb, "Original reply:\n%s\n\nFeedback:\n%s\n", original, feedback)
	if !defaultLanguage(language) {
		fmt.Fprintf(&sb, "\nWrite the improved reply in %s.\n", language)
	}
	sb.WriteString("\nPlease provide an improved version of the reply.")
	return sb.String()
}

// defaultLanguage reports whether the language needs no explicit
// instruction. The model writes English unless told otherwise, so the
// empty value, the "en" code, and the spelled-out name all stay silent.
func defaultLanguage(language string) bool {
	switch strings.ToLower(language) {
	case "", "en", "english":
		return true
	}
	return false
}
