package gmail

import (
	"encoding/base64"
	"regexp"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

var htmlTagRE = regexp.MustCompile(`<[^>]+>`)

// HeaderValue extracts a header value from a Gmail message, matching the
// header name case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// Parse flattens a Gmail API message into the representation tools and
// prompts work with.
func Parse(m *gmail.Message) *Email {
	if m == nil {
		return &Email{}
	}
	return &Email{
		From:            HeaderValue(m, "From"),
		To:              HeaderValue(m, "To"),
		Subject:         HeaderValue(m, "Subject"),
		Date:            HeaderValue(m, "Date"),
		Body:            extractBody(m.Payload),
		MessageID:       m.Id,
		ThreadID:        m.ThreadId,
		MessageIDHeader: HeaderValue(m, "Message-ID"),
		References:      HeaderValue(m, "References"),
		InReplyTo:       HeaderValue(m, "In-Reply-To"),
	}
}

// extractBody walks the MIME parts for a text/plain body, falling back to a
// tag-stripped text/html part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if len(payload.Parts) > 0 {
		var htmlBody string
		for _, part := range payload.Parts {
			switch part.MimeType {
			case "text/plain":
				if body := decodePartBody(part); body != "" {
					return strings.TrimSpace(body)
				}
			case "text/html":
				if htmlBody == "" {
					htmlBody = decodePartBody(part)
				}
			case "multipart/alternative", "multipart/mixed", "multipart/related":
				if body := extractBody(part); body != "" {
					return body
				}
			}
		}
		return strings.TrimSpace(htmlTagRE.ReplaceAllString(htmlBody, ""))
	}

	body := decodePartBody(payload)
	if payload.MimeType == "text/html" {
		body = htmlTagRE.ReplaceAllString(body, "")
	}
	return strings.TrimSpace(body)
}

func decodePartBody(part *gmail.MessagePart) string {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		// Gmail occasionally pads; try the raw variant before giving up.
		data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
	}
	return string(data)
}
