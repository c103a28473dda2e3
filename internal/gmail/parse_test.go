package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestHeaderValue(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "Subject", Value: "Q3 budget"},
			},
		},
	}

	tests := []struct {
		header string
		want   string
	}{
		{"From", "Alice <alice@example.com>"},
		{"from", "Alice <alice@example.com>"},
		{"Subject", "Q3 budget"},
		{"Date", ""},
	}

	for _, tt := range tests {
		if got := HeaderValue(msg, tt.header); got != tt.want {
			t.Errorf("HeaderValue(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}

	if got := HeaderValue(nil, "From"); got != "" {
		t.Errorf("HeaderValue(nil) = %q, want empty", got)
	}
}

func TestParse(t *testing.T) {
	msg := &gmail.Message{
		Id:       "abc123",
		ThreadId: "thread9",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: "Q3 budget"},
				{Name: "Date", Value: "Mon, 4 Aug 2025 10:00:00 +0200"},
				{Name: "Message-ID", Value: "<orig@mail.example.com>"},
				{Name: "References", Value: "<older@mail.example.com>"},
			},
			Body: &gmail.MessagePartBody{Data: b64("Please approve the Q3 budget.")},
		},
	}

	email := Parse(msg)

	if email.From != "Alice <alice@example.com>" {
		t.Errorf("From = %q", email.From)
	}
	if email.Subject != "Q3 budget" {
		t.Errorf("Subject = %q", email.Subject)
	}
	if email.Body != "Please approve the Q3 budget." {
		t.Errorf("Body = %q", email.Body)
	}
	if email.MessageID != "abc123" || email.ThreadID != "thread9" {
		t.Errorf("ids = %q/%q", email.MessageID, email.ThreadID)
	}
	if email.MessageIDHeader != "<orig@mail.example.com>" {
		t.Errorf("MessageIDHeader = %q", email.MessageIDHeader)
	}
}

func TestExtractBodyMultipart(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name: "prefers text/plain over html",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html body</p>")}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("plain body")}},
				},
			},
			want: "plain body",
		},
		{
			name: "falls back to stripped html",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>hello <b>there</b></p>")}},
				},
			},
			want: "hello there",
		},
		{
			name: "nested multipart/alternative",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("nested body")}},
						},
					},
				},
			},
			want: "nested body",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractBody(tt.payload); got != tt.want {
				t.Errorf("extractBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"Alice <alice@example.com>", "alice@example.com"},
		{"alice@example.com", "alice@example.com"},
		{"  bob@example.com  ", "bob@example.com"},
		{"Broken <unclosed", "Broken <unclosed"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractAddress(tt.from); got != tt.want {
			t.Errorf("ExtractAddress(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestEncodeRFC2047(t *testing.T) {
	if got := encodeRFC2047("plain ascii subject"); got != "plain ascii subject" {
		t.Errorf("ascii subject changed: %q", got)
	}
	got := encodeRFC2047("Grüße aus München")
	if got == "Grüße aus München" {
		t.Error("non-ASCII subject was not encoded")
	}
	if !strings.HasPrefix(got, "=?UTF-8?") {
		t.Errorf("encoded subject %q missing RFC 2047 prefix", got)
	}
}
