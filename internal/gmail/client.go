package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/inboxagent/inboxagent/internal/google"
)

// Client wraps the Gmail Users service and People service.
type Client struct {
	svc       *gmail.UsersService
	peopleSvc *people.Service
	account   string
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// HasToken checks if a valid OAuth token exists for the default account.
func HasToken() bool {
	return google.HasToken()
}

// GetAuthURL returns the OAuth URL for user authorization.
func GetAuthURL() string {
	return google.GetAuthURL()
}

// NewClientForAccount creates a Gmail client authenticated as the given
// account. The OAuth token must already exist on disk; use the auth command
// to create one.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	httpClient, err := google.GetHTTPClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w. Run 'inboxagent auth' to authorize", account, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	peopleSvc, err := people.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return &Client{
		svc:       svc.Users,
		peopleSvc: peopleSvc,
		account:   account,
	}, nil
}

// NewClient creates a Gmail client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// Search returns references to messages matching the Gmail search query, in
// the order the API returns them (newest first).
func (c *Client) Search(query string, maxResults int64) ([]MessageRef, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	res, err := c.svc.Messages.List("me").Q(query).MaxResults(maxResults).Do()
	if err != nil {
		return nil, &APIError{Op: "search", Err: err}
	}

	refs := make([]MessageRef, 0, len(res.Messages))
	for _, m := range res.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// GetMessage retrieves a full Gmail message. A missing ID yields ErrNotFound.
func (c *Client) GetMessage(messageID string) (*gmail.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}

	msg, err := c.svc.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return nil, &APIError{Op: "get", Err: err}
	}
	return msg, nil
}

// GetMetadata retrieves only the listed headers of a message. Preferred over
// GetMessage whenever only display fields are needed.
func (c *Client) GetMetadata(messageID string, headers []string) (*gmail.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if len(headers) == 0 {
		headers = []string{"From", "To", "Subject", "Date"}
	}

	msg, err := c.svc.Messages.Get("me", messageID).
		Format("metadata").
		MetadataHeaders(headers...).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return nil, &APIError{Op: "get_metadata", Err: err}
	}
	return msg, nil
}

// SendReply sends a reply within the thread of the given parsed email. The
// recipient is derived from the original From header; the subject gets a
// "Re: " prefix when missing, and In-Reply-To/References headers keep the
// thread intact.
func (c *Client) SendReply(original *Email, subject, body string) (string, error) {
	if original == nil {
		return "", fmt.Errorf("original email is required")
	}
	if original.ThreadID == "" {
		return "", fmt.Errorf("threadID is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	to := ExtractAddress(original.From)
	if to == "" {
		return "", fmt.Errorf("original email has no usable From address")
	}

	if subject == "" {
		subject = original.Subject
	}
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	raw := buildRFC2822(to, subject, body, original.MessageIDHeader, original.References)

	sent, err := c.svc.Messages.Send("me", &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadId: original.ThreadID,
	}).Do()
	if err != nil {
		return "", &APIError{Op: "send_reply", Err: err}
	}
	return sent.Id, nil
}

// CreateDraft creates a draft reply without sending it. threadID may be
// empty for a standalone draft.
func (c *Client) CreateDraft(original *Email, subject, body, threadID string) (string, error) {
	if original == nil {
		return "", fmt.Errorf("original email is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	to := ExtractAddress(original.From)
	if to == "" {
		return "", fmt.Errorf("original email has no usable From address")
	}
	if subject == "" {
		subject = original.Subject
	}

	raw := buildRFC2822(to, subject, body, "", "")

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}
	if threadID != "" {
		msg.ThreadId = threadID
	}

	draft, err := c.svc.Drafts.Create("me", &gmail.Draft{Message: msg}).Do()
	if err != nil {
		return "", &APIError{Op: "create_draft", Err: err}
	}
	return draft.Id, nil
}

// SearchContacts searches the user's personal contacts for a name or address
// fragment. Used to resolve recipients the user names but does not spell out.
func (c *Client) SearchContacts(query string, pageSize int) ([]Contact, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	resp, err := c.peopleSvc.People.SearchContacts().
		Query(query).
		ReadMask("names,emailAddresses").
		PageSize(int64(pageSize)).
		Do()
	if err != nil {
		return nil, &APIError{Op: "search_contacts", Err: err}
	}

	seen := make(map[string]bool)
	var contacts []Contact
	for _, result := range resp.Results {
		p := result.Person
		if p == nil || len(p.EmailAddresses) == 0 {
			continue
		}
		contact := Contact{EmailAddress: p.EmailAddresses[0].Value}
		if len(p.Names) > 0 {
			contact.DisplayName = p.Names[0].DisplayName
		}
		if contact.EmailAddress == "" || seen[contact.EmailAddress] {
			continue
		}
		seen[contact.EmailAddress] = true
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// buildRFC2822 constructs the raw reply text. Threading headers are added
// only when the original Message-ID header is known.
func buildRFC2822(to, subject, body, origMessageID, origReferences string) string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")

	if origMessageID != "" {
		b.WriteString("In-Reply-To: ")
		b.WriteString(origMessageID)
		b.WriteString("\r\n")

		references := origMessageID
		if origReferences != "" {
			references = origReferences + " " + origMessageID
		}
		b.WriteString("References: ")
		b.WriteString(references)
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return b.String()
}

// encodeRFC2047 encodes a header value for non-ASCII characters (like
// umlauts) according to RFC 2047. ASCII-only strings pass through.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// ExtractAddress pulls the bare address out of a "Name <addr>" header value.
func ExtractAddress(from string) string {
	if i := strings.Index(from, "<"); i >= 0 {
		if j := strings.Index(from[i:], ">"); j > 0 {
			return strings.TrimSpace(from[i+1 : i+j])
		}
	}
	return strings.TrimSpace(from)
}
