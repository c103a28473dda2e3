package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/instrumentation"
	"github.com/inboxagent/inboxagent/internal/llm"
	"github.com/inboxagent/inboxagent/internal/logging"
	"github.com/inboxagent/inboxagent/internal/tools"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 50
)

// Mailbox is the Gmail surface the toolset needs. *gmail.Client satisfies it.
type Mailbox interface {
	Search(query string, maxResults int64) ([]gmail.MessageRef, error)
	GetMessage(messageID string) (*gmailapi.Message, error)
	GetMetadata(messageID string, headers []string) (*gmailapi.Message, error)
	SendReply(original *gmail.Email, subject, body string) (string, error)
	CreateDraft(original *gmail.Email, subject, body, threadID string) (string, error)
	SearchContacts(query string, pageSize int) ([]gmail.Contact, error)
}

// Generator is the model surface used by the reply tools. *llm.Client
// satisfies it.
type Generator interface {
	GenerateReply(ctx context.Context, email llm.ReplyContext, extra, tone, language string) (string, error)
	ImproveReply(ctx context.Context, original, feedback, language string) (string, error)
}

// ReplyStore remembers emails fetched during a turn so reply tools can
// address them without the model round-tripping the full message.
type ReplyStore interface {
	Put(id string, email *gmail.Email)
	Get(id string) (*gmail.Email, bool)
	Last() (*gmail.Email, bool)
}

// Toolset builds the email tools for one account.
type Toolset struct {
	mailbox    Mailbox
	model      Generator
	store      ReplyStore
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	maxResults int
}

// New creates a Toolset. All three collaborators are required.
func New(mailbox Mailbox, model Generator, store ReplyStore) *Toolset {
	return &Toolset{
		mailbox:    mailbox,
		model:      model,
		store:      store,
		logger:     slog.Default(),
		maxResults: defaultMaxResults,
	}
}

// WithLogger replaces the default logger.
func (ts *Toolset) WithLogger(logger *slog.Logger) *Toolset {
	ts.logger = logger
	return ts
}

// WithMetrics enables per-operation Gmail and People API metrics and spans.
func (ts *Toolset) WithMetrics(m *instrumentation.Metrics) *Toolset {
	ts.metrics = m
	return ts
}

// WithMaxResults changes the search result count used when a tool call
// leaves max_results unset. Capped to the schema maximum.
func (ts *Toolset) WithMaxResults(n int) *Toolset {
	if n > 0 {
		if n > maxMaxResults {
			n = maxMaxResults
		}
		ts.maxResults = n
	}
	return ts
}

// Tools returns the full tool list in the order the model sees them.
func (ts *Toolset) Tools() []tools.Tool {
	return []tools.Tool{
		{
			Name:        "search_emails",
			Description: "Search emails in the mailbox. Accepts a Gmail query (e.g. 'from:alice is:unread') or a plain phrase, which is matched against subjects. Returns message IDs for use with other tools.",
			Schema:      searchEmailsSchema,
			Handler:     ts.searchEmails,
		},
		{
			Name:        "list_emails_summary",
			Description: "Produce a short numbered summary (sender, subject, date) for a list of message IDs. Use after search_emails to show results to the user.",
			Schema:      listEmailsSummarySchema,
			Handler:     ts.listEmailsSummary,
		},
		{
			Name:         "get_email",
			Description:  "Fetch a single email by message ID, including its body. The fetched email becomes the current reply target.",
			Schema:       messageIDSchema,
			Handler:      ts.getEmail,
			CachesResult: true,
		},
		{
			Name:         "parse_email",
			Description:  "Fetch an email by message ID and return its headers and a short body preview. The email becomes the current reply target.",
			Schema:       messageIDSchema,
			Handler:      ts.parseEmail,
			CachesResult: true,
		},
		{
			Name:        "generate_reply",
			Description: "Draft a reply to the current email using the model. Optionally takes extra context, a tone, and a language. Does not send anything.",
			Schema:      generateReplySchema,
			Handler:     ts.generateReply,
		},
		{
			Name:        "improve_reply",
			Description: "Rewrite a previously drafted reply according to user feedback. Does not send anything.",
			Schema:      improveReplySchema,
			Handler:     ts.improveReply,
		},
		{
			Name:                "send_reply",
			Description:         "Send a reply to the email identified by reply_to_message_id. Only call after the user has approved the reply text.",
			Schema:              sendReplySchema,
			Handler:             ts.sendReply,
			RequiresReplyTarget: true,
		},
		{
			Name:                "create_draft",
			Description:         "Save a reply to the email identified by reply_to_message_id as a Gmail draft without sending it.",
			Schema:              sendReplySchema,
			Handler:             ts.createDraft,
			RequiresReplyTarget: true,
		},
		{
			Name:        "search_contacts",
			Description: "Search the user's Google contacts by name or email address.",
			Schema:      searchContactsSchema,
			Handler:     ts.searchContacts,
		},
	}
}

func (ts *Toolset) searchEmails(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query")
	maxResults := intArg(args, "max_results", ts.maxResults)

	var refs []gmail.MessageRef
	err := ts.observe(ctx, instrumentation.ServiceGmail, instrumentation.OperationList, func() error {
		var err error
		refs, err = ts.mailbox.Search(buildQuery(query), int64(maxResults))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("search emails: %w", err)
	}

	ts.logger.Debug("searched emails",
		logging.Tool("search_emails"),
		slog.Int("results", len(refs)))

	if len(refs) == 0 {
		return "No emails matched the query.", nil
	}

	out, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("encode search results: %w", err)
	}
	return string(out), nil
}

func (ts *Toolset) listEmailsSummary(ctx context.Context, args map[string]any) (string, error) {
	ids := stringSliceArg(args, "message_ids")
	if len(ids) == 0 {
		return "No message IDs provided.", nil
	}
	if len(ids) > maxMaxResults {
		ids = ids[:maxMaxResults]
	}

	var b strings.Builder
	for i, id := range ids {
		var msg *gmailapi.Message
		err := ts.observe(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, func() error {
			var err error
			msg, err = ts.mailbox.GetMetadata(id, []string{"From", "Subject", "Date"})
			return err
		})
		if err != nil {
			fmt.Fprintf(&b, "%d. (unavailable: %s)\n", i+1, id)
			continue
		}
		from := orDefault(gmail.HeaderValue(msg, "From"), "Unknown sender")
		subject := orDefault(gmail.HeaderValue(msg, "Subject"), "No Subject")
		date := orDefault(gmail.HeaderValue(msg, "Date"), "Unknown date")
		fmt.Fprintf(&b, "%d. %s | %s | %s (id: %s)\n", i+1, subject, from, date, id)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (ts *Toolset) getEmail(ctx context.Context, args map[string]any) (string, error) {
	email, err := ts.fetch(ctx, stringArg(args, "message_id"))
	if err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(email, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}
	return string(out), nil
}

func (ts *Toolset) parseEmail(ctx context.Context, args map[string]any) (string, error) {
	email, err := ts.fetch(ctx, stringArg(args, "message_id"))
	if err != nil {
		return "", err
	}

	preview := email.Body
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}

	return fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: %s\n\n%s",
		orDefault(email.From, "Unknown"),
		orDefault(email.To, "Unknown"),
		orDefault(email.Subject, "No Subject"),
		orDefault(email.Date, "Unknown"),
		orDefault(preview, "No body content")), nil
}

func (ts *Toolset) generateReply(ctx context.Context, args map[string]any) (string, error) {
	email := ts.resolveTarget(ctx, stringArg(args, tools.ReplyTargetArg))

	reply, err := ts.model.GenerateReply(ctx,
		replyContext(email),
		stringArg(args, "context"),
		stringArgDefault(args, "tone", "professional"),
		stringArgDefault(args, "language", "English"),
	)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return reply, nil
}

func (ts *Toolset) improveReply(ctx context.Context, args map[string]any) (string, error) {
	reply, err := ts.model.ImproveReply(ctx,
		stringArg(args, "original_reply"),
		stringArg(args, "feedback"),
		stringArgDefault(args, "language", "English"),
	)
	if err != nil {
		return "", fmt.Errorf("improve reply: %w", err)
	}
	return reply, nil
}

func (ts *Toolset) sendReply(ctx context.Context, args map[string]any) (string, error) {
	original, err := ts.target(ctx, stringArg(args, tools.ReplyTargetArg))
	if err != nil {
		return "", err
	}

	var id string
	err = ts.observe(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend, func() error {
		var err error
		id, err = ts.mailbox.SendReply(original, stringArg(args, "subject"), stringArg(args, "body"))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}

	ts.logger.Info("sent reply",
		logging.Tool("send_reply"),
		slog.String("user_hash", logging.AnonymizeEmail(gmail.ExtractAddress(original.From))))

	return fmt.Sprintf("Reply sent successfully (message id: %s).", id), nil
}

func (ts *Toolset) createDraft(ctx context.Context, args map[string]any) (string, error) {
	original, err := ts.target(ctx, stringArg(args, tools.ReplyTargetArg))
	if err != nil {
		return "", err
	}

	var id string
	err = ts.observe(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreate, func() error {
		var err error
		id, err = ts.mailbox.CreateDraft(original, stringArg(args, "subject"), stringArg(args, "body"), original.ThreadID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	return fmt.Sprintf("Draft saved (draft id: %s). Nothing was sent.", id), nil
}

func (ts *Toolset) searchContacts(ctx context.Context, args map[string]any) (string, error) {
	var contacts []gmail.Contact
	err := ts.observe(ctx, instrumentation.ServicePeople, instrumentation.OperationSearch, func() error {
		var err error
		contacts, err = ts.mailbox.SearchContacts(stringArg(args, "query"), intArg(args, "max_results", ts.maxResults))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("search contacts: %w", err)
	}
	if len(contacts) == 0 {
		return "No contacts matched the query.", nil
	}

	out, err := json.Marshal(contacts)
	if err != nil {
		return "", fmt.Errorf("encode contacts: %w", err)
	}
	return string(out), nil
}

// observe traces one Gmail or People API call and records its outcome.
func (ts *Toolset) observe(ctx context.Context, service, operation string, call func() error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation)
	defer span.End()

	start := time.Now()
	err := call()

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if ts.metrics != nil {
		ts.metrics.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
	}
	return err
}

// fetch retrieves and parses a message and records it as the reply target.
func (ts *Toolset) fetch(ctx context.Context, messageID string) (*gmail.Email, error) {
	var msg *gmailapi.Message
	err := ts.observe(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, func() error {
		var err error
		msg, err = ts.mailbox.GetMessage(messageID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get email %s: %w", messageID, err)
	}

	email := gmail.Parse(msg)
	ts.store.Put(messageID, email)
	return email, nil
}

// target resolves a reply target by ID, falling back to a fresh fetch when
// the store does not have it.
func (ts *Toolset) target(ctx context.Context, messageID string) (*gmail.Email, error) {
	if messageID == "" {
		return nil, fmt.Errorf("no reply target: fetch the email first with get_email or parse_email")
	}
	if email, ok := ts.store.Get(messageID); ok {
		return email, nil
	}
	return ts.fetch(ctx, messageID)
}

// resolveTarget is the lenient variant used by generate_reply: any fetched
// email will do, and a missing target degrades to an empty context rather
// than an error.
func (ts *Toolset) resolveTarget(ctx context.Context, messageID string) *gmail.Email {
	if messageID != "" {
		if email, ok := ts.store.Get(messageID); ok {
			return email
		}
		if email, err := ts.fetch(ctx, messageID); err == nil {
			return email
		}
	}
	if email, ok := ts.store.Last(); ok {
		return email
	}
	return &gmail.Email{}
}

func replyContext(email *gmail.Email) llm.ReplyContext {
	return llm.ReplyContext{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Body:    email.Body,
		Date:    email.Date,
	}
}

// buildQuery turns a plain phrase into a subject search while leaving
// queries that already use Gmail operators untouched.
func buildQuery(query string) string {
	if query == "" {
		return "in:inbox"
	}
	if strings.ContainsAny(query, ":\"") {
		return query
	}
	return fmt.Sprintf("subject:%q", query)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
