package cmd

import (
	"errors"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/inboxagent/inboxagent/internal/gmail"
	"github.com/inboxagent/inboxagent/internal/server"
)

var errNotAuthorized = errors.New("Gmail access not authorized: call google_get_auth_url to start authentication")

// lazyMailbox resolves the Gmail client per call so the server can start
// before a token exists. Until google_save_auth_code stores one, every
// email tool reports how to authorize.
type lazyMailbox struct {
	sc      *server.ServerContext
	account string
}

func (m *lazyMailbox) client() (*gmail.Client, error) {
	c := m.sc.GmailClientForAccount(m.account)
	if c == nil {
		return nil, errNotAuthorized
	}
	return c, nil
}

func (m *lazyMailbox) Search(query string, maxResults int64) ([]gmail.MessageRef, error) {
	c, err := m.client()
	if err != nil {
		return nil, err
	}
	return c.Search(query, maxResults)
}

func (m *lazyMailbox) GetMessage(messageID string) (*gmailapi.Message, error) {
	c, err := m.client()
	if err != nil {
		return nil, err
	}
	return c.GetMessage(messageID)
}

func (m *lazyMailbox) GetMetadata(messageID string, headers []string) (*gmailapi.Message, error) {
	c, err := m.client()
	if err != nil {
		return nil, err
	}
	return c.GetMetadata(messageID, headers)
}

func (m *lazyMailbox) SendReply(original *gmail.Email, subject, body string) (string, error) {
	c, err := m.client()
	if err != nil {
		return "", err
	}
	return c.SendReply(original, subject, body)
}

func (m *lazyMailbox) CreateDraft(original *gmail.Email, subject, body, threadID string) (string, error) {
	c, err := m.client()
	if err != nil {
		return "", err
	}
	return c.CreateDraft(original, subject, body, threadID)
}

func (m *lazyMailbox) SearchContacts(query string, pageSize int) ([]gmail.Contact, error) {
	c, err := m.client()
	if err != nil {
		return nil, err
	}
	return c.SearchContacts(query, pageSize)
}
