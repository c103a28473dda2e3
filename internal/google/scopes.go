package google

// DefaultOAuthScopes are the Gmail scopes the agent needs: reading and
// modifying messages, composing drafts and sending replies.
var DefaultOAuthScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.send",

	// Contacts, for recipient resolution
	"https://www.googleapis.com/auth/contacts.readonly",
}
