package mail

import "encoding/json"

var searchEmailsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Gmail search query or plain phrase matched against subjects"
		},
		"max_results": {
			"type": "integer",
			"minimum": 1,
			"maximum": 50,
			"description": "Maximum number of results to return (default 10)"
		}
	},
	"required": ["query"]
}`)

var listEmailsSummarySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message_ids": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Message IDs to summarize, as returned by search_emails"
		}
	},
	"required": ["message_ids"]
}`)

var messageIDSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message_id": {
			"type": "string",
			"description": "Gmail message ID"
		}
	},
	"required": ["message_id"]
}`)

var generateReplySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reply_to_message_id": {
			"type": "string",
			"description": "ID of the email being replied to; filled in automatically from the last fetched email when omitted"
		},
		"context": {
			"type": "string",
			"description": "Extra instructions or facts to work into the reply"
		},
		"tone": {
			"type": "string",
			"description": "Desired tone, e.g. professional, friendly, brief (default professional)"
		},
		"language": {
			"type": "string",
			"description": "Language to write the reply in (default English)"
		}
	}
}`)

var improveReplySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"original_reply": {
			"type": "string",
			"description": "The draft reply to rewrite"
		},
		"feedback": {
			"type": "string",
			"description": "What the user wants changed"
		},
		"language": {
			"type": "string",
			"description": "Language of the reply (default English)"
		}
	},
	"required": ["original_reply", "feedback"]
}`)

var sendReplySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reply_to_message_id": {
			"type": "string",
			"description": "ID of the email being replied to; filled in automatically from the last fetched email when omitted"
		},
		"subject": {
			"type": "string",
			"description": "Subject line; the original subject with a Re: prefix is used when omitted"
		},
		"body": {
			"type": "string",
			"description": "Plain-text body of the reply"
		}
	},
	"required": ["body"]
}`)

var searchContactsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Name or email address to look up"
		},
		"max_results": {
			"type": "integer",
			"minimum": 1,
			"maximum": 30,
			"description": "Maximum number of contacts to return (default 10)"
		}
	},
	"required": ["query"]
}`)
