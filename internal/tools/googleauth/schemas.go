package googleauth

import "encoding/json"

var getAuthURLSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"account": {
			"type": "string",
			"description": "Account name the token will be stored under (default: 'default')"
		}
	}
}`)

var saveAuthCodeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"account": {
			"type": "string",
			"description": "Account name the token will be stored under (default: 'default')"
		},
		"auth_code": {
			"type": "string",
			"description": "The authorization code from Google OAuth"
		}
	},
	"required": ["auth_code"]
}`)
