package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies backend failures so callers can react differently to
// rate limiting (retry later) than to a malformed response (give up).
type ErrorKind string

const (
	// KindRateLimited indicates the backend rejected the call with HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindConnection indicates the request never produced an HTTP response.
	KindConnection ErrorKind = "connection"
	// KindAPI indicates the backend returned a non-429 API error.
	KindAPI ErrorKind = "api"
	// KindMalformed indicates the backend answered but the response was not
	// usable (for example, no choices).
	KindMalformed ErrorKind = "malformed"
)

// Error is the single error type returned by this package.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("llm: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapError classifies an error returned by the go-openai client.
func wrapError(op string, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &Error{Kind: KindRateLimited, Op: op, Err: err}
		}
		return &Error{Kind: KindAPI, Op: op, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: KindAPI, Op: op, Err: err}
	}
	return &Error{Kind: KindConnection, Op: op, Err: err}
}
