package cohere

import "fmt"

// Kind classifies why a completion did not produce text.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream_unavailable"
	KindTimeout     Kind = "timeout"
	KindNetwork     Kind = "network"
	KindMalformed   Kind = "malformed_response"
	KindUnexpected  Kind = "unexpected"
)

// Error is returned by Complete for every failure.
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("cohere: %s after %d attempt(s)", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("cohere: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("cohere: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}
