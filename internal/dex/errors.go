package dex

import (
	"fmt"
	"strings"
)

// TransportError reports a failed search request for one term: a network
// error, a timeout, or a non-2xx response.
type TransportError struct {
	Term       string
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body, if any
	Challenge  string // bot-protection vendor, if one was detected
	Err        error
}

func (e *TransportError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "search %q", e.Term)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": http %d", e.StatusCode)
	}
	if e.Challenge != "" {
		fmt.Fprintf(&sb, " (challenged by %s)", e.Challenge)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if b := strings.TrimSpace(e.Body); b != "" {
		fmt.Fprintf(&sb, ": %s", b)
	}
	return sb.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response that could not be decoded or
// lacked the expected top-level field.
type MalformedResponseError struct {
	Term string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("search %q: malformed response: %v", e.Term, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
