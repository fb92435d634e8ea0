package meteofrance

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// AuthenticationError reports a failed client-credentials exchange.
type AuthenticationError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meteofrance: token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("meteofrance: token exchange failed: %d %s", e.StatusCode, e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransportError reports a direct request that did not succeed, either
// because it never reached the server (StatusCode 0) or because the server
// answered with a non-2xx status after the token retry.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meteofrance: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("meteofrance: %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Err }

// OrderSubmissionError reports an ordering endpoint answer other than 202.
type OrderSubmissionError struct {
	StationID  string
	StatusCode int
	Reason     string
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("meteofrance: order for station %s rejected: %d %s", e.StationID, e.StatusCode, e.Reason)
}

// OrderRecoveryError reports a recovery answer other than 201/204, or a
// poll budget exhausted while the file was still not ready.
type OrderRecoveryError struct {
	OrderID    string
	StatusCode int
	Reason     string
	Attempts   int
	TimedOut   bool
}

func (e *OrderRecoveryError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("meteofrance: order %s not ready after %d attempts (last status %d %s)",
			e.OrderID, e.Attempts, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("meteofrance: order %s recovery failed: %d %s", e.OrderID, e.StatusCode, e.Reason)
}

// DecodeError reports a payload that could not be parsed.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// reasonPhrase extracts the reason phrase of a status line such as "404 Not Found".
func reasonPhrase(code int, status string) string {
	reason := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if reason == "" {
		reason = http.StatusText(code)
	}
	return reason
}
