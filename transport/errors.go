package transport

import "fmt"

// Error codes used when the backend response carries none.
const (
	CodeNetwork      = "network_error"
	CodeTimeout      = "timeout"
	CodeUnauthorized = "unauthorized"
	CodeServer       = "server_error"
)

// Error is a typed transport failure carrying an HTTP-status-like code and a
// message fit for user display. Status 0 means the request never produced a
// response (connection refused, DNS failure, timeout).
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("transport: %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether the failure is worth retrying: network-level
// failures, timeouts, and server-side errors. Client errors (4xx) are final.
func (e *Error) Retryable() bool {
	return e.Status == 0 || e.Status >= 500
}

// NewNetworkError wraps a failure that never produced an HTTP response.
func NewNetworkError(message string) *Error {
	return &Error{Status: 0, Code: CodeNetwork, Message: message}
}
