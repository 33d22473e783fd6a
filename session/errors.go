package session

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnknownChallenge = errors.New("unknown mfa challenge")
	ErrSessionExpired   = errors.New("session token already expired")
)

// ValidationError is a local input failure. It is never sent to the transport.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// LockoutError rejects a login attempt without contacting the transport
// because the identifier accumulated too many recent failures.
type LockoutError struct {
	Identifier string
	Window     time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed attempts for %s, retry after the %s window", e.Identifier, e.Window)
}
