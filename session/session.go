// Package session owns the authentication lifecycle of the client: token pair
// custody, proactive refresh, lockout, MFA hand-off, and the listener fan-out
// the UI observes. Exactly one Manager exists per running client; it is the
// only writer of the Session value.
package session

import (
	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/token"
	"github.com/buildworks/sitelink/users"
)

// Status is the lifecycle state of the session.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
	StatusMFAPending      Status = "mfa_pending"
)

// Session is the consistent view handed to listeners and callers. Values are
// always copies; mutating a returned Session has no effect on the manager.
type Session struct {
	Status          Status
	IsAuthenticated bool
	AccessToken     token.Token
	RefreshToken    string
	User            *users.User
	Tenant          *tenants.Tenant
	Loading         bool
	LastError       string
}

// clone deep-copies the pointer fields so callers can never reach back into
// manager-owned state.
func (s Session) clone() Session {
	out := s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.Tenant != nil {
		tenant := *s.Tenant
		out.Tenant = &tenant
	}
	return out
}
