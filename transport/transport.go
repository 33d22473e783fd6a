// Package transport defines the network contract the session manager depends
// on. One method per backend operation - no generic dispatch. The HTTP
// implementation lives in this package; tests use the hand-written fake in
// transportfakes.
package transport

import (
	"context"

	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/users"
	"golang.org/x/oauth2"
)

// Credentials are the raw login inputs. Validation happens before the
// transport is ever reached.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterPayload creates a new company account with its principal admin.
type RegisterPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
}

// AuthSession is a full authenticated result: the token pair plus the profile
// needed to populate the session.
type AuthSession struct {
	Token  *oauth2.Token   `json:"token"`
	User   *users.User     `json:"user"`
	Tenant *tenants.Tenant `json:"tenant"`
}

// LoginResult is either a complete session or a pending MFA challenge. When
// MFARequired is set, Session is nil and UserID identifies the challenge.
type LoginResult struct {
	MFARequired bool         `json:"mfa_required"`
	UserID      string       `json:"user_id,omitempty"`
	Session     *AuthSession `json:"session,omitempty"`
}

// Profile is the response of Me: who the token belongs to.
type Profile struct {
	User   *users.User     `json:"user"`
	Tenant *tenants.Tenant `json:"tenant"`
}

// AuthTransport is the set of network calls the session manager performs.
// Implementations return *Error for any failure that reached (or failed to
// reach) the backend.
type AuthTransport interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	VerifyMFA(ctx context.Context, userID, code string) (*AuthSession, error)
	Register(ctx context.Context, payload RegisterPayload) (*AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Me(ctx context.Context, accessToken string) (*Profile, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	Logout(ctx context.Context, refreshToken string) error
}
