package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is an opaque bearer credential plus the expiry instant decoded from its
// payload. The signature is never verified client-side - the backend is the
// authority - only the exp claim is read so refresh can be scheduled.
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// unverifiedParser reads claims without signature verification.
var unverifiedParser = jwt.NewParser()

// Decode extracts the exp claim from a bearer token. A token that cannot be
// decoded, or that carries no exp claim, is treated as already expired rather
// than surfaced as an error: the caller's recovery for both cases is identical
// (refresh or log out).
func Decode(raw string) Token {
	t := Token{Raw: raw}
	if raw == "" {
		return t
	}

	parsed, _, err := unverifiedParser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return t
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return t
	}
	t.ExpiresAt = exp.Time
	return t
}

// Expired reports whether the token must not be used for an outgoing request.
// The zero ExpiresAt (undecodable token) always reads as expired.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TimeToExpiry returns the remaining lifetime at now, negative when expired.
func (t Token) TimeToExpiry(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

// IsZero reports whether the token holds no credential at all.
func (t Token) IsZero() bool {
	return t.Raw == ""
}
