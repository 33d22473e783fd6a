package server

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// tokenMinter issues the HS256 token pairs the dev backend hands out. Access
// tokens carry sub and exp; refresh tokens are opaque but still JWTs so they
// can be validated and rotated.
type tokenMinter struct {
	signingKey []byte
}

func newTokenMinter(signingKey []byte) *tokenMinter {
	return &tokenMinter{signingKey: signingKey}
}

func (m *tokenMinter) issuePair(userID string) (*oauth2.Token, error) {
	now := time.Now().UTC()

	access, err := m.sign(jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(accessTokenTTL).Unix(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[tokenMinter.issuePair] access")
	}

	refresh, err := m.sign(jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(refreshTokenTTL).Unix(),
		"use": "refresh",
	})
	if err != nil {
		return nil, errors.Wrap(err, "[tokenMinter.issuePair] refresh")
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       now.Add(accessTokenTTL),
	}, nil
}

func (m *tokenMinter) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
}

// subject validates a token and returns its sub claim.
func (m *tokenMinter) subject(raw string) (string, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return m.signingKey, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "[tokenMinter.subject] Parse")
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("[tokenMinter.subject] missing sub claim")
	}
	return sub, nil
}
