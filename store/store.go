// Package store provides the persisted key-value surface the session manager
// keeps its token pair in. Implementations differ only in durability: Memory
// lives for the process ("remember me" off), File survives restarts, Redis is
// for shared hosts.
//
// The session manager is the only writer. A second process restoring
// concurrently may read while a refresh is being written; implementations
// guarantee reads are never torn, but cross-process coordination (multi-tab
// refresh races) is a documented limitation, not solved here.
package store

import "github.com/pkg/errors"

// Well-known keys used by the session manager.
const (
	KeyAccessToken  = "sitelink.access_token"
	KeyRefreshToken = "sitelink.refresh_token"
	KeyRememberMe   = "sitelink.remember_me"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("key not found")

// TokenStore is a persisted key-value surface.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}
