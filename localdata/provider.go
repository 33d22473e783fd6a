// Package localdata supplies the dashboard snapshot from a locally generated
// source. It is the gateway's fallback when the backend is unreachable or when
// the client runs in mock mode, and must never depend on network availability.
package localdata

import (
	"context"

	"github.com/buildworks/sitelink/snapshot"
)

// Params scope a snapshot request to a user within a company.
type Params struct {
	UserID    string
	CompanyID string
}

// Provider produces the same snapshot shape as the remote backend.
type Provider interface {
	Snapshot(ctx context.Context, params Params) (*snapshot.Snapshot, error)
}
