package tenants

// Tenant represents the company account a session belongs to. Feature flags and
// plan limits are consumed as-is from the backend; this client never computes
// them locally.
type Tenant struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Plan           string   `json:"plan"`          // e.g. "starter", "pro", "enterprise"
	SeatLimit      int      `json:"seat_limit"`    // Max active users on the plan
	Features       []string `json:"features"`      // Enabled feature flags
	BillingEmail   string   `json:"billing_email"` // Invoices are sent here
	TrialExpiresAt int64    `json:"trial_expires_at,omitempty"` // Unix seconds, zero when not trialing
}

// HasFeature reports whether a feature flag is enabled for the tenant.
func (t *Tenant) HasFeature(flag string) bool {
	for _, f := range t.Features {
		if f == flag {
			return true
		}
	}
	return false
}
