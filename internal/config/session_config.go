package config

import "time"

type SessionConfig interface {
	GetAuthBaseURL() string
	GetRefreshLead() time.Duration
	GetLockoutMaxAttempts() int
	GetLockoutWindow() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetAuthBaseURL falls back to the backend base URL when unset.
func (Session) GetAuthBaseURL() string {
	if v := GetEnv("AUTH_BASE_URL", ""); v != "" {
		return v
	}
	return GetEnv("BACKEND_BASE_URL", "")
}

// GetRefreshLead is how early before token expiry the proactive refresh fires.
func (Session) GetRefreshLead() time.Duration {
	return getDuration("REFRESH_LEAD", time.Minute)
}

func (Session) GetLockoutMaxAttempts() int {
	return getInt("LOCKOUT_MAX_ATTEMPTS", 5)
}

func (Session) GetLockoutWindow() time.Duration {
	return getDuration("LOCKOUT_WINDOW", 15*time.Minute)
}
