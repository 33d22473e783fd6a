package config

import (
	"strconv"
	"time"
)

type GatewayConfig interface {
	GetBackendBaseURL() string
	GetBackendMode() bool
	GetAllowFallback() bool
	GetSnapshotTimeout() time.Duration
	GetBreakerThreshold() int
	GetBreakerOpenWindow() time.Duration
	GetProbeInterval() time.Duration
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetBackendBaseURL returns the remote backend root, empty when unconfigured.
func (Gateway) GetBackendBaseURL() string {
	return GetEnv("BACKEND_BASE_URL", "")
}

// GetBackendMode reports whether the client should try the backend at all.
// Defaults to true whenever a base URL is configured.
func (g Gateway) GetBackendMode() bool {
	if v := GetEnv("BACKEND_MODE", ""); v != "" {
		mode, err := strconv.ParseBool(v)
		return err == nil && mode
	}
	return g.GetBackendBaseURL() != ""
}

func (Gateway) GetAllowFallback() bool {
	v, err := strconv.ParseBool(GetEnv("ALLOW_MOCK_FALLBACK", "true"))
	return err != nil || v
}

func (Gateway) GetSnapshotTimeout() time.Duration {
	return getDuration("SNAPSHOT_TIMEOUT", 10*time.Second)
}

func (Gateway) GetBreakerThreshold() int {
	return getInt("BREAKER_THRESHOLD", 3)
}

func (Gateway) GetBreakerOpenWindow() time.Duration {
	return getDuration("BREAKER_OPEN_WINDOW", 15*time.Second)
}

// GetProbeInterval controls the online health probe; zero disables it.
func (Gateway) GetProbeInterval() time.Duration {
	return getDuration("PROBE_INTERVAL", 30*time.Second)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	v := GetEnv(envVar, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(envVar string, defaultValue int) int {
	v := GetEnv(envVar, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
