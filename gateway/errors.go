package gateway

import "github.com/pkg/errors"

// ErrBackendUnavailable is returned only when the remote backend cannot be
// reached and the deployment disallows the local fallback. Deployments with
// fallback enabled never see it: they get mock-tagged data instead.
var ErrBackendUnavailable = errors.New("backend unavailable")

// errBreakerOpen short-circuits a remote attempt without a network call. It
// never escapes the gateway: it either turns into fallback data or into
// ErrBackendUnavailable.
var errBreakerOpen = errors.New("circuit breaker open")
