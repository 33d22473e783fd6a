// Package gateway decides, per data fetch, whether to use the remote backend
// or the local fallback provider, and tracks reachability as it goes. One
// gateway exists per running client; its connection state fans out to any
// number of subscribers.
package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/buildworks/sitelink/internal/retry"
	"github.com/buildworks/sitelink/localdata"
	"github.com/buildworks/sitelink/snapshot"
	"github.com/buildworks/sitelink/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultSnapshotTimeout   = 10 * time.Second
	defaultBreakerThreshold  = 3
	defaultBreakerOpenWindow = 15 * time.Second
	snapshotPath             = "/app/dashboard/snapshot"
	healthPath               = "/health"
)

// Listener receives state snapshots: once synchronously on subscribe and on
// every subsequent state change.
type Listener func(State)

// TokenSource supplies the bearer credential attached to remote requests.
// Empty means anonymous.
type TokenSource func() string

// Manager is the connection gateway. All state mutation is sequenced through
// one lock; callers and timers observe consistent breaker bookkeeping.
type Manager struct {
	local         localdata.Provider
	httpClient    *http.Client
	tokenSource   TokenSource
	allowFallback bool
	timeout       time.Duration
	retryPolicy   retry.Policy
	nowFunc       func() time.Time

	lock         sync.Mutex
	state        State
	breaker      circuitBreaker
	listeners    map[int]Listener
	nextListener int
}

type Option func(*Manager)

// WithBackend configures backend mode against baseURL. Without it the gateway
// runs in mock mode and never touches the network.
func WithBackend(baseURL string) Option {
	return func(m *Manager) {
		m.state.Mode = ModeBackend
		m.state.BaseURL = baseURL
	}
}

// WithFallbackDisallowed makes remote failures surface as
// ErrBackendUnavailable instead of falling back to local data.
func WithFallbackDisallowed() Option {
	return func(m *Manager) {
		m.allowFallback = false
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(m *Manager) {
		m.tokenSource = source
	}
}

func WithSnapshotTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(m *Manager) {
		m.retryPolicy = p
	}
}

func WithBreakerTuning(threshold int, openWindow time.Duration) Option {
	return func(m *Manager) {
		m.breaker.threshold = threshold
		m.breaker.openWindow = openWindow
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// New builds a gateway around the injected local provider. The provider is
// required even in backend mode unless fallback is disallowed.
func New(local localdata.Provider, options ...Option) (*Manager, error) {
	m := &Manager{
		local:         local,
		httpClient:    &http.Client{},
		allowFallback: true,
		timeout:       defaultSnapshotTimeout,
		retryPolicy:   retry.DefaultPolicy(),
		nowFunc:       time.Now,
		state:         State{Mode: ModeMock, Online: true},
		breaker:       circuitBreaker{threshold: defaultBreakerThreshold, openWindow: defaultBreakerOpenWindow},
		listeners:     make(map[int]Listener),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.local == nil && m.allowFallback {
		return nil, errors.New("[gateway.New] local provider is required when fallback is allowed")
	}
	if m.state.Mode == ModeMock && m.local == nil {
		return nil, errors.New("[gateway.New] local provider is required in mock mode")
	}

	return m, nil
}

// CurrentState returns a copy of the connection state.
func (m *Manager) CurrentState() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Subscribe registers a listener, delivers the current state synchronously,
// and returns an unsubscribe func.
func (m *Manager) Subscribe(listener Listener) func() {
	m.lock.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener
	current := m.state
	m.lock.Unlock()

	listener(current)

	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

// SetOnline ingests the platform's online/offline signal, independent of any
// in-flight request.
func (m *Manager) SetOnline(online bool) {
	m.mutate(func(s *State) {
		s.Online = online
	})
}

// AddPendingMutation records one queued offline write.
func (m *Manager) AddPendingMutation() {
	m.mutate(func(s *State) {
		s.PendingMutations++
	})
}

// FlushPendingMutations clears the queued-write counter after a sync.
func (m *Manager) FlushPendingMutations() {
	m.mutate(func(s *State) {
		s.PendingMutations = 0
	})
}

// FetchSnapshot returns the dashboard snapshot, remote-first. Remote attempts
// are guarded by the circuit breaker, bounded by the retry policy, and every
// failure falls back to the local provider unless fallback is disallowed.
// Caller cancellation propagates immediately without touching breaker or
// online bookkeeping.
func (m *Manager) FetchSnapshot(ctx context.Context, params localdata.Params) (*snapshot.Snapshot, error) {
	mode, baseURL, online := m.remoteEligibility()

	usedFallback := false
	if mode == ModeBackend {
		if baseURL != "" && online {
			snap, err := m.fetchRemote(ctx, baseURL, params)
			if err == nil {
				m.mutate(func(s *State) {
					s.Online = true
					s.LastSync = m.nowFunc()
				})
				return snap, nil
			}
			if ctx.Err() != nil {
				// Aborted by the caller: not evidence of backend failure.
				return nil, err
			}
		}
		if !m.allowFallback {
			return nil, ErrBackendUnavailable
		}
		usedFallback = true
	}

	snap, err := m.local.Snapshot(ctx, params)
	if err != nil {
		// Last line of defense: the local provider is assumed infallible, so
		// its errors propagate unmodified.
		return nil, err
	}
	snap.Source = snapshot.SourceMock
	snap.UsedFallback = usedFallback

	m.mutate(func(s *State) {
		s.LastSync = m.nowFunc()
	})
	return snap, nil
}

// Watch probes the backend health endpoint on an interval and flips the
// online flag to match, standing in for an OS-level connectivity signal. It
// blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reachable := m.probe(ctx)
			if m.CurrentState().Online != reachable {
				log.Info().Bool("online", reachable).Msg("gateway: connectivity changed")
			}
			m.SetOnline(reachable)
		}
	}
}

func (m *Manager) probe(ctx context.Context) bool {
	m.lock.Lock()
	baseURL := m.state.BaseURL
	m.lock.Unlock()
	if baseURL == "" {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (m *Manager) remoteEligibility() (Mode, string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state.Mode, m.state.BaseURL, m.state.Online
}

// fetchRemote runs the breaker-guarded, retried remote call. Any returned
// error other than caller cancellation has already been recorded as a breaker
// failure.
func (m *Manager) fetchRemote(ctx context.Context, baseURL string, params localdata.Params) (*snapshot.Snapshot, error) {
	m.lock.Lock()
	if m.breaker.open(m.nowFunc()) {
		m.lock.Unlock()
		return nil, errBreakerOpen
	}
	m.lock.Unlock()

	var snap *snapshot.Snapshot
	err := retry.Do(ctx, m.retryPolicy, func(ctx context.Context) error {
		var attemptErr error
		snap, attemptErr = m.fetchOnce(ctx, baseURL, params)
		return attemptErr
	}, retryableRemote)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.mutate(func(s *State) {
			m.breaker.recordFailure(m.nowFunc())
			s.Online = false
		})
		log.Warn().Err(err).Int("failures", m.failureCount()).Msg("gateway: remote snapshot fetch failed")
		return nil, err
	}

	m.lock.Lock()
	m.breaker.reset()
	m.lock.Unlock()
	return snap, nil
}

func (m *Manager) fetchOnce(ctx context.Context, baseURL string, params localdata.Params) (*snapshot.Snapshot, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("userId", params.UserID)
	query.Set("companyId", params.CompanyID)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, baseURL+snapshotPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "[gateway.fetchOnce] NewRequest")
	}
	if m.tokenSource != nil {
		if bearer := m.tokenSource(); bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code := transport.CodeNetwork
		if attemptCtx.Err() == context.DeadlineExceeded {
			code = transport.CodeTimeout
		}
		return nil, &transport.Error{Status: 0, Code: code, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Status: 0, Code: transport.CodeNetwork, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &transport.Error{Status: resp.StatusCode, Code: transport.CodeServer, Message: http.StatusText(resp.StatusCode)}
	}

	snap, err := snapshot.Normalize(body, m.nowFunc())
	if err != nil {
		// A body that is not even a JSON object reads as a server fault.
		return nil, &transport.Error{Status: resp.StatusCode, Code: transport.CodeServer, Message: "malformed snapshot body"}
	}
	return snap, nil
}

// retryableRemote is the shared predicate: network faults, timeouts, and 5xx
// retry; validation-type failures do not.
func retryableRemote(err error) bool {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return terr.Retryable()
	}
	return false
}

func (m *Manager) failureCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.breaker.failureCount
}

// mutate applies fn under the lock and notifies listeners outside it.
func (m *Manager) mutate(fn func(*State)) {
	m.lock.Lock()
	fn(&m.state)
	current := m.state
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lock.Unlock()

	for _, l := range listeners {
		l(current)
	}
}
