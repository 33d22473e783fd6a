package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/buildworks/sitelink/store"
	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/token"
	"github.com/buildworks/sitelink/transport"
	"github.com/buildworks/sitelink/users"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultRefreshLead        = time.Minute
	defaultLockoutMaxAttempts = 5
	defaultLockoutWindow      = 15 * time.Minute
	logoutRevokeTimeout       = 5 * time.Second
)

// Listener receives session snapshots: once synchronously on subscribe and on
// every subsequent state change.
type Listener func(Session)

// LoginOutcome is the result of a Login call. When MFAPending is set the
// session is not yet authenticated and the caller must complete VerifyMFA with
// the correlation id.
type LoginOutcome struct {
	MFAPending    bool
	CorrelationID string
}

// Manager owns the authenticated/unauthenticated state machine. It is safe
// for concurrent use; all mutation of the Session value happens under one lock
// and listeners only ever observe copies.
type Manager struct {
	transport   transport.AuthTransport
	store       store.TokenStore
	lockout     LockoutTracker
	scheduler   *refreshScheduler
	refreshLead time.Duration
	nowFunc     func() time.Time

	lock         sync.Mutex
	session      Session
	pendingMFA   map[string]string // correlation id -> backend user id
	listeners    map[int]Listener
	nextListener int
}

type ManagerOption func(*Manager)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithRefreshLead sets how early before expiry the proactive refresh fires.
func WithRefreshLead(lead time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshLead = lead
	}
}

// WithLockoutTracker replaces the default in-memory tracker.
func WithLockoutTracker(tracker LockoutTracker) ManagerOption {
	return func(m *Manager) {
		m.lockout = tracker
	}
}

// NewManager initializes a session manager with its collaborators. The zero
// session starts in Initializing until Restore settles it.
func NewManager(authTransport transport.AuthTransport, tokenStore store.TokenStore, options ...ManagerOption) (*Manager, error) {
	if authTransport == nil {
		return nil, errors.New("[NewManager] transport is required")
	}
	if tokenStore == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		transport:   authTransport,
		store:       tokenStore,
		scheduler:   newRefreshScheduler(),
		refreshLead: defaultRefreshLead,
		nowFunc:     time.Now,
		session:     Session{Status: StatusInitializing, Loading: true},
		pendingMFA:  make(map[string]string),
		listeners:   make(map[int]Listener),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.lockout == nil {
		m.lockout = NewMemoryLockout(defaultLockoutMaxAttempts, defaultLockoutWindow, WithLockoutNowFunc(m.nowFunc))
	}

	return m, nil
}

// Current returns a copy of the session state.
func (m *Manager) Current() Session {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.session.clone()
}

// Subscribe registers a listener, delivers the current state synchronously,
// and returns an unsubscribe func.
func (m *Manager) Subscribe(listener Listener) func() {
	m.lock.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener
	snapshot := m.session.clone()
	m.lock.Unlock()

	listener(snapshot)

	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

// Restore re-establishes a session from persisted tokens at startup. It never
// returns an error: every failure path settles into Unauthenticated with
// storage cleared. An expired access token gets exactly one refresh attempt
// before giving up.
func (m *Manager) Restore(ctx context.Context) Session {
	m.mutate(func(s *Session) {
		s.Status = StatusInitializing
		s.Loading = true
	})

	accessRaw, errAccess := m.store.Get(store.KeyAccessToken)
	refreshRaw, errRefresh := m.store.Get(store.KeyRefreshToken)
	if errAccess != nil && errRefresh != nil {
		return m.settleUnauthenticated("")
	}

	access := token.Decode(accessRaw)
	if !access.Expired(m.nowFunc()) {
		if profile, err := m.transport.Me(ctx, access.Raw); err == nil {
			return m.finalizeProfile(access, refreshRaw, profile)
		}
		// Token rejected despite an unexpired exp claim - fall through to the
		// refresh attempt below.
	}

	if refreshRaw == "" {
		m.clearStorage()
		return m.settleUnauthenticated("")
	}

	refreshed, err := m.transport.Refresh(ctx, refreshRaw)
	if err != nil {
		log.Info().Err(err).Msg("session: restore refresh failed, clearing stored tokens")
		m.clearStorage()
		return m.settleUnauthenticated("")
	}

	newAccess := token.Decode(refreshed.AccessToken)
	newRefresh := refreshed.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshRaw
	}

	profile, err := m.transport.Me(ctx, newAccess.Raw)
	if err != nil {
		log.Info().Err(err).Msg("session: restore me failed after refresh, clearing stored tokens")
		m.clearStorage()
		return m.settleUnauthenticated("")
	}

	return m.finalizeProfile(newAccess, newRefresh, profile)
}

// Login authenticates with credentials. Input validation and the lockout check
// run before any network call. On MFA-required accounts the returned outcome
// carries a correlation id and the session moves to MFAPending.
func (m *Manager) Login(ctx context.Context, creds transport.Credentials) (*LoginOutcome, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	identifier := normalizeIdentifier(creds.Email)
	if m.lockout.Locked(identifier) {
		return nil, &LockoutError{Identifier: identifier, Window: defaultLockoutWindow}
	}

	result, err := m.transport.Login(ctx, creds)
	if err != nil {
		m.lockout.RecordFailure(identifier)
		m.recordError(err)
		return nil, errors.Wrap(err, "[Manager.Login] transport.Login")
	}

	m.lockout.Clear(identifier)

	// The remember marker outlives the tokens: startup uses it to decide
	// whether persisted tokens should survive into the next run.
	if err := m.store.Set(store.KeyRememberMe, strconv.FormatBool(creds.RememberMe)); err != nil {
		log.Warn().Err(err).Msg("session: persisting remember flag failed")
	}

	if result.MFARequired {
		correlationID := uuid.New().String()
		m.mutate(func(s *Session) {
			s.Status = StatusMFAPending
			s.Loading = false
			s.LastError = ""
		})
		m.lock.Lock()
		m.pendingMFA[correlationID] = result.UserID
		m.lock.Unlock()
		return &LoginOutcome{MFAPending: true, CorrelationID: correlationID}, nil
	}

	if err := m.finalize(result.Session); err != nil {
		return nil, errors.Wrap(err, "[Manager.Login] finalize")
	}
	return &LoginOutcome{}, nil
}

// VerifyMFA exchanges a one-time code for a full session, using the
// correlation id returned by Login.
func (m *Manager) VerifyMFA(ctx context.Context, correlationID, code string) error {
	m.lock.Lock()
	userID, ok := m.pendingMFA[correlationID]
	m.lock.Unlock()
	if !ok {
		return ErrUnknownChallenge
	}

	authSession, err := m.transport.VerifyMFA(ctx, userID, code)
	if err != nil {
		m.recordError(err)
		return errors.Wrap(err, "[Manager.VerifyMFA] transport.VerifyMFA")
	}

	m.lock.Lock()
	delete(m.pendingMFA, correlationID)
	m.lock.Unlock()

	if err := m.finalize(authSession); err != nil {
		return errors.Wrap(err, "[Manager.VerifyMFA] finalize")
	}
	return nil
}

// Register creates a company account and finalizes the returned session.
func (m *Manager) Register(ctx context.Context, payload transport.RegisterPayload) error {
	if err := ValidateRegisterPayload(payload); err != nil {
		return err
	}

	authSession, err := m.transport.Register(ctx, payload)
	if err != nil {
		m.recordError(err)
		return errors.Wrap(err, "[Manager.Register] transport.Register")
	}

	if err := m.finalize(authSession); err != nil {
		return errors.Wrap(err, "[Manager.Register] finalize")
	}
	return nil
}

// Logout resets the session unconditionally: the server-side revoke is
// best-effort and never blocks or fails the local logout.
func (m *Manager) Logout() {
	m.lock.Lock()
	refresh := m.session.RefreshToken
	m.lock.Unlock()

	if refresh != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), logoutRevokeTimeout)
			defer cancel()
			if err := m.transport.Logout(ctx, refresh); err != nil {
				log.Debug().Err(err).Msg("session: server-side revoke failed")
			}
		}()
	}

	m.forceLogout("")
}

// Close stops the proactive refresh timer without touching stored tokens, so
// the session survives a process restart. Use Logout to end the session.
func (m *Manager) Close() {
	m.scheduler.Cancel()
}

// RequestPasswordReset is a stateless pass-through; it does not mutate the
// session.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return m.transport.RequestPasswordReset(ctx, email)
}

// ResetPassword is a stateless pass-through; it does not mutate the session.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return &ValidationError{Field: "password", Message: err.Error()}
	}
	return m.transport.ResetPassword(ctx, resetToken, newPassword)
}

// HasPermission checks the current user's role against the static permission
// table. Unauthenticated sessions hold no permissions.
func (m *Manager) HasPermission(permission users.Permission) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.session.IsAuthenticated || m.session.User == nil {
		return false
	}
	return m.session.User.HasPermission(permission)
}

// RefreshPending reports whether a proactive refresh timer is armed. At most
// one can be outstanding at any time.
func (m *Manager) RefreshPending() bool {
	return m.scheduler.Pending()
}

// AccessToken returns the current bearer credential, empty when
// unauthenticated. Used by the gateway to decorate remote requests.
func (m *Manager) AccessToken() string {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.session.IsAuthenticated {
		return ""
	}
	return m.session.AccessToken.Raw
}

// finalize is the shared tail of every successful authentication path:
// persist the pair, publish the authenticated state, and arm the proactive
// refresh. A token that is already within the refresh lead of expiry (or past
// it) forces logout instead of arming a hot timer.
func (m *Manager) finalize(authSession *transport.AuthSession) error {
	if authSession == nil || authSession.Token == nil {
		m.forceLogout("login succeeded but returned no token")
		return errors.New("[Manager.finalize] missing token in auth session")
	}

	access := token.Decode(authSession.Token.AccessToken)
	return m.finalizeTokens(access, authSession.Token.RefreshToken, authSession.User, authSession.Tenant)
}

func (m *Manager) finalizeProfile(access token.Token, refresh string, profile *transport.Profile) Session {
	if err := m.finalizeTokens(access, refresh, profile.User, profile.Tenant); err != nil {
		return m.Current()
	}
	return m.Current()
}

func (m *Manager) finalizeTokens(access token.Token, refresh string, user *users.User, tenant *tenants.Tenant) error {
	now := m.nowFunc()
	delay := access.TimeToExpiry(now) - m.refreshLead
	if delay <= 0 {
		// An effectively expired token must not arm a timer for "now": that
		// would spin a hot refresh loop. Fail safe into logout.
		m.forceLogout("session expired")
		return ErrSessionExpired
	}

	if err := m.store.Set(store.KeyAccessToken, access.Raw); err != nil {
		log.Warn().Err(err).Msg("session: persisting access token failed")
	}
	if refresh != "" {
		if err := m.store.Set(store.KeyRefreshToken, refresh); err != nil {
			log.Warn().Err(err).Msg("session: persisting refresh token failed")
		}
	}

	m.mutate(func(s *Session) {
		s.Status = StatusAuthenticated
		s.IsAuthenticated = true
		s.AccessToken = access
		s.RefreshToken = refresh
		s.User = user
		s.Tenant = tenant
		s.Loading = false
		s.LastError = ""
	})

	m.scheduler.Arm(delay, m.refreshNow)
	return nil
}

// refreshNow runs when the proactive timer fires. No caller is awaiting it:
// success re-arms the schedule, failure forces a full logout rather than
// running on towards an expired token.
func (m *Manager) refreshNow() {
	refresh, err := m.store.Get(store.KeyRefreshToken)
	if err != nil || refresh == "" {
		log.Warn().Msg("session: refresh fired with no stored refresh token")
		m.forceLogout("session expired")
		return
	}

	refreshed, err := m.transport.Refresh(context.Background(), refresh)
	if err != nil {
		log.Warn().Err(err).Msg("session: scheduled refresh failed, logging out")
		m.forceLogout("session expired")
		return
	}

	newRefresh := refreshed.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}

	m.lock.Lock()
	user := m.session.User
	tenant := m.session.Tenant
	m.lock.Unlock()

	if err := m.finalizeTokens(token.Decode(refreshed.AccessToken), newRefresh, user, tenant); err != nil {
		log.Warn().Err(err).Msg("session: refreshed token unusable, logged out")
	}
}

// forceLogout clears persisted tokens, cancels any pending refresh, and resets
// the session to Unauthenticated. lastError is set when reason is non-empty.
func (m *Manager) forceLogout(reason string) {
	m.scheduler.Cancel()
	m.clearStorage()

	m.lock.Lock()
	m.pendingMFA = make(map[string]string)
	m.lock.Unlock()

	m.settleUnauthenticated(reason)
}

func (m *Manager) settleUnauthenticated(reason string) Session {
	m.mutate(func(s *Session) {
		*s = Session{Status: StatusUnauthenticated, LastError: reason}
	})
	return m.Current()
}

func (m *Manager) clearStorage() {
	if err := m.store.Remove(store.KeyAccessToken); err != nil {
		log.Debug().Err(err).Msg("session: removing access token failed")
	}
	if err := m.store.Remove(store.KeyRefreshToken); err != nil {
		log.Debug().Err(err).Msg("session: removing refresh token failed")
	}
	if err := m.store.Remove(store.KeyRememberMe); err != nil {
		log.Debug().Err(err).Msg("session: removing remember flag failed")
	}
}

func (m *Manager) recordError(err error) {
	m.mutate(func(s *Session) {
		s.Loading = false
		s.LastError = err.Error()
	})
}

// mutate applies fn under the lock and notifies listeners outside it.
func (m *Manager) mutate(fn func(*Session)) {
	m.lock.Lock()
	fn(&m.session)
	snapshot := m.session.clone()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lock.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
