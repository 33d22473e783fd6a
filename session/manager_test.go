package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/buildworks/sitelink/session"
	"github.com/buildworks/sitelink/store"
	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/transport"
	"github.com/buildworks/sitelink/transport/transportfakes"
	"github.com/buildworks/sitelink/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testEmail    = "pm@acme-build.com"
	testPassword = "Str0ngPassword"
)

// testFixture holds the manager and its collaborators.
type testFixture struct {
	fake    *transportfakes.FakeAuthTransport
	store   *store.Memory
	manager *session.Manager
}

func setupFixture(t *testing.T, options ...session.ManagerOption) *testFixture {
	t.Helper()

	fake := transportfakes.NewFakeAuthTransport()
	tokenStore := store.NewMemory()

	manager, err := session.NewManager(fake, tokenStore, options...)
	require.NoError(t, err)

	return &testFixture{fake: fake, store: tokenStore, manager: manager}
}

func bearerToken(t *testing.T, exp time.Time) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func testAuthSession(t *testing.T, exp time.Time) *transport.AuthSession {
	t.Helper()

	return &transport.AuthSession{
		Token: &oauth2.Token{
			AccessToken:  bearerToken(t, exp),
			RefreshToken: "refresh-1",
		},
		User:   &users.User{ID: "user-1", Email: testEmail, Role: users.RoleProjectManager, CompanyID: "acme"},
		Tenant: &tenants.Tenant{ID: "acme", Name: "Acme Build Co", Plan: "pro"},
	}
}

func TestLoginValidationFailsFast(t *testing.T) {
	f := setupFixture(t)

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: "not-an-email", Password: "pw"})
	var verr *session.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, 0, f.fake.LoginCallCount(), "validation errors must not reach the transport")
}

func TestLoginSuccessFinalizes(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	outcome, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.False(t, outcome.MFAPending)

	current := f.manager.Current()
	require.Equal(t, session.StatusAuthenticated, current.Status)
	require.True(t, current.IsAuthenticated)
	require.Equal(t, testEmail, current.User.Email)
	require.Equal(t, "Acme Build Co", current.Tenant.Name)
	require.Empty(t, current.LastError)

	access, err := f.store.Get(store.KeyAccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	refresh, err := f.store.Get(store.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)

	require.True(t, f.manager.RefreshPending())
}

func TestLoginPersistsRememberFlag(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword, RememberMe: true})
	require.NoError(t, err)

	remembered, err := f.store.Get(store.KeyRememberMe)
	require.NoError(t, err)
	require.Equal(t, "true", remembered)

	f.manager.Logout()
	_, err = f.store.Get(store.KeyRememberMe)
	require.ErrorIs(t, err, store.ErrNotFound, "logout clears the remember flag")
}

func TestLoginFailureRecordsError(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return nil, &transport.Error{Status: 401, Code: "bad_credentials", Message: "email or password incorrect"}
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: "wrong"})
	require.Error(t, err)

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 401, terr.Status)
	require.Contains(t, f.manager.Current().LastError, "email or password incorrect")
}

func TestLockoutRejectsSixthAttempt(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return nil, &transport.Error{Status: 401, Code: "bad_credentials", Message: "nope"}
	}

	creds := transport.Credentials{Email: testEmail, Password: "wrong"}
	for i := 0; i < 5; i++ {
		_, err := f.manager.Login(context.Background(), creds)
		require.Error(t, err)
	}
	require.Equal(t, 5, f.fake.LoginCallCount())

	_, err := f.manager.Login(context.Background(), creds)
	var lerr *session.LockoutError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, 5, f.fake.LoginCallCount(), "locked-out attempt must not reach the transport")
}

func TestLockoutIsCaseInsensitive(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return nil, &transport.Error{Status: 401, Code: "bad_credentials", Message: "nope"}
	}

	for i := 0; i < 5; i++ {
		_, _ = f.manager.Login(context.Background(), transport.Credentials{Email: "PM@Acme-Build.com", Password: "wrong"})
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: "wrong"})
	var lerr *session.LockoutError
	require.ErrorAs(t, err, &lerr)
}

func TestMFAFlow(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{MFARequired: true, UserID: "user-1"}, nil
	}
	f.fake.VerifyMFAStub = func(ctx context.Context, userID, code string) (*transport.AuthSession, error) {
		require.Equal(t, "user-1", userID)
		require.Equal(t, "123456", code)
		return testAuthSession(t, time.Now().Add(time.Hour)), nil
	}

	outcome, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.True(t, outcome.MFAPending)
	require.NotEmpty(t, outcome.CorrelationID)

	current := f.manager.Current()
	require.Equal(t, session.StatusMFAPending, current.Status)
	require.False(t, current.IsAuthenticated)
	require.Nil(t, current.User, "MFA-pending session must not expose a user")

	require.NoError(t, f.manager.VerifyMFA(context.Background(), outcome.CorrelationID, "123456"))
	require.True(t, f.manager.Current().IsAuthenticated)
}

func TestVerifyMFAUnknownCorrelation(t *testing.T) {
	f := setupFixture(t)
	err := f.manager.VerifyMFA(context.Background(), "bogus", "000000")
	require.ErrorIs(t, err, session.ErrUnknownChallenge)
	require.Equal(t, 0, f.fake.VerifyMFACallCount())
}

func TestRegisterFinalizes(t *testing.T) {
	f := setupFixture(t)
	f.fake.RegisterStub = func(ctx context.Context, payload transport.RegisterPayload) (*transport.AuthSession, error) {
		return testAuthSession(t, time.Now().Add(time.Hour)), nil
	}

	err := f.manager.Register(context.Background(), transport.RegisterPayload{
		Email: testEmail, Password: testPassword, FirstName: "Ada", LastName: "Calder", CompanyName: "Acme Build Co",
	})
	require.NoError(t, err)
	require.True(t, f.manager.Current().IsAuthenticated)
	require.True(t, f.manager.RefreshPending())
}

func TestFinalizeWithExpiredTokenForcesLogout(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(-time.Second))}, nil
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.ErrorIs(t, err, session.ErrSessionExpired)

	current := f.manager.Current()
	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.False(t, f.manager.RefreshPending(), "no timer may be armed for an expired token")

	_, storeErr := f.store.Get(store.KeyAccessToken)
	require.ErrorIs(t, storeErr, store.ErrNotFound)
}

func TestDoubleFinalizeLeavesOneTimer(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	creds := transport.Credentials{Email: testEmail, Password: testPassword}
	_, err := f.manager.Login(context.Background(), creds)
	require.NoError(t, err)
	_, err = f.manager.Login(context.Background(), creds)
	require.NoError(t, err)

	require.True(t, f.manager.RefreshPending(), "exactly one timer pending after consecutive finalizes")
	f.manager.Logout()
	require.False(t, f.manager.RefreshPending())
}

func TestScheduledRefreshSuccessReArms(t *testing.T) {
	// The exp claim has whole-second granularity, so the fixture pins the
	// manager's clock to a whole-second base and arms the refresh 10ms out
	// (2s lifetime minus a 1990ms lead).
	base := time.Now().Truncate(time.Second)
	f := setupFixture(t,
		session.WithNowFunc(func() time.Time { return base }),
		session.WithRefreshLead(1990*time.Millisecond),
	)

	firstAccess := bearerToken(t, base.Add(2*time.Second))
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		s := testAuthSession(t, base.Add(time.Hour))
		s.Token.AccessToken = firstAccess
		return &transport.LoginResult{Session: s}, nil
	}
	f.fake.RefreshStub = func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		require.Equal(t, "refresh-1", refreshToken)
		return &oauth2.Token{AccessToken: bearerToken(t, base.Add(time.Hour)), RefreshToken: "refresh-2"}, nil
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.fake.RefreshCallCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		current := f.manager.Current()
		return current.IsAuthenticated && current.AccessToken.Raw != firstAccess
	}, time.Second, 5*time.Millisecond)

	refresh, err := f.store.Get(store.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-2", refresh, "rotated refresh token must be persisted")
	require.True(t, f.manager.RefreshPending(), "successful refresh re-arms the schedule")
}

func TestScheduledRefreshFailureForcesLogout(t *testing.T) {
	base := time.Now().Truncate(time.Second)
	f := setupFixture(t,
		session.WithNowFunc(func() time.Time { return base }),
		session.WithRefreshLead(1990*time.Millisecond),
	)

	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		s := testAuthSession(t, base.Add(time.Hour))
		s.Token.AccessToken = bearerToken(t, base.Add(2*time.Second))
		return &transport.LoginResult{Session: s}, nil
	}
	f.fake.RefreshStub = func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		return nil, &transport.Error{Status: 401, Code: "invalid_refresh", Message: "refresh token revoked"}
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.manager.Current().Status == session.StatusUnauthenticated
	}, time.Second, 5*time.Millisecond)

	_, storeErr := f.store.Get(store.KeyRefreshToken)
	require.ErrorIs(t, storeErr, store.ErrNotFound, "failed refresh clears storage")
	require.False(t, f.manager.RefreshPending())
}

func TestRestoreWithNoTokens(t *testing.T) {
	f := setupFixture(t)

	current := f.manager.Restore(context.Background())
	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.Nil(t, current.User)
	require.Equal(t, 0, f.fake.MeCallCount())
	require.Equal(t, 0, f.fake.RefreshCallCount())
}

func TestRestoreWithValidAccessToken(t *testing.T) {
	f := setupFixture(t)
	valid := bearerToken(t, time.Now().Add(time.Hour))
	require.NoError(t, f.store.Set(store.KeyAccessToken, valid))
	require.NoError(t, f.store.Set(store.KeyRefreshToken, "refresh-1"))

	f.fake.MeStub = func(ctx context.Context, accessToken string) (*transport.Profile, error) {
		require.Equal(t, valid, accessToken)
		return &transport.Profile{
			User:   &users.User{ID: "user-1", Email: testEmail, Role: users.RoleForeman},
			Tenant: &tenants.Tenant{ID: "acme"},
		}, nil
	}

	current := f.manager.Restore(context.Background())
	require.True(t, current.IsAuthenticated)
	require.Equal(t, users.RoleForeman, current.User.Role)
	require.Equal(t, 0, f.fake.RefreshCallCount(), "valid token needs no refresh")
	require.True(t, f.manager.RefreshPending())
}

func TestRestoreWithExpiredTokenRefreshesOnce(t *testing.T) {
	f := setupFixture(t)
	expired := bearerToken(t, time.Now().Add(-time.Minute))
	fresh := bearerToken(t, time.Now().Add(time.Hour))
	require.NoError(t, f.store.Set(store.KeyAccessToken, expired))
	require.NoError(t, f.store.Set(store.KeyRefreshToken, "refresh-1"))

	f.fake.RefreshStub = func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: fresh}, nil
	}
	f.fake.MeStub = func(ctx context.Context, accessToken string) (*transport.Profile, error) {
		require.Equal(t, fresh, accessToken, "expired token must never be sent to me")
		return &transport.Profile{User: &users.User{ID: "user-1"}, Tenant: &tenants.Tenant{ID: "acme"}}, nil
	}

	current := f.manager.Restore(context.Background())
	require.True(t, current.IsAuthenticated)
	require.Equal(t, 1, f.fake.RefreshCallCount(), "exactly one refresh attempt")
	require.Equal(t, 1, f.fake.MeCallCount())
}

func TestRestoreRefreshFailureClearsStorage(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.store.Set(store.KeyAccessToken, bearerToken(t, time.Now().Add(-time.Minute))))
	require.NoError(t, f.store.Set(store.KeyRefreshToken, "refresh-1"))

	f.fake.RefreshStub = func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		return nil, &transport.Error{Status: 401, Code: "invalid_refresh", Message: "revoked"}
	}

	current := f.manager.Restore(context.Background())
	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.Equal(t, 1, f.fake.RefreshCallCount())
	require.Equal(t, 0, f.fake.MeCallCount())

	_, err := f.store.Get(store.KeyAccessToken)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.Get(store.KeyRefreshToken)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogoutThenRestoreRoundTrip(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	f.manager.Logout()
	current := f.manager.Restore(context.Background())

	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.Nil(t, current.User)
	require.False(t, f.manager.RefreshPending())
}

func TestListenersReceiveStateChanges(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	var mu sync.Mutex
	var observed []session.Status
	unsubscribe := f.manager.Subscribe(func(s session.Session) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, s.Status)
	})

	mu.Lock()
	require.Equal(t, []session.Status{session.StatusInitializing}, observed, "subscribe delivers current state synchronously")
	mu.Unlock()

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	mu.Lock()
	require.Equal(t, session.StatusAuthenticated, observed[len(observed)-1])
	count := len(observed)
	mu.Unlock()

	unsubscribe()
	f.manager.Logout()

	mu.Lock()
	require.Len(t, observed, count, "unsubscribed listener receives no further updates")
	mu.Unlock()
}

func TestListenerSnapshotsAreCopies(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	snapshot := f.manager.Current()
	snapshot.User.Email = "tampered@evil.com"
	require.Equal(t, testEmail, f.manager.Current().User.Email)
}

func TestHasPermission(t *testing.T) {
	f := setupFixture(t)
	require.False(t, f.manager.HasPermission(users.PermProjectsView), "unauthenticated session holds no permissions")

	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return &transport.LoginResult{Session: testAuthSession(t, time.Now().Add(time.Hour))}, nil
	}
	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	require.True(t, f.manager.HasPermission(users.PermInvoicesManage))
	require.False(t, f.manager.HasPermission(users.PermBillingManage))
}

func TestPasswordResetPassThroughs(t *testing.T) {
	f := setupFixture(t)

	require.NoError(t, f.manager.RequestPasswordReset(context.Background(), testEmail))
	require.Equal(t, 1, f.fake.RequestPasswordResetCallCount())

	var verr *session.ValidationError
	require.ErrorAs(t, f.manager.RequestPasswordReset(context.Background(), "bad"), &verr)

	require.NoError(t, f.manager.ResetPassword(context.Background(), "reset-token", "NewStr0ngPass"))
	require.Equal(t, 1, f.fake.ResetPasswordCallCount())

	before := f.manager.Current()
	require.Equal(t, before.Status, f.manager.Current().Status, "pass-throughs do not mutate the session")
}

func TestTransportErrorsWrapTyped(t *testing.T) {
	f := setupFixture(t)
	f.fake.LoginStub = func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
		return nil, &transport.Error{Status: 503, Code: transport.CodeServer, Message: "upstream down"}
	}

	_, err := f.manager.Login(context.Background(), transport.Credentials{Email: testEmail, Password: testPassword})
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	require.True(t, terr.Retryable())
}
