package transportfakes

import (
	"context"
	"sync"

	"github.com/buildworks/sitelink/transport"
	"golang.org/x/oauth2"
)

var _ transport.AuthTransport = (*FakeAuthTransport)(nil)

// FakeAuthTransport is a hand-written AuthTransport test double. Each operation
// is backed by an optional stub func; unset stubs succeed with zero values.
// Call counts are recorded under a mutex so tests can assert on traffic.
type FakeAuthTransport struct {
	LoginStub                func(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error)
	VerifyMFAStub            func(ctx context.Context, userID, code string) (*transport.AuthSession, error)
	RegisterStub             func(ctx context.Context, payload transport.RegisterPayload) (*transport.AuthSession, error)
	RefreshStub              func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	MeStub                   func(ctx context.Context, accessToken string) (*transport.Profile, error)
	RequestPasswordResetStub func(ctx context.Context, email string) error
	ResetPasswordStub        func(ctx context.Context, resetToken, newPassword string) error
	LogoutStub               func(ctx context.Context, refreshToken string) error

	lock                      sync.Mutex
	loginCalls                int
	verifyMFACalls            int
	registerCalls             int
	refreshCalls              int
	meCalls                   int
	requestPasswordResetCalls int
	resetPasswordCalls        int
	logoutCalls               int
}

func NewFakeAuthTransport() *FakeAuthTransport {
	return &FakeAuthTransport{}
}

func (f *FakeAuthTransport) Login(ctx context.Context, creds transport.Credentials) (*transport.LoginResult, error) {
	f.count(&f.loginCalls)
	if f.LoginStub == nil {
		return &transport.LoginResult{}, nil
	}
	return f.LoginStub(ctx, creds)
}

func (f *FakeAuthTransport) VerifyMFA(ctx context.Context, userID, code string) (*transport.AuthSession, error) {
	f.count(&f.verifyMFACalls)
	if f.VerifyMFAStub == nil {
		return &transport.AuthSession{}, nil
	}
	return f.VerifyMFAStub(ctx, userID, code)
}

func (f *FakeAuthTransport) Register(ctx context.Context, payload transport.RegisterPayload) (*transport.AuthSession, error) {
	f.count(&f.registerCalls)
	if f.RegisterStub == nil {
		return &transport.AuthSession{}, nil
	}
	return f.RegisterStub(ctx, payload)
}

func (f *FakeAuthTransport) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.count(&f.refreshCalls)
	if f.RefreshStub == nil {
		return &oauth2.Token{}, nil
	}
	return f.RefreshStub(ctx, refreshToken)
}

func (f *FakeAuthTransport) Me(ctx context.Context, accessToken string) (*transport.Profile, error) {
	f.count(&f.meCalls)
	if f.MeStub == nil {
		return &transport.Profile{}, nil
	}
	return f.MeStub(ctx, accessToken)
}

func (f *FakeAuthTransport) RequestPasswordReset(ctx context.Context, email string) error {
	f.count(&f.requestPasswordResetCalls)
	if f.RequestPasswordResetStub == nil {
		return nil
	}
	return f.RequestPasswordResetStub(ctx, email)
}

func (f *FakeAuthTransport) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	f.count(&f.resetPasswordCalls)
	if f.ResetPasswordStub == nil {
		return nil
	}
	return f.ResetPasswordStub(ctx, resetToken, newPassword)
}

func (f *FakeAuthTransport) Logout(ctx context.Context, refreshToken string) error {
	f.count(&f.logoutCalls)
	if f.LogoutStub == nil {
		return nil
	}
	return f.LogoutStub(ctx, refreshToken)
}

func (f *FakeAuthTransport) LoginCallCount() int     { return f.read(&f.loginCalls) }
func (f *FakeAuthTransport) VerifyMFACallCount() int { return f.read(&f.verifyMFACalls) }
func (f *FakeAuthTransport) RegisterCallCount() int  { return f.read(&f.registerCalls) }
func (f *FakeAuthTransport) RefreshCallCount() int   { return f.read(&f.refreshCalls) }
func (f *FakeAuthTransport) MeCallCount() int        { return f.read(&f.meCalls) }
func (f *FakeAuthTransport) LogoutCallCount() int    { return f.read(&f.logoutCalls) }

func (f *FakeAuthTransport) RequestPasswordResetCallCount() int {
	return f.read(&f.requestPasswordResetCalls)
}

func (f *FakeAuthTransport) ResetPasswordCallCount() int {
	return f.read(&f.resetPasswordCalls)
}

func (f *FakeAuthTransport) count(counter *int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	*counter++
}

func (f *FakeAuthTransport) read(counter *int) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return *counter
}
