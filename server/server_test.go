package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buildworks/sitelink/internal/config"
	"github.com/buildworks/sitelink/server"
	"github.com/buildworks/sitelink/snapshot"
	"github.com/buildworks/sitelink/transport"
	"github.com/buildworks/sitelink/users"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	srv       *httptest.Server
	transport *transport.HTTP
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	handler, err := server.New(config.New(), []byte("test-signing-key"))
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testFixture{srv: srv, transport: transport.NewHTTP(srv.URL)}
}

func TestLoginWithSeededAccount(t *testing.T) {
	f := newTestFixture(t)

	result, err := f.transport.Login(context.Background(), transport.Credentials{
		Email:    "owner@demo.example",
		Password: "Owner123!",
	})
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.NotNil(t, result.Session)
	require.Equal(t, users.RolePrincipalAdmin, result.Session.User.Role)
	require.NotEmpty(t, result.Session.Token.AccessToken)
	require.NotEmpty(t, result.Session.Token.RefreshToken)
	require.NotNil(t, result.Session.Tenant)
	require.Equal(t, "demo-construction", result.Session.Tenant.ID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newTestFixture(t)

	_, err := f.transport.Login(context.Background(), transport.Credentials{
		Email:    "owner@demo.example",
		Password: "wrong-password",
	})
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusUnauthorized, terr.Status)
	require.Equal(t, transport.CodeUnauthorized, terr.Code)
}

func TestMFARoundTrip(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	result, err := f.transport.Login(ctx, transport.Credentials{
		Email:    "foreman@demo.example",
		Password: "Foreman123!",
	})
	require.NoError(t, err)
	require.True(t, result.MFARequired)
	require.Nil(t, result.Session)
	require.NotEmpty(t, result.UserID)

	_, err = f.transport.VerifyMFA(ctx, result.UserID, "999999")
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusUnauthorized, terr.Status)

	session, err := f.transport.VerifyMFA(ctx, result.UserID, "246810")
	require.NoError(t, err)
	require.Equal(t, "foreman@demo.example", session.User.Email)

	// Challenges are single-use even after a failed attempt consumed nothing.
	_, err = f.transport.VerifyMFA(ctx, result.UserID, "246810")
	require.Error(t, err)
}

func TestRegisterThenMe(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	session, err := f.transport.Register(ctx, transport.RegisterPayload{
		Email:       "new@acme.example",
		Password:    "Str0ngEnough",
		FirstName:   "Ada",
		LastName:    "Builder",
		CompanyName: "Acme Earthworks",
	})
	require.NoError(t, err)
	require.Equal(t, users.RolePrincipalAdmin, session.User.Role)
	require.Equal(t, "acme-earthworks", session.Tenant.ID)

	profile, err := f.transport.Me(ctx, session.Token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, profile.User.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newTestFixture(t)

	_, err := f.transport.Register(context.Background(), transport.RegisterPayload{
		Email:       "owner@demo.example",
		Password:    "Str0ngEnough",
		CompanyName: "Clone Co",
	})
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusConflict, terr.Status)
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	result, err := f.transport.Login(ctx, transport.Credentials{
		Email:    "pm@demo.example",
		Password: "Manager123!",
	})
	require.NoError(t, err)
	oldRefresh := result.Session.Token.RefreshToken

	rotated, err := f.transport.Refresh(ctx, oldRefresh)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, oldRefresh, rotated.RefreshToken)

	_, err = f.transport.Refresh(ctx, oldRefresh)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusUnauthorized, terr.Status)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	result, err := f.transport.Login(ctx, transport.Credentials{
		Email:    "pm@demo.example",
		Password: "Manager123!",
	})
	require.NoError(t, err)

	require.NoError(t, f.transport.Logout(ctx, result.Session.Token.RefreshToken))

	_, err = f.transport.Refresh(ctx, result.Session.Token.RefreshToken)
	require.Error(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	// Forgot never reveals whether the account exists.
	require.NoError(t, f.transport.RequestPasswordReset(ctx, "nobody@demo.example"))
	require.NoError(t, f.transport.RequestPasswordReset(ctx, "pm@demo.example"))

	// A made-up token is rejected.
	err := f.transport.ResetPassword(ctx, "not-a-real-token", "An0therStrong")
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusUnauthorized, terr.Status)
}

func TestSnapshotRequiresAuth(t *testing.T) {
	f := newTestFixture(t)

	resp, err := http.Get(f.srv.URL + "/app/dashboard/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSnapshotNormalizesThroughClientPath(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	result, err := f.transport.Login(ctx, transport.Credentials{
		Email:    "owner@demo.example",
		Password: "Owner123!",
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/app/dashboard/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+result.Session.Token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	snap, err := snapshot.Normalize(body, result.Session.User.DateJoined)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Projects)
	require.NotEmpty(t, snap.Team)
	require.Equal(t, snapshot.SourceBackend, snap.Source)
}

func TestSnapshotForbidsOtherCompanies(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	result, err := f.transport.Login(ctx, transport.Credentials{
		Email:    "owner@demo.example",
		Password: "Owner123!",
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/app/dashboard/snapshot?companyId=someone-else", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+result.Session.Token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
