package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const defaultRequestTimeout = 10 * time.Second

var _ AuthTransport = (*HTTP)(nil)

// HTTP is the production AuthTransport speaking JSON to the SiteLink backend.
type HTTP struct {
	baseURL string
	client  *http.Client
}

type HTTPOption func(*HTTP)

// WithHTTPClient replaces the underlying client (primarily for tests).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = client
	}
}

func NewHTTP(baseURL string, options ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *HTTP) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	if err := h.postJSON(ctx, "/auth/login", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (h *HTTP) VerifyMFA(ctx context.Context, userID, code string) (*AuthSession, error) {
	body := map[string]string{"user_id": userID, "code": code}
	var session AuthSession
	if err := h.postJSON(ctx, "/auth/mfa/verify", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (h *HTTP) Register(ctx context.Context, payload RegisterPayload) (*AuthSession, error) {
	var session AuthSession
	if err := h.postJSON(ctx, "/auth/register", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (h *HTTP) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var tok oauth2.Token
	if err := h.postJSON(ctx, "/auth/refresh", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (h *HTTP) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTP.Me] NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile Profile
	if err := h.do(req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (h *HTTP) RequestPasswordReset(ctx context.Context, email string) error {
	return h.postJSON(ctx, "/auth/password/forgot", map[string]string{"email": email}, nil)
}

func (h *HTTP) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := map[string]string{"token": resetToken, "password": newPassword}
	return h.postJSON(ctx, "/auth/password/reset", body, nil)
}

func (h *HTTP) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return h.postJSON(ctx, "/auth/logout", body, nil)
}

func (h *HTTP) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "[HTTP.postJSON] Marshal %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "[HTTP.postJSON] NewRequest %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, out)
}

// errorBody is the backend's error envelope. Absent fields fall back to
// status-derived defaults.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *HTTP) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		// Caller cancellation is not a transport failure - hand the context
		// error back unwrapped so callers can recognize it.
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Status: resp.StatusCode, Code: CodeServer, Message: "malformed response body"}
		}
	}
	return nil
}

func decodeError(status int, data []byte) *Error {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	if body.Code == "" {
		switch {
		case status == http.StatusUnauthorized:
			body.Code = CodeUnauthorized
		case status >= 500:
			body.Code = CodeServer
		default:
			body.Code = http.StatusText(status)
		}
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	return &Error{Status: status, Code: body.Code, Message: body.Message}
}
