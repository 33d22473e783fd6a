package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/buildworks/sitelink/internal/utils"
	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/transport"
	"github.com/buildworks/sitelink/users"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// demoMFACode is accepted for every challenge; the dev backend never sends
// real emails or SMS.
const demoMFACode = "246810"

type pendingChallenge struct {
	userID    string
	expiresAt time.Time
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds transport.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		acct, ok := s.users.findByEmail(creds.Email)
		if !ok || !users.CheckPasswordHash(creds.Password, acct.passwordHash) {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid email or password")
			return
		}

		if acct.user.MFAAuth() {
			s.challenges.Store(acct.user.ID, pendingChallenge{
				userID:    acct.user.ID,
				expiresAt: time.Now().Add(5 * time.Minute),
			})
			log.Info().Str("user", acct.user.Email).Msg("mfa challenge issued")
			writeJSON(w, http.StatusOK, transport.LoginResult{MFARequired: true, UserID: acct.user.ID})
			return
		}

		session, err := s.buildSession(acct)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, transport.LoginResult{Session: session})
	}
}

func (s *Server) VerifyMFAHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"user_id"`
			Code   string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		value, ok := s.challenges.Load(body.UserID)
		if !ok {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "no pending challenge")
			return
		}
		challenge := value.(pendingChallenge)
		if time.Now().After(challenge.expiresAt) {
			s.challenges.Delete(body.UserID)
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "challenge expired")
			return
		}
		if body.Code != demoMFACode {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid code")
			return
		}
		s.challenges.Delete(body.UserID)

		acct, found := s.users.findByID(challenge.userID)
		if !found {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "unknown user")
			return
		}
		session, err := s.buildSession(acct)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload transport.RegisterPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		if _, exists := s.users.findByEmail(payload.Email); exists {
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
			return
		}
		if err := users.ValidatePasswordStrength(payload.Password); err != nil {
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
			return
		}

		hash, err := users.HashPassword(payload.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}

		tenant := &tenants.Tenant{
			ID:        slugify(payload.CompanyName),
			Name:      payload.CompanyName,
			Plan:      "trial",
			SeatLimit: 5,
		}
		acct := &account{
			user: users.User{
				ID:         uuid.NewString(),
				Email:      payload.Email,
				FirstName:  payload.FirstName,
				LastName:   payload.LastName,
				Role:       users.RolePrincipalAdmin,
				CompanyID:  tenant.ID,
				DateJoined: time.Now().UTC(),
			},
			passwordHash: hash,
		}
		s.users.add(acct, tenant)

		session, err := s.buildSession(acct)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		if _, revoked := s.revoked.Load(body.RefreshToken); revoked {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "refresh token revoked")
			return
		}
		userID, err := s.tokens.subject(body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid refresh token")
			return
		}
		if _, ok := s.users.findByID(userID); !ok {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "unknown user")
			return
		}

		// Rotation: the presented token is dead once a new pair is issued.
		pair, err := s.tokens.issuePair(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}
		s.revoked.Store(body.RefreshToken, struct{}{})
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := s.accountFromContext(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid token")
			return
		}
		writeJSON(w, http.StatusOK, transport.Profile{User: utils.Ptr(acct.user), Tenant: s.users.tenantOf(acct)})
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		// Same response whether or not the account exists.
		if _, ok := s.users.findByEmail(body.Email); ok {
			resetToken := uuid.NewString()
			s.resets.Store(resetToken, strings.ToLower(body.Email))
			log.Info().Str("email", body.Email).Str("token", resetToken).Msg("password reset issued")
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
			return
		}

		value, ok := s.resets.LoadAndDelete(body.Token)
		if !ok {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid or used reset token")
			return
		}
		if err := users.ValidatePasswordStrength(body.Password); err != nil {
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
			return
		}
		hash, err := users.HashPassword(body.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}
		if !s.users.setPassword(value.(string), hash) {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "unknown account")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
			s.revoked.Store(body.RefreshToken, struct{}{})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) buildSession(acct *account) (*transport.AuthSession, error) {
	pair, err := s.tokens.issuePair(acct.user.ID)
	if err != nil {
		return nil, err
	}
	user := utils.Ptr(acct.user)
	user.LastLogin = time.Now().UTC()
	return &transport.AuthSession{
		Token:  pair,
		User:   user,
		Tenant: s.users.tenantOf(acct),
	}, nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	if slug == "" {
		slug = uuid.NewString()
	}
	return slug
}
