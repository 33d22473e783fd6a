// Package server is the development backend for the SiteLink client. It
// implements the same auth and snapshot contract as the production API,
// backed by in-memory stores and deterministic generated data, so the client
// can be developed and demoed without any infrastructure.
package server

import (
	"net/http"
	"sync"

	"github.com/buildworks/sitelink/internal/config"
	"github.com/buildworks/sitelink/localdata"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

type Server struct {
	env        string
	config     config.Config
	router     *mux.Router
	handler    http.Handler
	users      *userStore
	tokens     *tokenMinter
	generator  *localdata.Generator
	challenges sync.Map // challenge user id -> pendingChallenge
	resets     sync.Map // reset token -> email
	revoked    sync.Map // revoked refresh token -> struct{}
}

func New(c config.Config, signingKey []byte) (*Server, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("[server.New] signing key is required")
	}

	s := &Server{
		env:       c.GetEnv(),
		config:    c,
		router:    mux.NewRouter(),
		users:     newUserStore(),
		tokens:    newTokenMinter(signingKey),
		generator: localdata.NewGenerator(),
	}

	if err := s.users.seedDemoAccounts(); err != nil {
		return nil, errors.Wrap(err, "[server.New] seedDemoAccounts")
	}

	s.initRoutes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(s.router)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
