// Command stubserver runs the in-memory development backend. It exists so
// the client can be exercised end to end without the production API:
//
//	BACKEND_BASE_URL=http://localhost:8080 go run ./cmd/sitelink
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/buildworks/sitelink/internal/config"
	"github.com/buildworks/sitelink/server"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("stubserver exited")
	}
	log.Info().Msg("stubserver stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	displayAppname(c.GetAppName() + " stub")

	handler, err := server.New(c, []byte(config.GetEnv("STUB_SIGNING_KEY", "sitelink-dev-only")))
	if err != nil {
		return err
	}

	addr := ":" + config.GetEnv("STUB_PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: handler}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

func listenAndServe(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("stubserver listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("stubserver ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
