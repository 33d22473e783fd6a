package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/buildworks/sitelink/gateway"
	"github.com/buildworks/sitelink/internal/config"
	"github.com/buildworks/sitelink/localdata"
	"github.com/buildworks/sitelink/session"
	"github.com/buildworks/sitelink/store"
	"github.com/buildworks/sitelink/transport"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("sitelink exited")
	}
	log.Info().Msg("sitelink stopped")
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
	configureLogging(c)
	displayAppname(c.GetAppName())

	manager, gw, err := bootstrap(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restored := manager.Restore(ctx)
	log.Info().Str("status", string(restored.Status)).Msg("session restored")

	if !restored.IsAuthenticated {
		if email := config.GetEnv("DEMO_EMAIL", ""); email != "" {
			creds := transport.Credentials{
				Email:      email,
				Password:   config.GetEnv("DEMO_PASSWORD", ""),
				RememberMe: true,
			}
			if _, err := manager.Login(ctx, creds); err != nil {
				log.Warn().Err(err).Msg("demo login failed")
			}
		}
	}

	if interval := c.GetProbeInterval(); interval > 0 && c.GetBackendMode() {
		go gw.Watch(ctx, interval)
	}
	go refreshLoop(ctx, manager, gw)

	waitForStopSignal()
	cancel()
	manager.Close()
	return nil
}

func bootstrap(c config.Config) (*session.Manager, *gateway.Manager, error) {
	tokenStore, err := store.NewFile(filepath.Join(c.GetDataFolder(), "tokens.json"))
	if err != nil {
		return nil, nil, err
	}

	// Tokens only survive a restart when the last login asked to be
	// remembered; otherwise the stored pair is session-scoped and dropped now.
	if remembered, err := tokenStore.Get(store.KeyRememberMe); err != nil || remembered != "true" {
		_ = tokenStore.Remove(store.KeyAccessToken)
		_ = tokenStore.Remove(store.KeyRefreshToken)
	}

	authTransport := transport.NewHTTP(c.GetAuthBaseURL())
	manager, err := session.NewManager(authTransport, tokenStore,
		session.WithRefreshLead(c.GetRefreshLead()),
		session.WithLockoutTracker(session.NewMemoryLockout(c.GetLockoutMaxAttempts(), c.GetLockoutWindow())),
	)
	if err != nil {
		return nil, nil, err
	}

	gatewayOptions := []gateway.Option{
		gateway.WithSnapshotTimeout(c.GetSnapshotTimeout()),
		gateway.WithBreakerTuning(c.GetBreakerThreshold(), c.GetBreakerOpenWindow()),
		gateway.WithTokenSource(manager.AccessToken),
	}
	if c.GetBackendMode() {
		gatewayOptions = append(gatewayOptions, gateway.WithBackend(c.GetBackendBaseURL()))
	}
	if !c.GetAllowFallback() {
		gatewayOptions = append(gatewayOptions, gateway.WithFallbackDisallowed())
	}

	gw, err := gateway.New(localdata.NewGenerator(), gatewayOptions...)
	if err != nil {
		return nil, nil, err
	}

	gw.Subscribe(func(s gateway.State) {
		log.Debug().
			Str("mode", string(s.Mode)).
			Bool("online", s.Online).
			Int("pendingMutations", s.PendingMutations).
			Msg("connection state")
	})

	return manager, gw, nil
}

// refreshLoop keeps the dashboard snapshot warm while a session is active.
func refreshLoop(ctx context.Context, manager *session.Manager, gw *gateway.Manager) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		current := manager.Current()
		if current.IsAuthenticated && current.User != nil {
			params := localdata.Params{UserID: current.User.ID, CompanyID: current.User.CompanyID}
			snap, err := gw.FetchSnapshot(ctx, params)
			if err != nil {
				log.Warn().Err(err).Msg("snapshot fetch failed")
			} else {
				log.Info().
					Str("source", string(snap.Source)).
					Bool("usedFallback", snap.UsedFallback).
					Int("activeProjects", snap.Summary.ActiveProjects).
					Int("openIncidents", snap.Summary.OpenIncidents).
					Msg("snapshot refreshed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func configureLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
