package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/config"
	"github.com/studyquest/backend/internal/gamification"
	"github.com/studyquest/backend/internal/jobs"
	"github.com/studyquest/backend/internal/mock"
	"github.com/studyquest/backend/internal/session"
	"github.com/studyquest/backend/internal/store"
	"github.com/studyquest/backend/internal/store/postgres"
	"github.com/studyquest/backend/internal/store/remote"
	"github.com/studyquest/backend/internal/store/sqlite"
	"github.com/studyquest/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mockMode := flag.Bool("mock", false, "Drive demo learners through live sessions")
	flag.Parse()

	setupLogging()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Ignoring unreadable .env")
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressStore, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.WithError(err).Fatal("Failed to open progress store")
	}
	defer closeStore()

	opts := cfg.Options()
	sessions := session.NewManager(progressStore, gamification.SystemClock(), opts)
	hub := ws.NewHub(cfg.Server.MaxWSClients)
	sessions.OnEvent(hub.Publish)

	rollover := jobs.NewScheduler(sessions, cfg.Game.RolloverCron, opts.Location)
	if err := rollover.Start(); err != nil {
		log.WithError(err).Fatal("Failed to schedule day rollover")
	}

	var gen *mock.MockGenerator
	if *mockMode {
		gen = mock.NewGenerator(sessions, 2*time.Second, time.Now().UnixNano())
	}

	if len(cfg.Server.Users) > 0 {
		users := auth.StaticUsers(maps.Clone(cfg.Server.Users))
		if gen != nil {
			maps.Copy(users, gen.Tokens())
		}
		sessions.SetVerifier(users)
		log.WithField("tokens", len(users)).Info("Token to user bindings enabled")
	} else {
		log.Warn("No server.users configured: any bearer token may open any user")
	}

	if gen != nil {
		log.Info("Starting in mock mode")
		if err := gen.Start(ctx); err != nil {
			log.WithError(err).Fatal("Failed to start mock learners")
		}
	}

	server := ws.NewServer(sessions, hub, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	httpServer := ws.NewHTTPServer(cfg.Server.Host, cfg.Server.Port, server.Handler())

	go func() {
		log.WithFields(log.Fields{"addr": httpServer.Addr, "store": cfg.Store.Driver}).Info("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	cancel()
	rollover.Stop()
	sessions.CloseAll(shutdownCtx)
	log.Info("Stopped")
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// openStore builds the configured ProgressStore and its cleanup.
func openStore(ctx context.Context, cfg config.StoreConfig) (gamification.ProgressStore, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("Using in-memory progress store; progress is lost on restart")
		return store.NewMemory(), noop, nil
	case config.DriverFile:
		s := store.NewFile(cfg.Dir)
		log.WithField("dir", s.Dir()).Info("Using file progress store")
		return s, noop, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.DSN).Info("Using SQLite progress store")
		return sqlite.New(db), func() { db.Close() }, nil
	case config.DriverRemote:
		log.WithField("url", cfg.URL).Info("Using remote progress store")
		return remote.New(cfg.URL), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
