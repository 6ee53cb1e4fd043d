// linechat-server runs the line-protocol chat server and, when an admin
// address is configured, the admin HTTP API with its websocket endpoint.
//
// Usage:
//
//	linechat-server [--config linechat.yaml] [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"linechat/internal/api"
	"linechat/internal/audit"
	"linechat/internal/auth"
	"linechat/internal/config"
	"linechat/internal/hub"
	"linechat/internal/server"
	"linechat/internal/storage"
	"linechat/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "linechat-server: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func loadCredentials(cfg config.Config, db *gorm.DB) (*auth.Store, error) {
	if cfg.Credentials == config.BackendDB {
		return auth.LoadDB(db)
	}
	return auth.LoadFile(cfg.UsersFile)
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.Database != "" {
		var err error
		db, err = storage.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer storage.Close(db)
	}

	store, err := loadCredentials(cfg, db)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	logger.Info("credentials loaded", "backend", cfg.Credentials, "users", store.Len())

	var recorder audit.Recorder = audit.Nop{}
	var events *audit.AuditService
	if db != nil {
		events = audit.NewAuditService(db)
		recorder = events
	}

	h := hub.NewHub(logger.With("component", "hub"))
	srv := server.New(cfg, h, store, recorder, logger.With("component", "chat"))
	if err := srv.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})

	if cfg.AdminAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		ws := websocket.NewHandler(srv, cfg.MaxLineLength, logger.With("component", "websocket"))
		router := api.NewRouter(cfg, h, store, events, ws, logger.With("component", "admin"))
		defer router.Close()

		g.Go(func() error {
			return api.Serve(ctx, cfg.AdminAddr, api.NewEngine(router, logger), logger)
		})
	}

	return g.Wait()
}
