package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	trustline "github.com/pmckenzie/trustline"
	"github.com/pmckenzie/trustline/internal/audit"
	auditStore "github.com/pmckenzie/trustline/internal/audit/store"
	"github.com/pmckenzie/trustline/internal/config"
	"github.com/pmckenzie/trustline/internal/conversation"
	conversationStore "github.com/pmckenzie/trustline/internal/conversation/store"
	"github.com/pmckenzie/trustline/internal/database"
	trustlineHttp "github.com/pmckenzie/trustline/internal/http"
	invoiceHandler "github.com/pmckenzie/trustline/internal/http/invoice"
	"github.com/pmckenzie/trustline/internal/invoice"
	invoiceStore "github.com/pmckenzie/trustline/internal/invoice/store"
	"github.com/pmckenzie/trustline/internal/settings"
	settingsStore "github.com/pmckenzie/trustline/internal/settings/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsFS, err := fs.Sub(trustline.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(cfg.ConnectionString(), migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var (
		auditService        = audit.NewService(auditStore.New(db))
		conversationService = conversation.NewService(conversationStore.New(db))
		settingsService     = settings.NewService(settingsStore.New(db), cfg.Fees.PolicyTimeout)
		invoiceService      = invoice.NewService(invoiceStore.New(db), conversationService, settingsService, auditService)
	)

	invoiceH := invoiceHandler.NewHandler(invoiceService)

	router := trustlineHttp.New(cfg.Auth.JWTSecret, invoiceH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
