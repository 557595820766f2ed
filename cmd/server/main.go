package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chipin/chipin/internal/api"
	"github.com/chipin/chipin/internal/auth"
	"github.com/chipin/chipin/internal/config"
	"github.com/chipin/chipin/internal/invite"
	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/middleware"
	"github.com/chipin/chipin/internal/notify"
	"github.com/chipin/chipin/internal/storage/sqlite"
	"github.com/chipin/chipin/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Notify.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.Notify.AMQPURL)
		if err != nil {
			// Notifications are best-effort; a broker outage at boot
			// degrades delivery, it never blocks the ledger.
			slog.Warn("AMQP unavailable, falling back to log notifier", "error", err)
		} else {
			notifier = amqpNotifier
			slog.Info("AMQP notifier connected")
		}
	}
	defer notifier.Close()

	emitter := notify.NewEmitter(store, notifier)
	ledgerSvc := ledger.NewService(store, emitter, decimal.NewFromFloat(cfg.Ledger.SplitTolerance))
	inviteSvc := invite.NewService(store, emitter, cfg.Ledger.InviteTTL)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go inviteSvc.RunSweeper(ctx, cfg.Ledger.SweepInterval)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := api.New(store, ledgerSvc, inviteSvc, authenticator, jwtManager)
	handler.Register(mux, func(next http.Handler) http.Handler {
		return middleware.RequireAuth(jwtManager, next)
	})

	chained := middleware.Logging(middleware.Metrics(mux, mux))
	h2cHandler := h2c.NewHandler(chained, &http2.Server{})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: h2cHandler}
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down")
		_ = server.Shutdown(context.Background())
	}()

	slog.Info("Server starting", "address", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
