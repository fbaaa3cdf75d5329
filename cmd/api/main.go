// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/app"
	"ledger-bot/internal/config"
	"ledger-bot/internal/handler"
	"ledger-bot/internal/logging"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DefaultJWTSecret() {
		slog.Warn("⚠️ JWT_SECRET is the default value, set it in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("❌ Startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.TelegramWebhookURL != "" {
		params := map[string]string{"url": cfg.TelegramWebhookURL}
		if cfg.TelegramWebhookSecret != "" {
			params["secret_token"] = cfg.TelegramWebhookSecret
		}
		if _, err := a.BotAPI.MakeRequest("setWebhook", params); err != nil {
			slog.Error("❌ Failed to set webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("🔗 Telegram webhook set", "url", cfg.TelegramWebhookURL)
	} else {
		slog.Warn("⚠️ No webhook URL configured, /telegram will only receive manual posts")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handler.Register(router, a.Routes(true))

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("🚀 Server started", "addr", cfg.ServerPort, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped with error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
