// cmd/bot/main.go
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
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/app"
	"ledger-bot/internal/bot"
	"ledger-bot/internal/config"
	"ledger-bot/internal/handler"
	"ledger-bot/internal/logging"
)

// Long polling runner for local development and hosts without a public URL.
// The HTTP API and history pages are still served, without the webhook route.
func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("❌ Startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// getUpdates is rejected while a webhook is registered.
	if _, err := a.BotAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Error("❌ Failed to delete webhook", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.Register(router, a.Routes(false))
	srv := &http.Server{Addr: cfg.ServerPort, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped with error", "error", err)
		}
	}()

	slog.Info("🚀 Polling started", "username", a.BotAPI.Self.UserName)
	poll(ctx, a.BotAPI, a.Bot)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	slog.Info("🛑 Bot stopped")
}

// poll hands each getUpdates batch to the bot and acknowledges it by advancing
// the offset, whatever happened to individual updates.
func poll(ctx context.Context, api *tgbotapi.BotAPI, h *bot.Handler) {
	offset := 0
	for ctx.Err() == nil {
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := api.GetUpdates(u)
		if err != nil {
			slog.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
			}
			continue
		}

		h.HandleUpdates(ctx, updates)
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
		}
	}
}
