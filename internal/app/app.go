// Package app wires configuration into the storage, ledger, bot and HTTP
// components shared by the api and bot binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-bot/internal/auth"
	"ledger-bot/internal/bot"
	"ledger-bot/internal/config"
	"ledger-bot/internal/extract"
	"ledger-bot/internal/handler"
	"ledger-bot/internal/ledger"
	"ledger-bot/internal/middleware"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/storage/memory"
	"ledger-bot/internal/storage/postgres"
	"ledger-bot/internal/storage/sqlite"
)

// LoginMaxAge bounds how old a Telegram Login Widget payload may be.
const LoginMaxAge = 24 * time.Hour

type App struct {
	Config  config.Config
	Store   storage.Store
	Ledger  *ledger.Service
	Tokens  *auth.TokenService
	History *handler.HistoryHandler
	BotAPI  *tgbotapi.BotAPI
	Bot     *bot.Handler
}

// OpenStore connects the backend selected by cfg.DataBackend.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.DataBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DBConn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return postgres.NewStorage(pool), nil
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.BackendMemory:
		slog.Warn("⚠️ Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := extract.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	slog.Info("🤖 Bot authorized", "username", api.Self.UserName)

	svc := ledger.NewService(store, cfg.Location)
	tokens := auth.NewTokenService(cfg)
	history := handler.NewHistoryHandler(svc, tokens, cfg.AppDomain)

	botCfg := bot.Config{
		RequireDigit: cfg.RequireDigit,
		Location:     cfg.Location,
		BotUsername:  api.Self.UserName,
	}
	if cfg.AppDomain != "" {
		botCfg.HistoryURL = history.URL
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Ledger:  svc,
		Tokens:  tokens,
		History: history,
		BotAPI:  api,
		Bot:     bot.NewHandler(svc, analyzer, api, botCfg),
	}, nil
}

// Routes bundles the HTTP handlers. The Telegram webhook is mounted only
// when withWebhook is set.
func (a *App) Routes(withWebhook bool) handler.Routes {
	r := handler.Routes{
		Ledger:  handler.NewLedgerHandler(a.Ledger, a.Config.Location),
		Login:   handler.NewLoginHandler(auth.NewLoginVerifier(a.Config.TelegramToken, LoginMaxAge), a.Tokens),
		History: a.History,
		Auth:    middleware.NewAuthMiddleware(a.Tokens),
		Members: a.Ledger,
	}
	if withWebhook {
		r.Webhook = handler.NewWebhookHandler(a.Bot, a.Config.TelegramWebhookSecret)
	}
	return r
}

func (a *App) Close() error {
	return a.Store.Close()
}
