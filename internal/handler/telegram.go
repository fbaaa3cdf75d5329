package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	HandleUpdates(ctx context.Context, updates []tgbotapi.Update)
}

type WebhookHandler struct {
	updates UpdateHandler
	secret  string
}

func NewWebhookHandler(updates UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{updates: updates, secret: secret}
}

// Telegram receives one update per request. Processing errors are handled
// inside the bot; Telegram only needs to know the update arrived.
func (h *WebhookHandler) Telegram(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			slog.Warn("Webhook secret mismatch", "remote", c.ClientIP())
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		slog.Error("Failed to parse update", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	h.updates.HandleUpdates(c.Request.Context(), []tgbotapi.Update{update})
	c.Status(http.StatusOK)
}
