package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/auth"
	"ledger-bot/internal/ledger"
	"ledger-bot/internal/render"
)

// HistoryHandler serves the per-group history page opened from the chat dashboard.
type HistoryHandler struct {
	svc     *ledger.Service
	tokens  *auth.TokenService
	baseURL string
}

func NewHistoryHandler(svc *ledger.Service, tokens *auth.TokenService, baseURL string) *HistoryHandler {
	return &HistoryHandler{svc: svc, tokens: tokens, baseURL: baseURL}
}

// URL returns a signed link to groupID's history page.
func (h *HistoryHandler) URL(groupID string) (string, error) {
	if h.baseURL == "" {
		return "", fmt.Errorf("APP_DOMAIN is not configured")
	}
	token, err := h.tokens.GenerateHistoryToken(groupID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/web/history/%s?token=%s", h.baseURL, url.PathEscape(groupID), url.QueryEscape(token)), nil
}

func (h *HistoryHandler) Page(c *gin.Context) {
	groupID := c.Param("groupId")

	tokenGroup, err := h.tokens.ParseHistoryToken(c.Query("token"))
	if err != nil || tokenGroup != groupID {
		slog.Warn("History access denied", "group_id", groupID, "error", err)
		c.String(http.StatusForbidden, "This link is invalid or has expired.")
		return
	}

	ctx := c.Request.Context()
	name, err := h.svc.GroupName(ctx, groupID)
	if err != nil {
		slog.Error("GroupName failed", "error", err, "group_id", groupID)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	txs, err := h.svc.RecentTransactions(ctx, groupID, ledger.MaxRecentLimit)
	if err != nil {
		slog.Error("RecentTransactions failed", "error", err, "group_id", groupID)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	var buf bytes.Buffer
	if err := render.History(&buf, render.HistoryPage{GroupName: name, Transactions: txs}); err != nil {
		slog.Error("Render history failed", "error", err, "group_id", groupID)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
