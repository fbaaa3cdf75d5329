package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/auth"
)

type LoginHandler struct {
	verifier *auth.LoginVerifier
	tokens   *auth.TokenService
}

func NewLoginHandler(verifier *auth.LoginVerifier, tokens *auth.TokenService) *LoginHandler {
	return &LoginHandler{verifier: verifier, tokens: tokens}
}

// Login godoc
// @Summary Exchange a Telegram Login Widget payload for an API token
// @Param request body auth.TelegramLogin true "Widget payload"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/login [post]
func (h *LoginHandler) Login(c *gin.Context) {
	var req auth.TelegramLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, auth_date and hash are required"})
		return
	}

	userID, err := h.verifier.Verify(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLogin) {
			slog.Warn("Login rejected", "user_id", req.ID, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid login"})
			return
		}
		slog.Error("Login verification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	token, err := h.tokens.GenerateToken(auth.Identity{UserID: userID, Name: req.DisplayName()})
	if err != nil {
		slog.Error("Token generation failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
