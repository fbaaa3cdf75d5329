package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/auth"
)

// Gin context keys set by RequireAuth.
const (
	ContextUserID   = "user_id"
	ContextUserName = "user_name"
)

type TokenParser interface {
	ParseToken(tokenStr string) (auth.Identity, error)
}

type MembershipChecker interface {
	IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error)
}

type AuthMiddleware struct {
	tokens TokenParser
}

func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		id, err := m.tokens.ParseToken(tokenStr)
		if err != nil {
			slog.Debug("Token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, id.UserID)
		c.Set(ContextUserName, id.Name)
		c.Next()
	}
}

// GroupAccess lets a request through only when the authenticated user belongs
// to the group named by the :groupId path parameter.
func GroupAccess(members MembershipChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		groupID := c.Param("groupId")
		if userID == "" || groupID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		ok, err := members.IsUserInGroup(c.Request.Context(), userID, groupID)
		if err != nil {
			slog.Error("Membership check failed", "user_id", userID, "group_id", groupID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		if !ok {
			slog.Warn("Group access denied", "user_id", userID, "group_id", groupID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not a member of this group"})
			return
		}
		c.Next()
	}
}
