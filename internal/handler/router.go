package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/ledger"
	"ledger-bot/internal/metrics"
	"ledger-bot/internal/middleware"
)

type Routes struct {
	Ledger  *LedgerHandler
	Login   *LoginHandler
	History *HistoryHandler
	// Webhook is nil when the bot runs in polling mode.
	Webhook *WebhookHandler
	Auth    *middleware.AuthMiddleware
	Members *ledger.Service
}

func Register(router *gin.Engine, r Routes) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if r.Webhook != nil {
		router.POST("/telegram", r.Webhook.Telegram)
	}

	router.GET("/web/history/:groupId", r.History.Page)

	router.POST("/api/v1/login", r.Login.Login)

	v1 := router.Group("/api/v1")
	v1.Use(r.Auth.RequireAuth())
	{
		v1.GET("/me", r.Ledger.Me)

		groups := v1.Group("/groups/:groupId")
		groups.Use(middleware.GroupAccess(r.Members))
		groups.GET("/transactions", r.Ledger.Transactions)
		groups.GET("/dashboard", r.Ledger.Dashboard)
		groups.PUT("/categories", r.Ledger.SetCategories)
	}
}
