package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/ledger"
	"ledger-bot/internal/middleware"
	"ledger-bot/internal/storage"
	"ledger-bot/internal/validator"
)

type LedgerHandler struct {
	svc *ledger.Service
	loc *time.Location
	now func() time.Time
}

func NewLedgerHandler(svc *ledger.Service, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.Local
	}
	return &LedgerHandler{svc: svc, loc: loc, now: time.Now}
}

type MeResponse struct {
	UserID      string                `json:"userId"`
	DisplayName string                `json:"displayName,omitempty"`
	Groups      []domain.GroupSummary `json:"groups"`
}

type SetCategoriesRequest struct {
	Categories []string `json:"categories" validate:"required,min=1,max=50,dive,notblank,max=32"`
}

// Me godoc
// @Summary Current user and the groups they belong to
// @Success 200 {object} MeResponse
// @Router /api/v1/me [get]
func (h *LedgerHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	groups, err := h.svc.UserGroups(c.Request.Context(), userID)
	if err != nil {
		slog.Error("UserGroups failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		UserID:      userID,
		DisplayName: c.GetString(middleware.ContextUserName),
		Groups:      groups,
	})
}

// Transactions godoc
// @Summary Most recent transactions of a group
// @Param groupId path string true "Group ID"
// @Param limit query int false "Max items (default 20, max 100)"
// @Success 200 {object} map[string][]domain.Transaction
// @Failure 400 {object} map[string]string
// @Router /api/v1/groups/{groupId}/transactions [get]
func (h *LedgerHandler) Transactions(c *gin.Context) {
	groupID := c.Param("groupId")

	limit := ledger.DefaultRecentLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		limit = n
	}

	txs, err := h.svc.RecentTransactions(c.Request.Context(), groupID, limit)
	if err != nil {
		slog.Error("RecentTransactions failed", "error", err, "group_id", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

// Dashboard godoc
// @Summary Monthly overview of a group
// @Param groupId path string true "Group ID"
// @Success 200 {object} domain.Dashboard
// @Router /api/v1/groups/{groupId}/dashboard [get]
func (h *LedgerHandler) Dashboard(c *gin.Context) {
	groupID := c.Param("groupId")

	d, err := h.svc.Dashboard(c.Request.Context(), groupID, h.now().In(h.loc), 0)
	if err != nil {
		slog.Error("Dashboard failed", "error", err, "group_id", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groupName": d.GroupName,
		"overview":  d.Overview,
		"members":   d.Members,
	})
}

// SetCategories godoc
// @Summary Replace the category vocabulary of a group
// @Param groupId path string true "Group ID"
// @Param request body SetCategoriesRequest true "Categories"
// @Success 200 {object} domain.GroupConfig
// @Failure 400 {object} map[string]string
// @Router /api/v1/groups/{groupId}/categories [put]
func (h *LedgerHandler) SetCategories(c *gin.Context) {
	groupID := c.Param("groupId")

	var req SetCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.svc.SetCategories(c.Request.Context(), groupID, req.Categories)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyCategories) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("SetCategories failed", "error", err, "group_id", groupID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}
