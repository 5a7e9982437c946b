package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "anon-relay-bot/internal/common/errors"
	"anon-relay-bot/internal/common/middleware"
	"anon-relay-bot/internal/features/admin/models"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	usermodels "anon-relay-bot/internal/features/user/models"
	userrepo "anon-relay-bot/internal/features/user/repository"
)

type Executor interface {
	Execute(ctx context.Context, actorID int64, cmd models.Command) (any, error)
}

type AdminHandler struct {
	admin Executor
}

func NewAdminHandler(admin Executor) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RegisterRoutes mounts the admin API. The group must be protected with
// middleware.RequireAdmin.
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		admin.GET("/stats", h.getStats)
		admin.GET("/users", h.listUsers)
		admin.PUT("/users/:id/ban", h.updateBan)
		admin.POST("/users/:id/premium", h.grantPremium)
		admin.GET("/emojis", h.listEmojis)
		admin.DELETE("/emojis/:emoji", h.freeEmoji)
		admin.GET("/messages/:id/history", h.messageHistory)
	}
}

// @Summary Bot statistics
// @Tags admin
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Success 200 {object} models.StatsReport
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Not an admin"
// @Router /admin/stats [get]
func (h *AdminHandler) getStats(c *gin.Context) {
	h.run(c, models.Stats{})
}

// @Summary List users
// @Description Users in registration order
// @Tags admin
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Param limit query int false "Maximum number of users" default(20)
// @Success 200 {object} models.UserList
// @Failure 400 {object} models.ErrorResponse "Invalid limit"
// @Router /admin/users [get]
func (h *AdminHandler) listUsers(c *gin.Context) {
	limit := models.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(apperrors.NewValidationError("limit", "must be a positive number"))
			return
		}
		limit = n
	}
	h.run(c, models.ListUsers{Limit: limit})
}

// @Summary Ban or unban a user
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param ban body usermodels.BanUpdate true "Ban state"
// @Success 200 {object} usermodels.User
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/users/{id}/ban [put]
func (h *AdminHandler) updateBan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input usermodels.BanUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	if input.Banned {
		h.run(c, models.Ban{UserID: id})
		return
	}
	h.run(c, models.Unban{UserID: id})
}

// @Summary Grant premium
// @Description Extends premium by the given days; zero or negative days revoke it and free the user's emoji
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param grant body models.PremiumGrant true "Days to add"
// @Success 200 {object} usermodels.User
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/users/{id}/premium [post]
func (h *AdminHandler) grantPremium(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.PremiumGrant
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}
	h.run(c, models.GrantPremium{UserID: id, Days: input.Days})
}

// @Summary List reserved emojis
// @Tags admin
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Success 200 {object} models.Reservations
// @Router /admin/emojis [get]
func (h *AdminHandler) listEmojis(c *gin.Context) {
	h.run(c, models.ListReservedEmojis{})
}

// @Summary Free a reserved emoji
// @Description Drops the reservation; the owner falls back to the default emoji
// @Tags admin
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Param emoji path string true "Emoji, URL-encoded"
// @Success 200 {object} models.EmojiFreed
// @Failure 400 {object} models.ErrorResponse "Invalid emoji"
// @Router /admin/emojis/{emoji} [delete]
func (h *AdminHandler) freeEmoji(c *gin.Context) {
	h.run(c, models.FreeEmoji{Emoji: c.Param("emoji")})
}

// @Summary Message edit history
// @Tags admin
// @Produce json
// @Security AdminToken
// @Security TelegramInitData
// @Param id path int true "Channel message ID"
// @Success 200 {object} models.History
// @Failure 404 {object} models.ErrorResponse "Message not found"
// @Router /admin/messages/{id}/history [get]
func (h *AdminHandler) messageHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.run(c, models.MessageHistory{MessageID: id})
}

func (h *AdminHandler) run(c *gin.Context, cmd models.Command) {
	out, err := h.admin.Execute(c.Request.Context(), middleware.UserID(c), cmd)
	if err != nil {
		_ = c.Error(toAppError(cmd, err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func toAppError(cmd models.Command, err error) *apperrors.AppError {
	switch {
	case stderrors.Is(err, userrepo.ErrUserNotFound):
		if id, ok := targetUser(cmd); ok {
			return apperrors.NewUserNotFoundError(id)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeUserNotFound, "User not found")
	case stderrors.Is(err, msgmodels.ErrMessageNotFound):
		if h, ok := cmd.(models.MessageHistory); ok {
			return apperrors.NewMessageNotFoundError(h.MessageID)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeMessageNotFound, "Message not found")
	case stderrors.Is(err, emojimodels.ErrInvalidEmoji):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidEmoji, "Invalid emoji")
	case stderrors.Is(err, models.ErrBadArguments), stderrors.Is(err, models.ErrUnknownCommand):
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid command")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Admin command failed")
	}
}

func targetUser(cmd models.Command) (int64, bool) {
	switch c := cmd.(type) {
	case models.Ban:
		return c.UserID, true
	case models.Unban:
		return c.UserID, true
	case models.GrantPremium:
		return c.UserID, true
	default:
		return 0, false
	}
}
