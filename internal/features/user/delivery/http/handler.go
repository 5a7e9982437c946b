package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "anon-relay-bot/internal/common/errors"
	"anon-relay-bot/internal/common/middleware"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository"
)

type Profiles interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	IsPremiumActive(ctx context.Context, id int64) (bool, error)
}

type Reservations interface {
	ReservationOf(ctx context.Context, userID int64) (*emojimodels.Reservation, error)
}

type UserHandler struct {
	users        Profiles
	reservations Reservations
}

func NewUserHandler(users Profiles, reservations Reservations) *UserHandler {
	return &UserHandler{users: users, reservations: reservations}
}

// RegisterRoutes mounts the Mini App routes. The group must authenticate
// with middleware.TelegramInitData and register users with AutoCreateUser.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("/me", h.getMe)
	}
}

// @Summary Get current user
// @Description Profile of the Telegram user behind the init data, with premium state and reserved emoji
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.MeResponse "Profile"
// @Failure 401 {object} models.ErrorResponse "Missing or invalid init data"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /users/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	id := middleware.UserID(c)
	if id == 0 {
		_ = c.Error(apperrors.NewUnauthorizedError("Telegram init data required"))
		return
	}
	ctx := c.Request.Context()

	// evaluated first so a lapsed window is cleared before the read
	premium, err := h.users.IsPremiumActive(ctx, id)
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("premium check", err))
		return
	}
	user, err := h.users.Get(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = c.Error(apperrors.NewUserNotFoundError(id))
		return
	}
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("get user", err))
		return
	}

	resp := models.MeResponse{User: user, Premium: premium}
	reservation, err := h.reservations.ReservationOf(ctx, id)
	if err != nil {
		_ = c.Error(apperrors.NewCacheError("reservation lookup", err))
		return
	}
	if reservation != nil {
		resp.ReservedEmoji = reservation.Emoji
	}

	c.JSON(http.StatusOK, resp)
}
