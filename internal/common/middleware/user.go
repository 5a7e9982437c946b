package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"anon-relay-bot/internal/common/errors"
	"anon-relay-bot/internal/common/logger"
	usermodels "anon-relay-bot/internal/features/user/models"
)

type UserUpserter interface {
	Upsert(ctx context.Context, id int64, username, displayName string) (*usermodels.User, error)
}

// AutoCreateUser registers or refreshes the Telegram user behind the request.
// Requests authenticated by token pass through untouched.
func AutoCreateUser(users UserUpserter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tgUser, ok := TelegramUser(c)
		if !ok {
			c.Next()
			return
		}

		displayName := strings.TrimSpace(tgUser.FirstName + " " + tgUser.LastName)
		if _, err := users.Upsert(c.Request.Context(), tgUser.ID, tgUser.Username, displayName); err != nil {
			logger.Error().Err(err).Int64("user_id", tgUser.ID).Msg("Failed to auto-create user")
			Abort(c, errors.NewDatabaseError("upsert user", err))
			return
		}

		c.Next()
	}
}
