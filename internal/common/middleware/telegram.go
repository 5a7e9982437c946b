package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"anon-relay-bot/internal/common/errors"
	"anon-relay-bot/internal/common/logger"
)

// InitDataHeader carries the raw Telegram Mini App init data.
const InitDataHeader = "init_data"

const userKey = "user"

// verifyInitData validates raw init data against the bot token and returns
// the Telegram user it was issued for. ttl 0 disables the expiry check.
func verifyInitData(raw, botToken string, ttl time.Duration) (initdata.User, *errors.AppError) {
	if err := initdata.Validate(raw, botToken, ttl); err != nil {
		logger.Debug().Err(err).Msg("Init data validation failed")
		return initdata.User{}, errors.Wrap(err, errors.ErrCodeUnauthorized, "Invalid init data")
	}

	parsed, err := initdata.Parse(raw)
	if err != nil {
		return initdata.User{}, errors.Wrap(err, errors.ErrCodeInvalidUserData, "Failed to parse init data")
	}
	if parsed.User.ID == 0 {
		return initdata.User{}, errors.New(errors.ErrCodeInvalidUserData, "Init data has no user")
	}
	return parsed.User, nil
}

// TelegramInitData authenticates the request by its init_data header and
// stores the Telegram user in the context.
func TelegramInitData(botToken string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			Abort(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}

		user, appErr := verifyInitData(raw, botToken, ttl)
		if appErr != nil {
			Abort(c, appErr)
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// TelegramUser returns the user stored by TelegramInitData.
func TelegramUser(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}
