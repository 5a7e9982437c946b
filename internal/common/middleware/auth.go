package middleware

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"anon-relay-bot/internal/common/errors"
	"anon-relay-bot/internal/common/logger"
)

type AdminAuthConfig struct {
	// Token is the bearer capability for automation. Empty disables bearer auth.
	Token string
	// BotToken signs Telegram init data.
	BotToken    string
	InitDataTTL time.Duration
	AdminIDs    []int64
}

// RequireAdmin accepts either the bearer capability token or Telegram init
// data of a user on the admin allow-list.
func RequireAdmin(cfg AdminAuthConfig) gin.HandlerFunc {
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}

	return func(c *gin.Context) {
		if bearer, ok := bearerToken(c); ok {
			if cfg.Token == "" || subtle.ConstantTimeCompare([]byte(bearer), []byte(cfg.Token)) != 1 {
				logger.Warn().Str("client_ip", c.ClientIP()).Msg("Rejected admin token")
				Abort(c, errors.NewUnauthorizedError("invalid admin token"))
				return
			}
			c.Next()
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			Abort(c, errors.NewUnauthorizedError("admin token or Telegram init data required"))
			return
		}

		user, appErr := verifyInitData(raw, cfg.BotToken, cfg.InitDataTTL)
		if appErr != nil {
			Abort(c, appErr)
			return
		}
		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)

		if _, ok := admins[user.ID]; !ok {
			Abort(c, errors.NewForbiddenError("admin access required").WithUserID(user.ID))
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
