package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/common/middleware"
	emojimemory "anon-relay-bot/internal/features/emoji/repository/memory"
	emojiservice "anon-relay-bot/internal/features/emoji/service"
	"anon-relay-bot/internal/features/user/models"
	usermemory "anon-relay-bot/internal/features/user/repository/memory"
	userservice "anon-relay-bot/internal/features/user/service"
)

func TestGetMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	registry := emojiservice.NewRegistry(emojimemory.NewReservationRepository())
	users := userservice.NewUserService(usermemory.NewUserRepository(), registry, "📨")
	_, err := users.Upsert(ctx, 42, "ada", "Ada")
	require.NoError(t, err)
	_, err = users.GrantPremium(ctx, 42, 30)
	require.NoError(t, err)
	_, err = registry.Reserve(ctx, 42, "🦊", time.Now())
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Errors())
	api := r.Group("/api/v1", func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-Test-User"), 10, 64); err == nil {
			c.Set("user_id", id)
		}
		c.Next()
	})
	NewUserHandler(users, registry).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("X-Test-User", "42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Premium)
	assert.Equal(t, "🦊", resp.ReservedEmoji)
	assert.Equal(t, "ada", resp.User.Username)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("X-Test-User", "7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}
