package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	usermodels "anon-relay-bot/internal/features/user/models"
)

const botToken = "123456:test-token"

func init() {
	gin.SetMode(gin.TestMode)
}

// signInitData builds init data the way Telegram signs it for Mini Apps.
func signInitData(t *testing.T, token string, userID int64, authDate time.Time) string {
	t.Helper()
	params := map[string]string{
		"auth_date": fmt.Sprint(authDate.Unix()),
		"query_id":  "AAH",
		"user":      fmt.Sprintf(`{"id":%d,"first_name":"Ada","last_name":"L","username":"ada"}`, userID),
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

func newAdminRouter(cfg AdminAuthConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Errors())
	handlers := append([]gin.HandlerFunc{RequireAdmin(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	r.GET("/admin", handlers...)
	return r
}

func TestRequireAdmin(t *testing.T) {
	cfg := AdminAuthConfig{Token: "s3cret", BotToken: botToken, InitDataTTL: time.Hour, AdminIDs: []int64{900}}
	r := newAdminRouter(cfg)
	now := time.Now()

	tcases := []struct {
		name   string
		header map[string]string
		status int
	}{
		{name: "no credentials", status: http.StatusUnauthorized},
		{name: "valid token", header: map[string]string{"Authorization": "Bearer s3cret"}, status: http.StatusOK},
		{name: "wrong token", header: map[string]string{"Authorization": "Bearer nope"}, status: http.StatusUnauthorized},
		{name: "admin init data", header: map[string]string{InitDataHeader: signInitData(t, botToken, 900, now)}, status: http.StatusOK},
		{name: "non-admin init data", header: map[string]string{InitDataHeader: signInitData(t, botToken, 5, now)}, status: http.StatusForbidden},
		{name: "foreign signature", header: map[string]string{InitDataHeader: signInitData(t, "999:other", 900, now)}, status: http.StatusUnauthorized},
		{name: "expired init data", header: map[string]string{InitDataHeader: signInitData(t, botToken, 900, now.Add(-2*time.Hour))}, status: http.StatusUnauthorized},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequireAdmin_tokenDisabled(t *testing.T) {
	r := newAdminRouter(AdminAuthConfig{BotToken: botToken, AdminIDs: []int64{900}})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type mockUpserter struct {
	mock.Mock
}

func (m *mockUpserter) Upsert(ctx context.Context, id int64, username, displayName string) (*usermodels.User, error) {
	args := m.Called(ctx, id, username, displayName)
	u, _ := args.Get(0).(*usermodels.User)
	return u, args.Error(1)
}

func TestAutoCreateUser(t *testing.T) {
	users := &mockUpserter{}
	users.On("Upsert", mock.Anything, int64(900), "ada", "Ada L").Return(&usermodels.User{ID: 900}, nil).Once()

	cfg := AdminAuthConfig{Token: "s3cret", BotToken: botToken, AdminIDs: []int64{900}}
	r := newAdminRouter(cfg, AutoCreateUser(users))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(InitDataHeader, signInitData(t, botToken, 900, time.Now()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":900}`, w.Body.String())

	// token requests carry no Telegram user
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	users.AssertExpectations(t)
}
