package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *jwt.TokenService) *gin.Engine {
	enforcer, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	r := gin.New()
	r.Use(RequestIDMiddleware())
	api := r.Group("/api/v1", JWTAuthMiddleware(tokens), RBACMiddleware(enforcer))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"user": UserID(c)}) }
	api.GET("/campaigns/:id/player", ok)
	api.POST("/admin/jobs/:name/run", ok)
	api.POST("/admin/campaigns/:id/enroll", ok)
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	tokens := jwt.NewTokenService("0123456789abcdef", "learnloop")
	r := newRouter(tokens)

	w := do(r, http.MethodGet, "/api/v1/campaigns/c1/player", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/v1/campaigns/c1/player", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.Issue("u1", "u1@example.com", []string{RoleLearner}, time.Hour)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/api/v1/campaigns/c1/player", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"u1"`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/api/v1/campaigns/c1/player?access_token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACMiddleware(t *testing.T) {
	tokens := jwt.NewTokenService("0123456789abcdef", "learnloop")
	r := newRouter(tokens)
	issue := func(roles ...string) string {
		token, err := tokens.Issue("u1", "", roles, time.Hour)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		roles  []string
		method string
		path   string
		want   int
	}{
		{"learner plays", []string{RoleLearner}, http.MethodGet, "/api/v1/campaigns/c1/player", http.StatusOK},
		{"no role defaults to learner", nil, http.MethodGet, "/api/v1/campaigns/c1/player", http.StatusOK},
		{"learner cannot run jobs", []string{RoleLearner}, http.MethodPost, "/api/v1/admin/jobs/send-reminders/run", http.StatusForbidden},
		{"operator runs jobs", []string{RoleOperator}, http.MethodPost, "/api/v1/admin/jobs/send-reminders/run", http.StatusOK},
		{"operator inherits learner", []string{RoleOperator}, http.MethodGet, "/api/v1/campaigns/c1/player", http.StatusOK},
		{"operator cannot enroll", []string{RoleOperator}, http.MethodPost, "/api/v1/admin/campaigns/c1/enroll", http.StatusForbidden},
		{"admin enrolls", []string{RoleAdmin}, http.MethodPost, "/api/v1/admin/campaigns/c1/enroll", http.StatusOK},
		{"any granted role wins", []string{RoleLearner, RoleAdmin}, http.MethodPost, "/api/v1/admin/jobs/x/run", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, issue(tt.roles...))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"https://app.example.com"}}}
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
