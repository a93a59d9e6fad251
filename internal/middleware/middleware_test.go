package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/pkg/auth"
)

// envelope — конверт ответа для разбора в тестах
type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func testAuthMiddleware(t *testing.T) (*AuthMiddleware, *auth.JWTService) {
	t.Helper()
	jwtSvc, err := auth.NewJWTService("test-secret-for-unit-tests", 1, 60)
	require.NoError(t, err)
	return NewAuthMiddleware(jwtSvc), jwtSvc
}

func performRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := testAuthMiddleware(t)

	router := gin.New()
	router.GET("/protected", m.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/protected", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "AUTHENTICATION", env.Error.Kind)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := testAuthMiddleware(t)

	router := gin.New()
	router.GET("/protected", m.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"garbage", "Basic abc", "Bearer a b"} {
		w := performRequest(router, http.MethodGet, "/protected", header)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "AUTHENTICATION", decodeEnvelope(t, w).Error.Kind, header)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := testAuthMiddleware(t)

	router := gin.New()
	router.GET("/protected", m.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/protected", "Bearer not-a-jwt")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTHENTICATION", decodeEnvelope(t, w).Error.Kind)
}

func TestRequireAuth_ValidTokenSetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, jwtSvc := testAuthMiddleware(t)

	token, err := jwtSvc.GenerateToken(&entity.User{ID: 7, Email: "p@example.com", Role: entity.RoleUser})
	require.NoError(t, err)

	var gotUserID uint
	var gotIsAdmin bool
	router := gin.New()
	router.GET("/protected", m.RequireAuth(), func(c *gin.Context) {
		gotUserID = c.MustGet("user_id").(uint)
		gotIsAdmin = c.MustGet("is_admin").(bool)
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(7), gotUserID)
	assert.False(t, gotIsAdmin)
}

func TestAdminOnly_ForbiddenForRegularUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, jwtSvc := testAuthMiddleware(t)

	token, err := jwtSvc.GenerateToken(&entity.User{ID: 7, Email: "p@example.com", Role: entity.RoleUser})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/admin", m.RequireAuth(), m.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/admin", "Bearer "+token)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTHORIZATION", decodeEnvelope(t, w).Error.Kind)
}

func TestAdminOnly_AllowsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, jwtSvc := testAuthMiddleware(t)

	token, err := jwtSvc.GenerateToken(&entity.User{ID: 1, Email: "a@example.com", Role: entity.RoleAdmin})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/admin", m.RequireAuth(), m.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/admin", "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractUintParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotID uint
	router := gin.New()
	router.GET("/rounds/:id", ExtractUintParam("id", "roundID"), func(c *gin.Context) {
		gotID = c.MustGet("roundID").(uint)
		c.Status(http.StatusOK)
	})

	// Валидный ID проходит и сохраняется в контексте
	w := performRequest(router, http.MethodGet, "/rounds/42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(42), gotID)

	// Нечисловой и нулевой ID отклоняются до обработчика
	for _, path := range []string{"/rounds/abc", "/rounds/0", "/rounds/-5"} {
		w := performRequest(router, http.MethodGet, path, "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, path)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success, path)
		assert.Equal(t, "VALIDATION", env.Error.Kind, path)
	}
}
