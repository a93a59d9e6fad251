package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/handler/helper"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
	"github.com/yourusername/spinwheel-api/pkg/auth"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов.
// Отказы отвечают тем же конвертом {success, error{kind, message}},
// что и обработчики.
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth проверяет, аутентифицирован ли пользователь
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			helper.RespondError(c, fmt.Errorf("%w: authorization header is required", apperrors.ErrUnauthorized))
			c.Abort()
			return
		}

		// Формат заголовка: Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			helper.RespondError(c, fmt.Errorf("%w: authorization header format must be Bearer {token}", apperrors.ErrUnauthorized))
			c.Abort()
			return
		}

		claims, err := m.jwtService.ParseToken(parts[1])
		if err != nil {
			helper.RespondError(c, fmt.Errorf("%w: invalid or expired token", apperrors.ErrUnauthorized))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("is_admin", claims.Role == entity.RoleAdmin)

		c.Next()
	}
}

// AdminOnly проверяет, является ли пользователь администратором.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user_id"); !exists {
			helper.RespondError(c, fmt.Errorf("%w: authentication required", apperrors.ErrUnauthorized))
			c.Abort()
			return
		}

		isAdmin, exists := c.Get("is_admin")
		if !exists || !isAdmin.(bool) {
			helper.RespondError(c, fmt.Errorf("%w: admin rights required", apperrors.ErrForbidden))
			c.Abort()
			return
		}

		c.Next()
	}
}
