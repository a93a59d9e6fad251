package middleware

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/spinwheel-api/internal/handler/helper"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// ExtractUintParam разбирает числовой параметр пути и кладет значение
// в контекст Gin под заданным ключом ("id" -> "roundID" или "userID").
// Идентификаторы раундов и аккаунтов начинаются с 1, поэтому ноль
// отклоняется наравне с нечисловым значением — обработчики дальше
// работают с заведомо валидным uint.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			helper.RespondError(c, fmt.Errorf("%w: parameter %q must be a positive integer",
				apperrors.ErrValidation, paramName))
			c.Abort()
			return
		}
		c.Set(contextKey, uint(id))
		c.Next()
	}
}
