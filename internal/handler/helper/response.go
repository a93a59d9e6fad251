package helper

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// Ответы держат единый конверт: {success, data} либо {success, error{kind, message}}.
// Клиенты различают классы ошибок по kind, не по HTTP-статусу.

// RespondData отправляет успешный ответ в едином конверте
func RespondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// RespondError сопоставляет ошибку закрытой таксономии с HTTP-статусом
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, apperrors.ErrAccountInactive):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotEnoughParticipants):
		status = http.StatusConflict
	default:
		log.Printf("ERROR: Internal server error: %v", err)
		message = "Internal server error"
	}

	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    apperrors.Kind(err),
			"message": message,
		},
	})
}

// RespondBindingError приводит ошибку разбора запроса к таксономии VALIDATION
func RespondBindingError(c *gin.Context, err error) {
	RespondError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
}
