package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/spinwheel-api/internal/handler/dto"
	"github.com/yourusername/spinwheel-api/internal/handler/helper"
	"github.com/yourusername/spinwheel-api/internal/service"
)

// UserHandler обрабатывает запросы профилей, балансов и журнала
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler создает новый обработчик аккаунтов
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe возвращает профиль текущего аккаунта
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	user, err := h.userService.GetByID(userID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewUserResponse(user))
}

// GetBalance возвращает текущий баланс аккаунта
func (h *UserHandler) GetBalance(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	balance, err := h.userService.GetBalance(userID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, gin.H{"balance": balance})
}

// ListTransactions возвращает журнал текущего аккаунта постранично
func (h *UserHandler) ListTransactions(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	kind := c.Query("kind")

	records, total, err := h.userService.ListTransactions(userID, kind, limit, offset)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewTransactionListResponse(records, total, limit, offset))
}

// GetLeaderboard возвращает таблицу лидеров
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, total, err := h.userService.GetLeaderboard(limit, offset)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewLeaderboardResponse(users, total, offset))
}

// SetActiveRequest представляет запрос на включение/выключение аккаунта
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive включает или выключает аккаунт (только админ)
func (h *UserHandler) SetActive(c *gin.Context) {
	targetID := c.MustGet("userID").(uint)

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helper.RespondBindingError(c, err)
		return
	}

	if err := h.userService.SetActive(targetID, *req.Active); err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, gin.H{"user_id": targetID, "active": *req.Active})
}
