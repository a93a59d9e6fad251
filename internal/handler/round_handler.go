package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/handler/dto"
	"github.com/yourusername/spinwheel-api/internal/handler/helper"
	"github.com/yourusername/spinwheel-api/internal/service"
	"github.com/yourusername/spinwheel-api/internal/service/roundmanager"
)

// RoundHandler обрабатывает запросы, связанные с раундами
type RoundHandler struct {
	roundService *service.RoundService
	userService  *service.UserService
	scheduler    *roundmanager.Scheduler
}

// NewRoundHandler создает новый обработчик раундов
func NewRoundHandler(
	roundService *service.RoundService,
	userService *service.UserService,
	scheduler *roundmanager.Scheduler,
) *RoundHandler {
	return &RoundHandler{
		roundService: roundService,
		userService:  userService,
		scheduler:    scheduler,
	}
}

// CreateRoundRequest представляет запрос на создание раунда
type CreateRoundRequest struct {
	EntryFee        int64 `json:"entry_fee" binding:"required,min=1"`
	MaxParticipants int   `json:"max_participants" binding:"required,min=3,max=1000"`
}

// CreateRound обрабатывает запрос на создание раунда (только админ)
func (h *RoundHandler) CreateRound(c *gin.Context) {
	var req CreateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helper.RespondBindingError(c, err)
		return
	}

	adminID := c.MustGet("user_id").(uint)
	round, err := h.roundService.CreateRound(adminID, req.EntryFee, req.MaxParticipants)
	if err != nil {
		helper.RespondError(c, err)
		return
	}

	// Наблюдатель автостарта подхватывает раунд сразу, без ожидания обхода
	if h.scheduler != nil {
		h.scheduler.WatchRound(round)
	}

	helper.RespondData(c, http.StatusCreated, dto.NewRoundResponse(round))
}

// GetRound возвращает раунд по ID
func (h *RoundHandler) GetRound(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)

	round, err := h.roundService.GetByID(roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewRoundResponse(round))
}

// GetActiveRound возвращает текущий активный раунд
func (h *RoundHandler) GetActiveRound(c *gin.Context) {
	round, err := h.roundService.GetActive()
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewRoundResponse(round))
}

// JoinRound обрабатывает вступление в раунд
func (h *RoundHandler) JoinRound(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)
	userID := c.MustGet("user_id").(uint)

	round, err := h.roundService.Join(userID, roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewRoundResponse(round))
}

// CanJoin сообщает, может ли текущий аккаунт вступить в раунд.
// Ответ носит справочный характер: решение принимает Join в транзакции.
func (h *RoundHandler) CanJoin(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)
	userID := c.MustGet("user_id").(uint)

	ok, reason, err := h.roundService.CanJoin(userID, roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, gin.H{"can_join": ok, "reason": reason})
}

// StartRound запускает раунд досрочно, до наступления autoStartAt (только админ)
func (h *RoundHandler) StartRound(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)
	adminID := c.MustGet("user_id").(uint)

	round, err := h.roundService.StartByAdmin(adminID, roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}

	// Цикл выбывания стартует сразу, не дожидаясь фонового обхода
	if h.scheduler != nil {
		h.scheduler.WatchRound(round)
	}

	helper.RespondData(c, http.StatusOK, dto.NewRoundResponse(round))
}

// AbortRound отменяет waiting-раунд с возвратом взносов (только админ)
func (h *RoundHandler) AbortRound(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)
	adminID := c.MustGet("user_id").(uint)

	round, err := h.roundService.AbortByAdmin(adminID, roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewRoundResponse(round))
}

// ListHistory возвращает историю раундов постранично
func (h *RoundHandler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := c.Query("status")

	rounds, total, err := h.roundService.ListHistory(status, limit, offset)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewPaginatedRoundResponse(rounds, total, limit, offset))
}

// ListMyRounds возвращает раунды, в которых участвовал текущий аккаунт
func (h *RoundHandler) ListMyRounds(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rounds, total, err := h.roundService.ListUserRounds(userID, limit, offset)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, dto.NewPaginatedRoundResponse(rounds, total, limit, offset))
}

// ExportRoundLedger выгружает журнал раунда в формате xlsx (только админ)
func (h *RoundHandler) ExportRoundLedger(c *gin.Context) {
	roundID := c.MustGet("roundID").(uint)

	round, err := h.roundService.GetByID(roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	records, err := h.userService.ListRoundTransactions(roundID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"round_%d_ledger.xlsx\"", roundID))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Журнал"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[RoundHandler] Ошибка создания StreamWriter: %v", err)
		helper.RespondError(c, err)
		return
	}

	// Заголовки
	headers := []interface{}{"ID", "Аккаунт", "Тип", "Сумма", "Баланс до", "Баланс после", "Время"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[RoundHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i, r := range records {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		account := ""
		if r.UserID != nil {
			account = strconv.FormatUint(uint64(*r.UserID), 10)
		}

		row := []interface{}{r.ID, account, translateTxKind(r.Kind), r.Amount, r.BalanceBefore, r.BalanceAfter, r.CreatedAt.Format("2006-01-02 15:04:05")}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[RoundHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	// Итоговая строка: сумма всех движений раунда
	var sum int64
	for _, r := range records {
		sum += r.Amount
	}
	totalRow := []interface{}{"", "", "Итого", sum, "", "", round.Status}
	if err := sw.SetRow(fmt.Sprintf("A%d", len(records)+2), totalRow); err != nil {
		log.Printf("[RoundHandler] Ошибка записи итоговой строки: %v", err)
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[RoundHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[RoundHandler] Ошибка записи Excel в response: %v", err)
	}
}

// translateTxKind переводит тип записи журнала для выгрузки
func translateTxKind(kind string) string {
	switch kind {
	case entity.TxKindEntryFee:
		return "Взнос"
	case entity.TxKindRefund:
		return "Возврат"
	case entity.TxKindPrizeWin:
		return "Приз"
	case entity.TxKindAdminCommission:
		return "Комиссия админа"
	case entity.TxKindAppFee:
		return "Доля приложения"
	default:
		return kind
	}
}
