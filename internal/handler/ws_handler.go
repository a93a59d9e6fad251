package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/spinwheel-api/internal/handler/helper"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
	"github.com/yourusername/spinwheel-api/internal/service"
	"github.com/yourusername/spinwheel-api/internal/websocket"
	"github.com/yourusername/spinwheel-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsManager      *websocket.Manager
	authService    *service.AuthService
	jwtService     *auth.JWTService
	allowedOrigins []string
	sendBuffer     int
	upgrader       gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsManager *websocket.Manager,
	authService *service.AuthService,
	jwtService *auth.JWTService,
	allowedOrigins []string,
	sendBuffer int,
) *WSHandler {
	h := &WSHandler{
		wsManager:      wsManager,
		authService:    authService,
		jwtService:     jwtService,
		allowedOrigins: allowedOrigins,
		sendBuffer:     sendBuffer,
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Пустой Origin — небраузерный клиент (мобильное приложение, curl)
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
			return false
		},
	}
	return h
}

// GetWSTicket выдает короткоживущий тикет для подключения.
// Тикет передается query-параметром при установке соединения, поэтому
// токен доступа никогда не попадает в URL.
func (h *WSHandler) GetWSTicket(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	ticket, err := h.authService.GenerateWSTicket(userID)
	if err != nil {
		helper.RespondError(c, err)
		return
	}
	helper.RespondData(c, http.StatusOK, gin.H{"ticket": ticket})
}

// GetMetrics возвращает метрики real-time подсистемы (только админ)
func (h *WSHandler) GetMetrics(c *gin.Context) {
	helper.RespondData(c, http.StatusOK, h.wsManager.GetMetrics())
}

// HandleConnection обрабатывает входящее WebSocket-соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		helper.RespondError(c, fmt.Errorf("%w: missing authentication ticket parameter", apperrors.ErrUnauthorized))
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		helper.RespondError(c, fmt.Errorf("%w: invalid or expired ticket", apperrors.ErrUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket: Error upgrading connection: %v", err)
		return
	}

	hub := h.wsManager.Hub()
	client := websocket.NewClient(hub, conn, claims.UserID, h.sendBuffer)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.wsManager)
}
