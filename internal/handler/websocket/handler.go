package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	httpHandler "github.com/zigg31416/Chatx/internal/handler/http"
	"github.com/zigg31416/Chatx/internal/hub"
	"github.com/zigg31416/Chatx/internal/middleware"
)

// WebSocketHandler 负责把已认证的会话升级为 WebSocket 推送连接
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	hub       *hub.Hub
	sendRate  rate.Limit
	sendBurst int
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时允许所有来源；sendPerSecond 限制每个连接的发送频率。
func NewWebSocketHandler(h *hub.Hub, allowedOrigin string, sendPerSecond float64) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if sendPerSecond <= 0 {
		sendPerSecond = 5
	}
	burst := int(sendPerSecond)
	if burst < 1 {
		burst = 1
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return strings.EqualFold(origin, allowedOrigin)
		},
	}

	return &WebSocketHandler{
		upgrader:  upgrader,
		hub:       h,
		sendRate:  rate.Limit(sendPerSecond),
		sendBurst: burst,
	}
}

// HandleConnection 处理 WebSocket 连接请求 (/ws/session)
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	logCtx := logrus.WithField("session_id", sessionID)

	// 升级之前确认会话仍然存在，此时还能返回 HTTP 错误
	session, err := h.hub.Session(sessionID)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Session not found")
		httpHandler.HandleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写入了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.WithField("room_id", session.RoomID).Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, session, rate.NewLimiter(h.sendRate, h.sendBurst))
	client.Run()
}
