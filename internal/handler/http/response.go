package http

import (
	"github.com/gin-gonic/gin"

	"github.com/zigg31416/Chatx/internal/hub"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// SessionResponse 是进入房间成功后返回给客户端的会话信息。
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	RoomID    string `json:"room_id"`
	RoomCode  string `json:"room_code"`
	RoomName  string `json:"room_name"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

func newSessionResponse(s *hub.Session, token string) SessionResponse {
	return SessionResponse{
		SessionID: s.ID,
		Token:     token,
		RoomID:    s.RoomID,
		RoomCode:  s.RoomCode,
		RoomName:  s.RoomName,
		Username:  s.Username,
		Role:      string(s.Role),
	}
}
