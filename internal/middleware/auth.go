package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/service"
)

// gin 上下文中保存会话信息的键
const (
	ContextSessionID = "session_id"
	ContextRoomID    = "room_id"
	ContextRole      = "role"
)

// ErrMissingToken 表示请求中没有会话令牌
var ErrMissingToken = errors.New("missing session token")

// SessionAuth 返回一个 Gin 中间件，用于验证会话令牌。
// 令牌可以放在 Authorization: Bearer 头中，或者作为 ?token= 查询参数
// (浏览器建立 WebSocket 时无法设置请求头)。
func SessionAuth(tokens *service.TokenService) gin.HandlerFunc {
	if tokens == nil {
		panic("TokenService cannot be nil for SessionAuth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: Could not extract session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: Invalid session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session token"})
			return
		}

		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextRoomID, claims.RoomID)
		c.Set(ContextRole, string(claims.Role))
		logrus.WithField("session_id", claims.SessionID).Debug("Auth middleware: Session authenticated")

		c.Next()
	}
}

// SessionID 返回 SessionAuth 写入上下文的会话 ID
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}

// extractToken 从 Authorization 头或 token 查询参数中提取令牌
func extractToken(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("authorization header must be 'Bearer <token>'")
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}
