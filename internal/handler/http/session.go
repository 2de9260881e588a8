package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/hub"
	"github.com/zigg31416/Chatx/internal/middleware"
)

// maxDrainEvents 单次轮询最多返回的事件数
const maxDrainEvents = 100

// SessionHandler 处理需要会话令牌的请求
type SessionHandler struct {
	hub *hub.Hub
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(h *hub.Hub) *SessionHandler {
	if h == nil {
		panic("Hub cannot be nil for SessionHandler")
	}
	return &SessionHandler{hub: h}
}

// SendMessageRequest 定义发送消息请求的结构体
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListMessages 返回会话所在房间的最近消息 (?limit=)
func (h *SessionHandler) ListMessages(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	messages, err := h.hub.Recent(c.Request.Context(), middleware.SessionID(c), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": messages})
}

// SendMessage 以会话用户身份发送消息
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "content is required")
		return
	}
	msg, err := h.hub.Send(c.Request.Context(), middleware.SessionID(c), req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

// PollEvents 取出会话 inbox 中的待处理事件 (?max=)，供不使用 WebSocket 的客户端轮询
func (h *SessionHandler) PollEvents(c *gin.Context) {
	max, ok := queryInt(c, "max")
	if !ok {
		return
	}
	if max <= 0 || max > maxDrainEvents {
		max = maxDrainEvents
	}
	s, err := h.hub.Session(middleware.SessionID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"events": s.Drain(max)})
}

// ListRequests 返回待处理的加入申请 (仅房主)
func (h *SessionHandler) ListRequests(c *gin.Context) {
	requests, err := h.hub.Pending(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"requests": requests})
}

// ApproveRequest 批准加入申请 (仅房主)
func (h *SessionHandler) ApproveRequest(c *gin.Context) {
	h.resolve(c, domain.RequestApproved)
}

// RejectRequest 拒绝加入申请 (仅房主)
func (h *SessionHandler) RejectRequest(c *gin.Context) {
	h.resolve(c, domain.RequestRejected)
}

func (h *SessionHandler) resolve(c *gin.Context, status domain.RequestStatus) {
	sessionID := middleware.SessionID(c)
	requestID := c.Param("requestId")

	var (
		req *domain.JoinRequest
		err error
	)
	if status == domain.RequestApproved {
		req, err = h.hub.Approve(c.Request.Context(), sessionID, requestID)
	} else {
		req, err = h.hub.Reject(c.Request.Context(), sessionID, requestID)
	}
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"session_id": sessionID, "request_id": requestID, "status": status}).Info("Join request resolved by host")
	SuccessResponse(c, http.StatusOK, req)
}

// Leave 离开房间并结束会话
func (h *SessionHandler) Leave(c *gin.Context) {
	if err := h.hub.Leave(c.Request.Context(), middleware.SessionID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Close 房主关闭房间并结束会话
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.hub.HostClose(c.Request.Context(), middleware.SessionID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryInt 解析可选的整数查询参数，格式错误时写入 400 并返回 false。
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}
