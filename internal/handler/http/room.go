package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/hub"
)

// RoomLookup 是 RoomHandler 依赖的只读房间查询。
type RoomLookup interface {
	GetRoomByCode(ctx context.Context, code string) (*domain.Room, error)
}

// RequestLookup 是 RoomHandler 依赖的加入申请查询。
type RequestLookup interface {
	Get(ctx context.Context, requestID string) (*domain.JoinRequest, error)
}

// TokenIssuer 为新会话签发令牌，由 service.TokenService 实现。
type TokenIssuer interface {
	Issue(sessionID, roomID string, role domain.Role) (string, error)
}

// RoomHandler 处理不需要会话的入口请求：创建、查询和加入房间。
type RoomHandler struct {
	hub             *hub.Hub
	rooms           RoomLookup
	requests        RequestLookup
	tokens          TokenIssuer
	requireApproval bool
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(h *hub.Hub, rooms RoomLookup, requests RequestLookup, tokens TokenIssuer, requireApproval bool) *RoomHandler {
	if h == nil || rooms == nil || requests == nil || tokens == nil {
		panic("dependencies cannot be nil for RoomHandler")
	}
	return &RoomHandler{hub: h, rooms: rooms, requests: requests, tokens: tokens, requireApproval: requireApproval}
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Name     string `json:"name" binding:"required"`
	HostName string `json:"host_name" binding:"required"`
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	Code     string `json:"code" binding:"required,len=5,numeric"`
	Username string `json:"username" binding:"required"`
}

// CreateRoom 创建房间并以房主身份进入
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "name and host_name are required")
		return
	}

	s, err := h.hub.EnterAsHost(c.Request.Context(), req.Name, req.HostName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusCreated, s)
}

// GetRoom 通过邀请码查询房间
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// JoinRoom 通过邀请码加入房间。
// 开启审批时只创建加入申请并返回 202，访客之后轮询申请状态。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "a 5-digit code and a username are required")
		return
	}
	ctx := c.Request.Context()

	if h.requireApproval {
		joinReq, err := h.hub.RequestEntry(ctx, req.Code, req.Username)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		SuccessResponse(c, http.StatusAccepted, joinReq)
		return
	}

	s, err := h.hub.EnterAsGuest(ctx, req.Code, req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, s)
}

// GetRequest 返回加入申请的当前状态
func (h *RoomHandler) GetRequest(c *gin.Context) {
	joinReq, err := h.requests.Get(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, joinReq)
}

// EnterApproved 使用已批准的申请进入房间
func (h *RoomHandler) EnterApproved(c *gin.Context) {
	s, err := h.hub.EnterApproved(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, s)
}

func (h *RoomHandler) respondWithSession(c *gin.Context, code int, s *hub.Session) {
	token, err := h.tokens.Issue(s.ID, s.RoomID, s.Role)
	if err != nil {
		logrus.WithField("session_id", s.ID).WithError(err).Error("Failed to issue session token")
		// 客户端拿不到令牌就无法使用该会话，不能让它留在 Hub 里
		h.hub.Discard(s.ID)
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, code, newSessionResponse(s, token))
}
