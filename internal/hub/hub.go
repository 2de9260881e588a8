package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
	"github.com/zigg31416/Chatx/internal/service"
)

// RoomRegistry 是 Hub 依赖的房间操作 (由 service.RoomService 实现)。
type RoomRegistry interface {
	CreateRoom(ctx context.Context, name, hostName string) (*domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CloseRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

// MessageLog 是 Hub 依赖的消息操作 (由 service.MessageService 实现)。
type MessageLog interface {
	Append(ctx context.Context, roomID, username, content string, msgType domain.MessageType) (*domain.Message, error)
	Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}

// RequestQueue 是 Hub 依赖的加入申请操作 (由 service.JoinRequestService 实现)。
type RequestQueue interface {
	Request(ctx context.Context, roomID, username string) (*domain.JoinRequest, error)
	Get(ctx context.Context, requestID string) (*domain.JoinRequest, error)
	Pending(ctx context.Context, roomID string) ([]domain.JoinRequest, error)
	Resolve(ctx context.Context, requestID string, status domain.RequestStatus) (*domain.JoinRequest, error)
	ConsumeApproval(ctx context.Context, requestID string) (*domain.JoinRequest, error)
}

// ErrHubClosed 表示 Hub 已经关闭，不再接受新会话。
var ErrHubClosed = errors.New("hub is shutting down")

// Options 控制会话收件箱和监听器的行为。
type Options struct {
	InboxSize   int                    // 每个会话 inbox 的容量，默认 256
	SeenSize    int                    // 每个会话记住的消息 ID 数量，默认 1024
	NewBackOff  func() backoff.BackOff // 重新订阅的退避策略，默认 DefaultBackOff
	IdleTimeout time.Duration          // 超过该时长没有客户端活动的会话会被回收，默认 30 分钟
	Now         func() time.Time       // 时钟，测试时替换
}

func (o Options) withDefaults() Options {
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
	if o.SeenSize <= 0 {
		o.SeenSize = 1024
	}
	if o.NewBackOff == nil {
		o.NewBackOff = DefaultBackOff
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Hub 是会话协调器：维护活跃会话，为每个会话启动监听器，
// 并提供前端调用的进入、发送、审批、离开和关闭操作。
type Hub struct {
	rooms    RoomRegistry
	messages MessageLog
	requests RequestQueue
	bus      repository.EventBus
	opts     Options

	// 监听器的根 context，Shutdown 时取消
	ctx    context.Context
	cancel context.CancelFunc

	sessionsMu sync.RWMutex
	sessions   map[string]*Session
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(rooms RoomRegistry, messages MessageLog, requests RequestQueue, bus repository.EventBus, opts Options) *Hub {
	if rooms == nil || messages == nil || requests == nil {
		panic("services cannot be nil for Hub")
	}
	if bus == nil {
		panic("EventBus cannot be nil for Hub")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:    rooms,
		messages: messages,
		requests: requests,
		bus:      bus,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// EnterAsHost 创建房间并以房主身份进入，启动消息和加入申请监听器。
func (h *Hub) EnterAsHost(ctx context.Context, roomName, hostName string) (*Session, error) {
	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}
	room, err := h.rooms.CreateRoom(ctx, roomName, hostName)
	if err != nil {
		return nil, err
	}
	s, err := h.register(room, room.HostName, domain.RoleHost)
	if err != nil {
		return nil, err
	}
	h.startListener(s, domain.ChannelMessages)
	h.startListener(s, domain.ChannelJoinRequests)

	logrus.WithFields(logrus.Fields{"session_id": s.ID, "room_id": room.ID, "code": room.Code}).Info("Host session started")
	return s, nil
}

// EnterAsGuest 通过邀请码直接进入房间，追加加入通知，只启动消息监听器。
func (h *Hub) EnterAsGuest(ctx context.Context, code, username string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", service.ErrInvalidInput)
	}
	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}
	room, err := h.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s, err := h.register(room, username, domain.RoleGuest)
	if err != nil {
		return nil, err
	}
	h.startListener(s, domain.ChannelMessages)
	if _, err := h.messages.Append(ctx, room.ID, domain.SystemUsername, domain.JoinedNotice(username), domain.MessageTypeSystem); err != nil {
		h.discard(s)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"session_id": s.ID, "room_id": room.ID, "username": username}).Info("Guest session started")
	return s, nil
}

// RequestEntry 为需要审批的访客创建加入申请，此时不创建会话。
func (h *Hub) RequestEntry(ctx context.Context, code, username string) (*domain.JoinRequest, error) {
	room, err := h.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return h.requests.Request(ctx, room.ID, username)
}

// EnterApproved 用已批准的申请进入房间。每个批准只能使用一次。
// 加入通知已在审批时追加，这里不再重复。
func (h *Hub) EnterApproved(ctx context.Context, requestID string) (*Session, error) {
	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}
	req, err := h.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestApproved {
		return nil, fmt.Errorf("%w: join request is %s", service.ErrInvalidState, req.Status)
	}
	room, err := h.rooms.GetRoom(ctx, req.ChatroomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, service.ErrRoomNotFound
	}
	if _, err := h.requests.ConsumeApproval(ctx, requestID); err != nil {
		return nil, err
	}

	s, err := h.register(room, req.Username, domain.RoleGuest)
	if err != nil {
		return nil, err
	}
	h.startListener(s, domain.ChannelMessages)

	logrus.WithFields(logrus.Fields{"session_id": s.ID, "room_id": room.ID, "request_id": requestID}).Info("Approved guest session started")
	return s, nil
}

// Send 以会话用户的身份发送一条消息。
// 房间已关闭或过期时会话被结束并返回 ErrRoomNotFound。
func (h *Hub) Send(ctx context.Context, sessionID, content string) (*domain.Message, error) {
	s, err := h.Session(sessionID)
	if err != nil {
		return nil, err
	}
	room, err := h.rooms.GetRoom(ctx, s.RoomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			h.discard(s)
		}
		return nil, err
	}
	if !room.IsActive {
		h.discard(s)
		return nil, service.ErrRoomNotFound
	}
	return h.messages.Append(ctx, s.RoomID, s.Username, content, domain.MessageTypeUser)
}

// Recent 返回会话所在房间的最近消息。
func (h *Hub) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	s, err := h.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return h.messages.Recent(ctx, s.RoomID, limit)
}

// Pending 返回房间的待处理申请，仅房主可用。
func (h *Hub) Pending(ctx context.Context, sessionID string) ([]domain.JoinRequest, error) {
	s, err := h.hostSession(sessionID)
	if err != nil {
		return nil, err
	}
	return h.requests.Pending(ctx, s.RoomID)
}

// Approve 批准加入申请并追加加入通知，仅房主可用。
// 批准已经生效后通知写入失败只记录日志：申请无法再次批准，返回错误只会让房主误以为审批失败。
func (h *Hub) Approve(ctx context.Context, sessionID, requestID string) (*domain.JoinRequest, error) {
	req, err := h.resolve(ctx, sessionID, requestID, domain.RequestApproved)
	if err != nil {
		return nil, err
	}
	if _, err := h.messages.Append(ctx, req.ChatroomID, domain.SystemUsername, domain.JoinedNotice(req.Username), domain.MessageTypeSystem); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":    req.ChatroomID,
			"request_id": req.ID,
		}).WithError(err).Error("Join request approved but join notice could not be appended")
	}
	return req, nil
}

// Reject 拒绝加入申请，仅房主可用。
func (h *Hub) Reject(ctx context.Context, sessionID, requestID string) (*domain.JoinRequest, error) {
	return h.resolve(ctx, sessionID, requestID, domain.RequestRejected)
}

func (h *Hub) resolve(ctx context.Context, sessionID, requestID string, status domain.RequestStatus) (*domain.JoinRequest, error) {
	s, err := h.hostSession(sessionID)
	if err != nil {
		return nil, err
	}
	req, err := h.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// 其它房间的申请对该房主不可见
	if req.ChatroomID != s.RoomID {
		return nil, service.ErrRequestNotFound
	}
	return h.requests.Resolve(ctx, requestID, status)
}

// Leave 追加离开通知并结束会话，房间本身不受影响。
// 通知写入失败时会话保留，调用方可以重试。
func (h *Hub) Leave(ctx context.Context, sessionID string) error {
	s, err := h.Session(sessionID)
	if err != nil {
		return err
	}
	if _, err := h.messages.Append(ctx, s.RoomID, domain.SystemUsername, domain.LeftNotice(s.Username), domain.MessageTypeSystem); err != nil {
		return err
	}
	h.discard(s)
	logrus.WithFields(logrus.Fields{"session_id": s.ID, "room_id": s.RoomID}).Info("Session left")
	return nil
}

// HostClose 追加关闭通知、关闭房间并结束房主会话。
// 房间已过期时会话同样结束，错误照常返回。
func (h *Hub) HostClose(ctx context.Context, sessionID string) error {
	s, err := h.hostSession(sessionID)
	if err != nil {
		return err
	}
	if _, err := h.messages.Append(ctx, s.RoomID, domain.SystemUsername, domain.ClosedNotice, domain.MessageTypeSystem); err != nil {
		return err
	}
	if _, err := h.rooms.CloseRoom(ctx, s.RoomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			h.discard(s)
		}
		return err
	}
	h.discard(s)
	logrus.WithFields(logrus.Fields{"session_id": s.ID, "room_id": s.RoomID}).Info("Room closed by host")
	return nil
}

// Session 按 ID 查找活跃会话，并把这次查找记为一次客户端活动。
func (h *Hub) Session(sessionID string) (*Session, error) {
	h.sessionsMu.RLock()
	s, ok := h.sessions[sessionID]
	h.sessionsMu.RUnlock()
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Discard 不追加任何通知地结束会话，用于会话刚创建就需要撤销的场景。
func (h *Hub) Discard(sessionID string) {
	h.sessionsMu.RLock()
	s, ok := h.sessions[sessionID]
	h.sessionsMu.RUnlock()
	if ok {
		h.discard(s)
	}
}

// ReapSessions 回收房间已关闭或已过期的会话，以及超过 IdleTimeout 没有客户端活动的会话。
// 空闲的访客会在房间中留下离开通知。查询房间失败时只按空闲时间回收，错误合并返回。
func (h *Hub) ReapSessions(ctx context.Context) (int, error) {
	h.sessionsMu.RLock()
	byRoom := make(map[string][]*Session)
	for _, s := range h.sessions {
		byRoom[s.RoomID] = append(byRoom[s.RoomID], s)
	}
	h.sessionsMu.RUnlock()

	idleBefore := h.opts.Now().Add(-h.opts.IdleTimeout)
	var (
		errs   []error
		reaped int
	)
	for roomID, sessions := range byRoom {
		roomGone := false
		room, err := h.rooms.GetRoom(ctx, roomID)
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			roomGone = true
		case err != nil:
			errs = append(errs, fmt.Errorf("room %s: %w", roomID, err))
		default:
			roomGone = !room.IsActive
		}

		for _, s := range sessions {
			idle := s.LastActive().Before(idleBefore)
			if !roomGone && !idle {
				continue
			}
			if !roomGone && !s.IsHost() {
				if _, err := h.messages.Append(ctx, roomID, domain.SystemUsername, domain.LeftNotice(s.Username), domain.MessageTypeSystem); err != nil {
					logrus.WithField("session_id", s.ID).WithError(err).Warn("Failed to append left notice for idle session")
				}
			}
			h.discard(s)
			reaped++
			logrus.WithFields(logrus.Fields{
				"session_id": s.ID,
				"room_id":    roomID,
				"room_gone":  roomGone,
				"idle":       idle,
			}).Info("Session reaped")
		}
	}
	return reaped, errors.Join(errs...)
}

// ActiveRoomIDs 返回至少有一个活跃会话的房间 ID。
func (h *Hub) ActiveRoomIDs() []string {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	seen := make(map[string]struct{}, len(h.sessions))
	ids := make([]string, 0, len(h.sessions))
	for _, s := range h.sessions {
		if _, ok := seen[s.RoomID]; ok {
			continue
		}
		seen[s.RoomID] = struct{}{}
		ids = append(ids, s.RoomID)
	}
	return ids
}

// Shutdown 停止所有会话的监听器并清空会话表。
func (h *Hub) Shutdown() {
	h.cancel()
	h.sessionsMu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.sessionsMu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	logrus.WithField("sessions", len(sessions)).Info("Hub shut down")
}

// --- 私有辅助函数 ---

// register 登记新会话。Shutdown 之后登记的会话监听器无法启动，因此直接拒绝。
func (h *Hub) register(room *domain.Room, username string, role domain.Role) (*Session, error) {
	s := newSession(uuid.NewString(), room, username, role, h.opts)
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()
	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}
	h.sessions[s.ID] = s
	return s, nil
}

// discard 从会话表中移除会话并停止其监听器。
func (h *Hub) discard(s *Session) {
	h.sessionsMu.Lock()
	delete(h.sessions, s.ID)
	h.sessionsMu.Unlock()
	s.stop()
}

func (h *Hub) hostSession(sessionID string) (*Session, error) {
	s, err := h.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsHost() {
		return nil, service.ErrNotHost
	}
	return s, nil
}
