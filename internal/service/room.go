package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

const (
	roomCodeMin         = 10000
	roomCodeSpace       = 90000 // [10000, 99999]
	maxRoomCodeAttempts = 10
)

// RoomService 负责房间的创建、查找和关闭。
type RoomService struct {
	roomRepo repository.RoomRepository
	bus      repository.EventBus
	now      func() time.Time
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, bus repository.EventBus) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if bus == nil {
		panic("EventBus cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, bus: bus, now: time.Now}
}

// CreateRoom 创建一个新房间。
// 邀请码通过 SET NX 占用来保证在存活期内唯一，冲突时换一个码重试。
func (s *RoomService) CreateRoom(ctx context.Context, name, hostName string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	hostName = strings.TrimSpace(hostName)
	if name == "" || hostName == "" {
		return nil, fmt.Errorf("%w: room name and host name are required", ErrInvalidInput)
	}

	roomID := uuid.NewString()
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "host_name": hostName})

	// 1. 占用唯一邀请码
	code, err := s.reserveUniqueCode(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to reserve a unique room code")
		return nil, err
	}
	logCtx = logCtx.WithField("code", code)

	// 2. 写入房间记录
	room := &domain.Room{
		ID:        roomID,
		Code:      code,
		Name:      name,
		HostName:  hostName,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.roomRepo.Create(ctx, room, domain.RoomTTL); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		// 回滚邀请码，避免指向不存在的房间
		if relErr := s.roomRepo.ReleaseCode(ctx, code); relErr != nil {
			logCtx.WithError(relErr).Warn("Failed to release room code after create failure")
		}
		return nil, storeError(err)
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// GetRoomByCode 通过邀请码查找活跃房间。
// 未映射、记录缺失以及已关闭三种情况统一返回 ErrRoomNotFound。
func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	code = strings.TrimSpace(code)
	if !domain.IsValidRoomCode(code) {
		return nil, fmt.Errorf("%w: room code must be 5 digits", ErrInvalidInput)
	}
	logCtx := logrus.WithField("code", code)

	roomID, err := s.roomRepo.FindIDByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Debug("GetRoomByCode: code not mapped")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("GetRoomByCode: repository error resolving code")
		return nil, storeError(err)
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		logCtx.WithField("room_id", room.ID).Debug("GetRoomByCode: room is inactive")
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetRoom 按 ID 读取房间 (不检查是否活跃)。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("GetRoom: repository error")
		return nil, storeError(err)
	}
	return room, nil
}

// CloseRoom 将房间标记为不活跃 (保留剩余 TTL)，并在控制频道发布 closed 事件。
func (s *RoomService) CloseRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room.IsActive = false
	if err := s.roomRepo.Update(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			// 读取与写入之间过期
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("CloseRoom: failed to persist room")
		return nil, storeError(err)
	}

	if err := s.bus.Publish(ctx, domain.ChannelRoom, room.ID, domain.RoomEvent{Type: domain.RoomEventClosed}); err != nil {
		logCtx.WithError(err).Warn("CloseRoom: failed to publish closed event")
	}
	logCtx.Info("Room closed")
	return room, nil
}

// --- 私有辅助函数 ---

// reserveUniqueCode 随机生成邀请码并尝试占用，最多尝试 maxRoomCodeAttempts 次。
func (s *RoomService) reserveUniqueCode(ctx context.Context, roomID string) (string, error) {
	for attempt := 1; attempt <= maxRoomCodeAttempts; attempt++ {
		code, err := randomRoomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		err = s.roomRepo.ReserveCode(ctx, code, roomID, domain.RoomTTL)
		if err == nil {
			logrus.WithField("code", code).Debugf("Reserved room code after %d attempt(s).", attempt)
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			return "", storeError(err)
		}
		logrus.WithField("code", code).Warnf("Room code already in use, retrying (attempt %d)...", attempt)
	}
	return "", fmt.Errorf("%w: no free room code after %d attempts", ErrConflict, maxRoomCodeAttempts)
}

func randomRoomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(roomCodeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", n.Int64()+roomCodeMin), nil
}
