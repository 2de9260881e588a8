package repository

import (
	"context"
	"time"

	"github.com/zigg31416/Chatx/internal/domain"
)

// RoomRepository 定义了房间记录及邀请码索引的存储操作。
type RoomRepository interface {
	// ReserveCode 原子地占用邀请码 (code -> roomID)，并设置过期时间。
	// 邀请码已被占用时返回 ErrDuplicateEntry。
	ReserveCode(ctx context.Context, code, roomID string, ttl time.Duration) error

	// ReleaseCode 释放邀请码，用于创建房间失败后的回滚。
	ReleaseCode(ctx context.Context, code string) error

	// FindIDByCode 根据邀请码查找房间 ID，未映射时返回 ErrRoomNotFound。
	FindIDByCode(ctx context.Context, code string) (string, error)

	// FindByID 根据房间 ID 查找房间，记录不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Create 写入新房间记录并设置过期时间。
	Create(ctx context.Context, room *domain.Room, ttl time.Duration) error

	// Update 覆盖已存在的房间记录，保留剩余的过期时间。
	// 记录已不存在时返回 ErrRoomNotFound。
	Update(ctx context.Context, room *domain.Room) error
}
