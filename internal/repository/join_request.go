package repository

import (
	"context"
	"time"

	"github.com/zigg31416/Chatx/internal/domain"
)

// JoinRequestRepository 定义了加入申请及每个房间待处理集合的存储操作。
type JoinRequestRepository interface {
	// Create 保存申请 (带过期时间) 并将其 ID 加入房间的待处理集合。
	Create(ctx context.Context, req *domain.JoinRequest, ttl time.Duration) error

	// FindByID 读取申请，不存在或已过期时返回 ErrRequestNotFound。
	FindByID(ctx context.Context, id string) (*domain.JoinRequest, error)

	// PendingIDs 返回房间待处理集合中的全部申请 ID。
	PendingIDs(ctx context.Context, roomID string) ([]string, error)

	// FindByIDs 批量读取申请，已过期的 ID 被跳过。
	FindByIDs(ctx context.Context, ids []string) ([]domain.JoinRequest, error)

	// Transition 在乐观锁保护下读取申请并调用 mutate 修改它，
	// 然后保存 (保留过期时间)，若新状态为终态则从待处理集合中移除。
	// mutate 返回的错误原样返回；并发修改时返回 ErrConflict。
	Transition(ctx context.Context, id string, mutate func(req *domain.JoinRequest) error) (*domain.JoinRequest, error)

	// PruneExpired 从房间待处理集合中移除正文已过期的 ID，返回移除数量。
	PruneExpired(ctx context.Context, roomID string) (int, error)
}
