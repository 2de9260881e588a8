package repository

import (
	"context"
	"time"

	"github.com/zigg31416/Chatx/internal/domain"
)

// MessageRepository 定义了消息正文和每个房间有序消息 ID 列表的存储操作。
type MessageRepository interface {
	// Append 保存消息正文 (带过期时间) 并将其 ID 追加到房间消息列表末尾。
	Append(ctx context.Context, msg *domain.Message, ttl time.Duration) error

	// RecentIDs 返回房间消息列表末尾的最多 limit 个 ID (从旧到新)。
	RecentIDs(ctx context.Context, roomID string, limit int) ([]string, error)

	// FindByIDs 批量读取消息正文，已过期的 ID 被跳过，结果保持入参顺序。
	FindByIDs(ctx context.Context, ids []string) ([]domain.Message, error)

	// PruneExpired 从房间消息列表头部移除正文已过期的 ID，返回移除数量。
	PruneExpired(ctx context.Context, roomID string) (int, error)
}
