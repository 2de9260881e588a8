package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
)

// MaxMessageListLength 每个房间消息 ID 列表保留的最大长度
const MaxMessageListLength = 1000

// pruneBatchSize 每次清理时检查的列表头部 ID 数量
const pruneBatchSize = 100

// RedisMessageRepository 是 MessageRepository 接口的 Redis 实现
type RedisMessageRepository struct {
	client *redis.Client
	keys   keyspace
}

// NewRedisMessageRepository 创建 RedisMessageRepository 实例
func NewRedisMessageRepository(client *redis.Client, keyPrefix string) *RedisMessageRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisMessageRepository")
	}
	return &RedisMessageRepository{client: client, keys: keyspace{prefix: keyPrefix}}
}

// Append 写入消息正文并追加到房间列表。
// 列表 key 每次追加都刷新为同样的 TTL，并裁剪到最近 MaxMessageListLength 条。
func (r *RedisMessageRepository) Append(ctx context.Context, msg *domain.Message, ttl time.Duration) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message %s: %w", msg.ID, err)
	}
	listKey := r.keys.messageList(msg.RoomID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.message(msg.ID), data, ttl)
		pipe.RPush(ctx, listKey, msg.ID)
		pipe.LTrim(ctx, listKey, -MaxMessageListLength, -1)
		pipe.Expire(ctx, listKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to append message %s to %s: %w", msg.ID, listKey, err)
	}
	return nil
}

// RecentIDs 返回列表末尾最多 limit 个消息 ID
func (r *RedisMessageRepository) RecentIDs(ctx context.Context, roomID string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	key := r.keys.messageList(roomID)
	ids, err := r.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get recent message ids from %s: %w", key, err)
	}
	return ids, nil
}

// FindByIDs 使用 MGET 批量读取消息正文，跳过已过期或损坏的记录
func (r *RedisMessageRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Message, error) {
	if len(ids) == 0 {
		return []domain.Message{}, nil
	}
	values, err := r.client.MGet(ctx, r.keys.messageKeys(ids)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to mget %d messages: %w", len(ids), err)
	}
	messages := make([]domain.Message, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // 正文已过期
		}
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logrus.Warnf("redis: failed to unmarshal message %s: %v, data: %s", ids[i], err, raw)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// PruneExpired 检查列表头部的一批 ID，移除正文已过期的条目
func (r *RedisMessageRepository) PruneExpired(ctx context.Context, roomID string) (int, error) {
	listKey := r.keys.messageList(roomID)
	ids, err := r.client.LRange(ctx, listKey, 0, pruneBatchSize-1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to read head of %s: %w", listKey, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	values, err := r.client.MGet(ctx, r.keys.messageKeys(ids)...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to mget message heads of %s: %w", listKey, err)
	}
	pipe := r.client.Pipeline()
	removed := 0
	for i, v := range values {
		if v != nil {
			continue
		}
		pipe.LRem(ctx, listKey, 1, ids[i])
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to prune expired ids from %s: %w", listKey, err)
	}
	return removed, nil
}
