package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// RedisJoinRequestRepository 是 JoinRequestRepository 接口的 Redis 实现
type RedisJoinRequestRepository struct {
	client *redis.Client
	keys   keyspace
}

// NewRedisJoinRequestRepository 创建 RedisJoinRequestRepository 实例
func NewRedisJoinRequestRepository(client *redis.Client, keyPrefix string) *RedisJoinRequestRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisJoinRequestRepository")
	}
	return &RedisJoinRequestRepository{client: client, keys: keyspace{prefix: keyPrefix}}
}

// Create 写入申请并加入待处理集合。集合本身随房间一起过期。
func (r *RedisJoinRequestRepository) Create(ctx context.Context, req *domain.JoinRequest, ttl time.Duration) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal join request %s: %w", req.ID, err)
	}
	setKey := r.keys.pendingRequests(req.ChatroomID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.request(req.ID), data, ttl)
		pipe.SAdd(ctx, setKey, req.ID)
		pipe.Expire(ctx, setKey, domain.RoomTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to create join request %s in %s: %w", req.ID, setKey, err)
	}
	return nil
}

// FindByID 读取单个申请
func (r *RedisJoinRequestRepository) FindByID(ctx context.Context, id string) (*domain.JoinRequest, error) {
	key := r.keys.request(id)
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRequestNotFound
		}
		return nil, fmt.Errorf("redis: failed to get join request from %s: %w", key, err)
	}
	var req domain.JoinRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal join request from %s: %w", key, err)
	}
	return &req, nil
}

// PendingIDs 返回待处理集合的成员
func (r *RedisJoinRequestRepository) PendingIDs(ctx context.Context, roomID string) ([]string, error) {
	key := r.keys.pendingRequests(roomID)
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get pending request ids from %s: %w", key, err)
	}
	return ids, nil
}

// FindByIDs 使用 MGET 批量读取申请，跳过已过期或损坏的记录
func (r *RedisJoinRequestRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.JoinRequest, error) {
	if len(ids) == 0 {
		return []domain.JoinRequest{}, nil
	}
	values, err := r.client.MGet(ctx, r.keys.requestKeys(ids)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to mget %d join requests: %w", len(ids), err)
	}
	requests := make([]domain.JoinRequest, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var req domain.JoinRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			logrus.Warnf("redis: failed to unmarshal join request %s: %v, data: %s", ids[i], err, raw)
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Transition 基于 WATCH 的乐观锁状态变更。
// 在 GET 与 EXEC 之间若有其它客户端修改了该申请，EXEC 失败并返回 ErrConflict。
func (r *RedisJoinRequestRepository) Transition(ctx context.Context, id string, mutate func(req *domain.JoinRequest) error) (*domain.JoinRequest, error) {
	key := r.keys.request(id)
	var updated *domain.JoinRequest

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repository.ErrRequestNotFound
			}
			return fmt.Errorf("redis: failed to get join request from %s: %w", key, err)
		}
		var req domain.JoinRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return fmt.Errorf("redis: failed to unmarshal join request from %s: %w", key, err)
		}
		if err := mutate(&req); err != nil {
			return err
		}
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal join request %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			if req.Status.IsTerminal() {
				pipe.SRem(ctx, r.keys.pendingRequests(req.ChatroomID), req.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = &req
		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

// PruneExpired 移除待处理集合中正文已过期的申请 ID
func (r *RedisJoinRequestRepository) PruneExpired(ctx context.Context, roomID string) (int, error) {
	setKey := r.keys.pendingRequests(roomID)
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to get members of %s: %w", setKey, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	values, err := r.client.MGet(ctx, r.keys.requestKeys(ids)...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to mget pending requests of %s: %w", setKey, err)
	}
	expired := make([]interface{}, 0)
	for i, v := range values {
		if v == nil {
			expired = append(expired, ids[i])
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := r.client.SRem(ctx, setKey, expired...).Err(); err != nil {
		return 0, fmt.Errorf("redis: failed to prune expired ids from %s: %w", setKey, err)
	}
	return len(expired), nil
}
