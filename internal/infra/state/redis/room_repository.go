package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// RedisRoomRepository 是 RoomRepository 接口的 Redis 实现
type RedisRoomRepository struct {
	client *redis.Client
	keys   keyspace
}

// NewRedisRoomRepository 创建 RedisRoomRepository 实例
func NewRedisRoomRepository(client *redis.Client, keyPrefix string) *RedisRoomRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomRepository")
	}
	return &RedisRoomRepository{client: client, keys: keyspace{prefix: keyPrefix}}
}

// ReserveCode 使用 SET NX 占用邀请码，保证存活期内一个邀请码只对应一个房间。
func (r *RedisRoomRepository) ReserveCode(ctx context.Context, code, roomID string, ttl time.Duration) error {
	key := r.keys.roomCode(code)
	ok, err := r.client.SetNX(ctx, key, roomID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to reserve room code on %s: %w", key, err)
	}
	if !ok {
		return repository.ErrDuplicateEntry
	}
	return nil
}

// ReleaseCode 删除邀请码索引
func (r *RedisRoomRepository) ReleaseCode(ctx context.Context, code string) error {
	key := r.keys.roomCode(code)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to release room code on %s: %w", key, err)
	}
	return nil
}

// FindIDByCode 根据邀请码查找房间 ID
func (r *RedisRoomRepository) FindIDByCode(ctx context.Context, code string) (string, error) {
	key := r.keys.roomCode(code)
	roomID, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrRoomNotFound
		}
		return "", fmt.Errorf("redis: failed to get room id from %s: %w", key, err)
	}
	return roomID, nil
}

// FindByID 根据房间 ID 读取房间记录
func (r *RedisRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	key := r.keys.room(id)
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room from %s: %w", key, err)
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room from %s: %w", key, err)
	}
	return &room, nil
}

// Create 写入新房间记录
func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room, ttl time.Duration) error {
	key := r.keys.room(room.ID)
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.ID, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set room on %s: %w", key, err)
	}
	return nil
}

// Update 使用 SET XX KEEPTTL 覆盖房间记录，不会延长房间寿命，也不会复活已过期的房间。
func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	key := r.keys.room(room.ID)
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.ID, err)
	}
	ok, err := r.client.SetXX(ctx, key, data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to update room on %s: %w", key, err)
	}
	if !ok {
		return repository.ErrRoomNotFound
	}
	return nil
}
