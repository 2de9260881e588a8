package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// RedisEventBus 是 EventBus 接口基于 Redis Pub/Sub 的实现
type RedisEventBus struct {
	client *redis.Client
	keys   keyspace
}

// NewRedisEventBus 创建 RedisEventBus 实例
func NewRedisEventBus(client *redis.Client, keyPrefix string) *RedisEventBus {
	if client == nil {
		panic("redis client cannot be nil for RedisEventBus")
	}
	return &RedisEventBus{client: client, keys: keyspace{prefix: keyPrefix}}
}

// Publish 将负载发布到房间频道
func (b *RedisEventBus) Publish(ctx context.Context, kind domain.ChannelKind, roomID string, payload interface{}) error {
	channel := b.keys.channel(kind, roomID)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal payload for %s: %w", channel, err)
	}
	receivers, err := b.client.Publish(ctx, channel, payloadBytes).Result()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payloadBytes),
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	logrus.WithFields(logrus.Fields{
		"channel":     channel,
		"subscribers": receivers,
	}).Debug("Event published to Redis")
	return nil
}

// Subscribe 订阅房间频道。每个订阅独占一条 Pub/Sub 连接，Close 时释放。
func (b *RedisEventBus) Subscribe(ctx context.Context, kind domain.ChannelKind, roomID string) (repository.Subscription, error) {
	channel := b.keys.channel(kind, roomID)
	pubsub := b.client.Subscribe(ctx, channel)
	// 等待订阅确认，保证返回后发布的事件不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to channel %s: %w", channel, err)
	}
	return newRedisSubscription(pubsub), nil
}

// redisSubscription 把 *redis.PubSub 的消息通道转换为原始负载通道
type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func newRedisSubscription(pubsub *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	in := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Payloads() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
