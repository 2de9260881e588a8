package repository

import (
	"context"

	"github.com/zigg31416/Chatx/internal/domain"
)

// EventBus 定义了按房间划分的发布/订阅操作。
// 发布是 fire-and-forget 的：不持久化，订阅之前发布的事件不会被收到。
type EventBus interface {
	// Publish 将 payload 序列化为 JSON 并发布到房间的 kind 频道。
	Publish(ctx context.Context, kind domain.ChannelKind, roomID string, payload interface{}) error

	// Subscribe 订阅房间的 kind 频道，返回前确认订阅已建立。
	Subscribe(ctx context.Context, kind domain.ChannelKind, roomID string) (Subscription, error)
}

// Subscription 是一个已建立的频道订阅。
type Subscription interface {
	// Payloads 返回原始负载通道；连接断开或 Close 后通道关闭。
	Payloads() <-chan []byte
	// Close 取消订阅并释放连接。
	Close() error
}
