package redisstate

import (
	"fmt"

	"github.com/zigg31416/Chatx/internal/domain"
)

// keyspace 负责生成所有 Redis key 和频道名，可选的 prefix 用于多个部署共享同一个 Redis。
type keyspace struct {
	prefix string
}

// --- Key Generation Helpers ---
func (k keyspace) room(roomID string) string {
	return fmt.Sprintf("%schatroom:%s", k.prefix, roomID)
}

func (k keyspace) roomCode(code string) string {
	return fmt.Sprintf("%schatroom:code:%s", k.prefix, code)
}

func (k keyspace) message(messageID string) string {
	return fmt.Sprintf("%smessage:%s", k.prefix, messageID)
}

func (k keyspace) messageList(roomID string) string {
	return fmt.Sprintf("%smessage:list:%s", k.prefix, roomID)
}

func (k keyspace) request(requestID string) string {
	return fmt.Sprintf("%srequest:%s", k.prefix, requestID)
}

func (k keyspace) pendingRequests(roomID string) string {
	return fmt.Sprintf("%srequest:pending:%s", k.prefix, roomID)
}

// channel 返回房间 kind 频道名，例如 messages:{roomId}
func (k keyspace) channel(kind domain.ChannelKind, roomID string) string {
	return fmt.Sprintf("%s%s:%s", k.prefix, kind, roomID)
}

func (k keyspace) messageKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = k.message(id)
	}
	return keys
}

func (k keyspace) requestKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = k.request(id)
	}
	return keys
}
