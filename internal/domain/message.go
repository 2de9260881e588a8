package domain

import (
	"fmt"
	"time"
)

// MessageType 区分用户消息和系统通知。
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

// SystemUsername 系统消息使用的发送者名称。
const SystemUsername = "SYSTEM"

// Message 表示房间中的一条消息。创建后不可修改。
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// Valid 报告消息类型是否受支持。
func (t MessageType) Valid() bool {
	return t == MessageTypeUser || t == MessageTypeSystem
}

// JoinedNotice 生成用户加入房间的系统消息内容。
func JoinedNotice(username string) string {
	return fmt.Sprintf("%s has joined the chatroom", username)
}

// LeftNotice 生成用户离开房间的系统消息内容。
func LeftNotice(username string) string {
	return fmt.Sprintf("%s has left the chatroom", username)
}

// ClosedNotice 房主关闭房间时的系统消息内容。
const ClosedNotice = "The host has closed the chatroom"
