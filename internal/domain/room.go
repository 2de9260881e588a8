package domain

import "time"

// RoomTTL 房间记录、邀请码索引以及消息的存活时间。
const RoomTTL = 24 * time.Hour

// Room 表示一个临时聊天室。
type Room struct {
	ID        string    `json:"id"`        // 房间唯一标识符 (UUID)
	Code      string    `json:"code"`      // 5 位数字邀请码，供访客加入
	Name      string    `json:"name"`      // 房间名称
	HostName  string    `json:"host_name"` // 房主昵称
	IsActive  bool      `json:"is_active"` // 房主关闭房间后置为 false
	CreatedAt time.Time `json:"created_at"`
}

// IsValidRoomCode 检查邀请码是否为 5 位 ASCII 数字。
func IsValidRoomCode(code string) bool {
	if len(code) != 5 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Role 表示会话在房间中的身份。
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)
