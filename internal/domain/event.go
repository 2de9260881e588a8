package domain

// ChannelKind 标识每个房间的三类发布/订阅频道。
type ChannelKind string

const (
	ChannelMessages     ChannelKind = "messages"      // messages:{roomId}
	ChannelJoinRequests ChannelKind = "join-requests" // join-requests:{roomId}
	ChannelRoom         ChannelKind = "chatroom"      // chatroom:{roomId}
)

// 加入申请频道上的事件类型
const (
	RequestEventNew          = "new_request"
	RequestEventStatusUpdate = "status_update"
)

// RoomEventClosed 房间控制频道上的关闭事件类型。
const RoomEventClosed = "closed"

// RequestEvent 是 join-requests 频道的负载。
type RequestEvent struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id"`
	Username  string        `json:"username"`
	Status    RequestStatus `json:"status,omitempty"`
}

// RoomEvent 是 chatroom 控制频道的负载。
type RoomEvent struct {
	Type string `json:"type"`
}

// EventKind 标识会话收件箱中事件的种类。
type EventKind string

const (
	EventMessage        EventKind = "message"
	EventJoinRequest    EventKind = "join_request"
	EventRoom           EventKind = "room"
	EventListenerFailed EventKind = "listener_failed"
)

// Event 是监听器推送到会话收件箱的已解码事件。
type Event struct {
	Kind    EventKind     `json:"kind"`
	RoomID  string        `json:"room_id"`
	Message *Message      `json:"message,omitempty"`
	Request *RequestEvent `json:"request,omitempty"`
	Room    *RoomEvent    `json:"room,omitempty"`
	Error   string        `json:"error,omitempty"`
}
