package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zigg31416/Chatx/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// ClientCommand 是客户端通过 WebSocket 发来的指令。
type ClientCommand struct {
	Type    string `json:"type"` // 目前只支持 "send"
	Content string `json:"content"`
}

// ClientReply 是对客户端指令的直接回复 (不经过事件总线)。
type ClientReply struct {
	Kind    string          `json:"kind"` // "sent" 或 "error"
	Message *domain.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client 代表一个绑定到会话的 WebSocket 连接。
// 连接断开不会结束会话；会话结束 (离开或关闭) 时连接被关闭。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Session
	limiter *rate.Limiter
	replies chan ClientReply // 由 ReadPump 写入，WritePump 发送
	done    chan struct{}    // ReadPump 退出时关闭
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, session *Session, limiter *rate.Limiter) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		limiter: limiter,
		replies: make(chan ClientReply, 16),
		done:    make(chan struct{}),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"session_id": c.session.ID, "room_id": c.session.RoomID})
}

// ReadPump 读取客户端指令并调用 Hub。它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
		c.logCtx().Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 连接仍然存活，会话不算空闲
		c.session.touch()
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		c.session.touch()
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.reply(c.handleCommand(raw))
	}
}

func (c *Client) handleCommand(raw []byte) ClientReply {
	var cmd ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return ClientReply{Kind: "error", Error: "invalid command format"}
	}
	if cmd.Type != "send" {
		return ClientReply{Kind: "error", Error: "unknown command type: " + cmd.Type}
	}
	if !c.limiter.Allow() {
		return ClientReply{Kind: "error", Error: "sending too fast"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	msg, err := c.hub.Send(ctx, c.session.ID, cmd.Content)
	if err != nil {
		c.logCtx().WithError(err).Warn("Failed to send message from websocket")
		return ClientReply{Kind: "error", Error: err.Error()}
	}
	return ClientReply{Kind: "sent", Message: msg}
}

func (c *Client) reply(r ClientReply) {
	select {
	case c.replies <- r:
	default:
		c.logCtx().Warn("Client reply channel full, dropping reply")
	}
}

// WritePump 把会话事件和指令回复写入 WebSocket 连接。它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	events := c.session.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// 会话已结束
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if !c.writeJSON(ev) {
				return
			}
		case r := <-c.replies:
			if !c.writeJSON(r) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeJSON(v interface{}) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.logCtx().WithError(err).Warn("Failed to write message to websocket")
		return false
	}
	return true
}
