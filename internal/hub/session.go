package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
)

// Session 把一个用户身份绑定到一个房间及其活跃的监听器。
// 监听器只向 inbox 推送已解码的事件，传输层 (WebSocket 或轮询) 负责读取。
type Session struct {
	ID        string
	RoomID    string
	RoomCode  string
	RoomName  string
	Username  string
	Role      domain.Role
	CreatedAt time.Time

	inbox chan domain.Event
	seen  *seenSet

	now        func() time.Time
	lastActive atomic.Int64 // UnixNano，最近一次客户端活动

	mu        sync.Mutex
	listeners map[domain.ChannelKind]context.CancelFunc // 已启动的监听器种类
	closed    bool
	wg        sync.WaitGroup
}

func newSession(id string, room *domain.Room, username string, role domain.Role, opts Options) *Session {
	s := &Session{
		ID:        id,
		RoomID:    room.ID,
		RoomCode:  room.Code,
		RoomName:  room.Name,
		Username:  username,
		Role:      role,
		CreatedAt: opts.Now().UTC(),
		inbox:     make(chan domain.Event, opts.InboxSize),
		seen:      newSeenSet(opts.SeenSize),
		now:       opts.Now,
		listeners: make(map[domain.ChannelKind]context.CancelFunc),
	}
	s.touch()
	return s
}

// touch 记录一次客户端活动 (查找会话、轮询、WebSocket 读到数据或 pong)。
func (s *Session) touch() {
	s.lastActive.Store(s.now().UnixNano())
}

// LastActive 返回最近一次客户端活动的时间。
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// IsHost 报告会话是否为房主会话。
func (s *Session) IsHost() bool { return s.Role == domain.RoleHost }

// Events 返回会话的事件通道，会话结束后通道关闭。
func (s *Session) Events() <-chan domain.Event { return s.inbox }

// Drain 非阻塞地取出最多 max 个待处理事件 (max <= 0 表示全部)。
func (s *Session) Drain(max int) []domain.Event {
	s.touch()
	events := make([]domain.Event, 0)
	for max <= 0 || len(events) < max {
		select {
		case ev, ok := <-s.inbox:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
	return events
}

// ActiveListeners 返回当前已启动的监听器种类。
func (s *Session) ActiveListeners() []domain.ChannelKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.ChannelKind, 0, len(s.listeners))
	for kind := range s.listeners {
		kinds = append(kinds, kind)
	}
	return kinds
}

// startListener 在会话锁内检查并登记监听器种类，同一种类重复启动是空操作。
func (s *Session) startListener(parent context.Context, kind domain.ChannelKind, run func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, active := s.listeners[kind]; active {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	s.listeners[kind] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx)
	}()
	return true
}

// push 由监听器 goroutine 调用，把事件放入 inbox。
// 重复的消息事件被丢弃；inbox 已满时丢弃事件，客户端可通过 Recent 补齐。
func (s *Session) push(ev domain.Event) {
	if ev.Kind == domain.EventMessage && ev.Message != nil && !s.seen.add(ev.Message.ID) {
		logrus.WithFields(logrus.Fields{"session_id": s.ID, "message_id": ev.Message.ID}).Debug("Duplicate message event skipped")
		return
	}
	select {
	case s.inbox <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"session_id": s.ID,
			"room_id":    s.RoomID,
			"kind":       ev.Kind,
		}).Warn("Session inbox full, dropping event")
	}
}

// stop 取消所有监听器并等待其退出，然后关闭 inbox。可重复调用。
func (s *Session) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.listeners))
	for _, cancel := range s.listeners {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	// 只有监听器会写 inbox，全部退出后才能安全关闭
	s.wg.Wait()
	close(s.inbox)
}

// seenSet 是有容量上限的消息 ID 集合，超出容量时淘汰最早加入的 ID。
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(size int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, size), order: make([]string, size)}
}

// add 返回 false 表示 id 已存在。
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
	return true
}
