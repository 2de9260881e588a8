package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// fakeSubscription 是可手动关闭负载通道的订阅。
type fakeSubscription struct {
	payloads chan []byte
	once     sync.Once
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{payloads: make(chan []byte, 8)}
}

func (s *fakeSubscription) Payloads() <-chan []byte { return s.payloads }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.payloads) })
	return nil
}

// fakeBus 按顺序返回预先准备的订阅或错误。
type fakeBus struct {
	mu       sync.Mutex
	subs     []*fakeSubscription
	failWith error
	calls    int32
}

func (b *fakeBus) Publish(context.Context, domain.ChannelKind, string, interface{}) error { return nil }

func (b *fakeBus) Subscribe(ctx context.Context, _ domain.ChannelKind, _ string) (repository.Subscription, error) {
	atomic.AddInt32(&b.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return nil, b.failWith
	}
	if len(b.subs) == 0 {
		return nil, errors.New("no subscription prepared")
	}
	sub := b.subs[0]
	b.subs = b.subs[1:]
	return sub, nil
}

func newListenerHub(bus repository.EventBus) *Hub {
	return &Hub{
		bus:      bus,
		opts:     Options{NewBackOff: func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }}.withDefaults(),
		ctx:      context.Background(),
		cancel:   func() {},
		sessions: make(map[string]*Session),
	}
}

func testSession(opts Options) *Session {
	return newSession("session-1", &domain.Room{ID: "room-1", Code: "48213"}, "ZIGGY", domain.RoleHost, opts.withDefaults())
}

func TestListener_GivesUpAndReportsFailure(t *testing.T) {
	bus := &fakeBus{failWith: errors.New("connection refused")}
	h := newListenerHub(bus)
	s := testSession(h.opts)

	require.True(t, h.startListener(s, domain.ChannelMessages))

	select {
	case ev := <-s.Events():
		assert.Equal(t, domain.EventListenerFailed, ev.Kind)
		assert.Contains(t, ev.Error, "connection refused")
	case <-time.After(2 * time.Second):
		t.Fatal("listener_failed event not received")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&bus.calls), "首次尝试加两次重试")
	s.stop()
}

func TestListener_ResubscribesWhenSubscriptionCloses(t *testing.T) {
	first, second := newFakeSubscription(), newFakeSubscription()
	bus := &fakeBus{subs: []*fakeSubscription{first, second}}
	h := newListenerHub(bus)
	s := testSession(h.opts)

	require.True(t, h.startListener(s, domain.ChannelMessages))

	first.payloads <- []byte(`{"id":"m1","content":"before"}`)
	assert.Equal(t, "m1", (<-s.Events()).Message.ID)

	// 连接断开：订阅通道关闭后监听器重新订阅
	_ = first.Close()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&bus.calls) == 2 }, 2*time.Second, 10*time.Millisecond)

	second.payloads <- []byte(`{"id":"m1","content":"redelivered"}`)
	second.payloads <- []byte(`{"id":"m2","content":"after"}`)
	ev := <-s.Events()
	assert.Equal(t, "m2", ev.Message.ID, "重复投递的消息被去重")

	s.stop()
	_, open := <-s.Events()
	assert.False(t, open)
}

func TestSession_StopCancelsListeners(t *testing.T) {
	sub := newFakeSubscription()
	h := newListenerHub(&fakeBus{subs: []*fakeSubscription{sub}})
	s := testSession(h.opts)
	require.True(t, h.startListener(s, domain.ChannelJoinRequests))

	done := make(chan struct{})
	go func() {
		s.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return; listener leaked")
	}
	_, open := <-sub.payloads
	assert.False(t, open, "订阅在会话结束时释放")
	assert.False(t, h.startListener(s, domain.ChannelMessages), "已结束的会话不能再启动监听器")
	s.stop()
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent(domain.ChannelJoinRequests, "room-1", []byte(`{"type":"status_update","request_id":"r1","username":"VOID","status":"approved"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventJoinRequest, ev.Kind)
	assert.Equal(t, domain.RequestApproved, ev.Request.Status)
	assert.Equal(t, "room-1", ev.RoomID)

	ev, err = decodeEvent(domain.ChannelRoom, "room-1", []byte(`{"type":"closed"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventRoom, ev.Kind)
	assert.Equal(t, domain.RoomEventClosed, ev.Room.Type)

	for kind, payload := range map[domain.ChannelKind]string{
		domain.ChannelMessages:     `[]`,
		domain.ChannelJoinRequests: `{"username":"VOID"}`,
		domain.ChannelRoom:         `{}`,
		domain.ChannelKind("x"):    `{}`,
	} {
		_, err := decodeEvent(kind, "room-1", []byte(payload))
		assert.Error(t, err, kind)
	}
}

func TestSession_DrainAndOverflow(t *testing.T) {
	s := testSession(Options{InboxSize: 2})
	for _, id := range []string{"m1", "m2", "m3"} {
		s.push(domain.Event{Kind: domain.EventMessage, Message: &domain.Message{ID: id}})
	}
	assert.Len(t, s.Drain(1), 1)
	assert.Len(t, s.Drain(0), 1, "inbox 满时多余事件被丢弃")
	assert.Empty(t, s.Drain(10))
}

func TestSeenSet_EvictsOldest(t *testing.T) {
	seen := newSeenSet(2)
	assert.True(t, seen.add("a"))
	assert.True(t, seen.add("b"))
	assert.False(t, seen.add("a"))
	assert.True(t, seen.add("c"))
	assert.True(t, seen.add("a"), "a 已被淘汰")
}
