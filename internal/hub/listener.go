package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// DefaultBackOff 是监听器重新订阅使用的退避策略：
// 初始 200ms，最大间隔 10s，累计 2 分钟后放弃。
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// startListener 为会话启动 kind 频道的监听器，并等待第一次订阅尝试完成，
// 保证返回后发布的事件能被收到。重复启动同一种类是空操作。
func (h *Hub) startListener(s *Session, kind domain.ChannelKind) bool {
	ready := make(chan struct{})
	var once sync.Once
	markReady := func() { once.Do(func() { close(ready) }) }

	started := s.startListener(h.ctx, kind, func(ctx context.Context) {
		defer markReady()
		h.listen(ctx, s, kind, markReady)
	})
	if started {
		<-ready
	}
	return started
}

// listen 是单个监听器的主循环：订阅、消费，连接断开后带退避地重新订阅。
func (h *Hub) listen(ctx context.Context, s *Session, kind domain.ChannelKind, onFirstAttempt func()) {
	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"room_id":    s.RoomID,
		"channel":    kind,
	})
	logCtx.Debug("Listener started")
	defer logCtx.Debug("Listener stopped")

	for {
		sub, err := h.subscribe(ctx, s, kind, onFirstAttempt)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logCtx.WithError(err).Error("Listener gave up resubscribing")
			s.push(domain.Event{
				Kind:   domain.EventListenerFailed,
				RoomID: s.RoomID,
				Error:  fmt.Sprintf("%s listener stopped: %v", kind, err),
			})
			return
		}
		h.consume(ctx, s, kind, sub)
		if ctx.Err() != nil {
			return
		}
		logCtx.Warn("Subscription closed unexpectedly, resubscribing")
	}
}

// subscribe 带退避地订阅频道，每次尝试后调用 onAttempt。
func (h *Hub) subscribe(ctx context.Context, s *Session, kind domain.ChannelKind, onAttempt func()) (repository.Subscription, error) {
	var sub repository.Subscription
	op := func() error {
		var err error
		sub, err = h.bus.Subscribe(ctx, kind, s.RoomID)
		onAttempt()
		return err
	}
	notify := func(err error, next time.Duration) {
		logrus.WithFields(logrus.Fields{
			"session_id": s.ID,
			"channel":    kind,
			"retry_in":   next,
		}).WithError(err).Warn("Subscribe failed, backing off")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(h.opts.NewBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return sub, nil
}

// consume 读取订阅负载直到 ctx 取消或订阅关闭。损坏的负载被记录并跳过。
func (h *Hub) consume(ctx context.Context, s *Session, kind domain.ChannelKind, sub repository.Subscription) {
	defer func() {
		if err := sub.Close(); err != nil {
			logrus.WithField("session_id", s.ID).WithError(err).Debug("Failed to close subscription")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Payloads():
			if !ok {
				return
			}
			ev, err := decodeEvent(kind, s.RoomID, payload)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"session_id": s.ID,
					"channel":    kind,
				}).WithError(err).Warnf("Skipping malformed payload: %s", payload)
				continue
			}
			s.push(ev)
		}
	}
}

// decodeEvent 按频道种类解码负载。
func decodeEvent(kind domain.ChannelKind, roomID string, payload []byte) (domain.Event, error) {
	ev := domain.Event{RoomID: roomID}
	switch kind {
	case domain.ChannelMessages:
		var msg domain.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return ev, err
		}
		if msg.ID == "" {
			return ev, fmt.Errorf("message payload without id")
		}
		ev.Kind = domain.EventMessage
		ev.Message = &msg
	case domain.ChannelJoinRequests:
		var req domain.RequestEvent
		if err := json.Unmarshal(payload, &req); err != nil {
			return ev, err
		}
		if req.Type == "" || req.RequestID == "" {
			return ev, fmt.Errorf("join request payload without type or request_id")
		}
		ev.Kind = domain.EventJoinRequest
		ev.Request = &req
	case domain.ChannelRoom:
		var room domain.RoomEvent
		if err := json.Unmarshal(payload, &room); err != nil {
			return ev, err
		}
		if room.Type == "" {
			return ev, fmt.Errorf("room payload without type")
		}
		ev.Kind = domain.EventRoom
		ev.Room = &room
	default:
		return ev, fmt.Errorf("unknown channel kind %q", kind)
	}
	return ev, nil
}
