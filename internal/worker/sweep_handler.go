package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/repository"
)

// SessionRooms 提供本实例的会话及其所在房间 (由 hub.Hub 实现)
type SessionRooms interface {
	ReapSessions(ctx context.Context) (int, error)
	ActiveRoomIDs() []string
}

// RoomSweepHandler 处理周期性的清理任务：
// 先回收房间已结束或长时间无活动的会话，
// 再从剩余房间的消息列表头部和待处理集合中移除正文已过期的 ID。
type RoomSweepHandler struct {
	rooms    SessionRooms
	messages repository.MessageRepository
	requests repository.JoinRequestRepository
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(rooms SessionRooms, messages repository.MessageRepository, requests repository.JoinRequestRepository) *RoomSweepHandler {
	if rooms == nil {
		panic("SessionRooms cannot be nil for RoomSweepHandler")
	}
	if messages == nil || requests == nil {
		panic("repositories cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{rooms: rooms, messages: messages, requests: requests}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})

	reaped, reapErr := h.rooms.ReapSessions(ctx)
	if reapErr != nil {
		logCtx.WithError(reapErr).Warn("Some sessions could not be checked for reaping")
	}
	if reaped > 0 {
		logCtx.WithField("reaped_sessions", reaped).Info("Reaped stale sessions")
	}

	roomIDs := h.rooms.ActiveRoomIDs()
	if len(roomIDs) == 0 {
		logCtx.Debug("No active rooms found, skipping sweep.")
		return reapErr
	}
	logCtx.Infof("Sweeping %d active rooms.", len(roomIDs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		errs     []error
		messages int
		requests int
	)
	for _, roomID := range roomIDs {
		wg.Add(1)
		go func(roomID string) {
			defer wg.Done()
			m, r, err := h.sweepRoom(ctx, roomID)
			mu.Lock()
			defer mu.Unlock()
			messages += m
			requests += r
			if err != nil {
				errs = append(errs, err)
			}
		}(roomID)
	}
	wg.Wait()

	logCtx.WithFields(logrus.Fields{
		"rooms":           len(roomIDs),
		"pruned_messages": messages,
		"pruned_requests": requests,
		"failed_rooms":    len(errs),
	}).Info("Room sweep finished")

	if len(errs) > 0 {
		return fmt.Errorf("room sweep failed for %d room(s): %w", len(errs), errors.Join(append(errs, reapErr)...))
	}
	return reapErr
}

func (h *RoomSweepHandler) sweepRoom(ctx context.Context, roomID string) (int, int, error) {
	prunedMessages, err := h.messages.PruneExpired(ctx, roomID)
	if err != nil {
		return 0, 0, fmt.Errorf("room %s: prune messages: %w", roomID, err)
	}
	prunedRequests, err := h.requests.PruneExpired(ctx, roomID)
	if err != nil {
		return prunedMessages, 0, fmt.Errorf("room %s: prune requests: %w", roomID, err)
	}
	if prunedMessages > 0 || prunedRequests > 0 {
		logrus.WithFields(logrus.Fields{
			"room_id":  roomID,
			"messages": prunedMessages,
			"requests": prunedRequests,
		}).Debug("Pruned dangling ids")
	}
	return prunedMessages, prunedRequests, nil
}
