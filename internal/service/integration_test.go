package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigg31416/Chatx/internal/domain"
	redisstate "github.com/zigg31416/Chatx/internal/infra/state/redis"
	"github.com/zigg31416/Chatx/internal/service"
)

type redisServices struct {
	mr       *miniredis.Miniredis
	rooms    *service.RoomService
	messages *service.MessageService
	requests *service.JoinRequestService
}

func newRedisServices(t *testing.T) redisServices {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := redisstate.NewRedisEventBus(client, "")
	return redisServices{
		mr:       mr,
		rooms:    service.NewRoomService(redisstate.NewRedisRoomRepository(client, ""), bus),
		messages: service.NewMessageService(redisstate.NewRedisMessageRepository(client, ""), bus),
		requests: service.NewJoinRequestService(redisstate.NewRedisJoinRequestRepository(client, ""), bus),
	}
}

func TestRoomLifecycle_CreateLookupClose(t *testing.T) {
	svc := newRedisServices(t)
	ctx := context.Background()

	room, err := svc.rooms.CreateRoom(ctx, "NEON BAR", "ZIGGY")
	require.NoError(t, err)
	assert.True(t, domain.IsValidRoomCode(room.Code))
	assert.NotEmpty(t, room.ID)

	found, err := svc.rooms.GetRoomByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)
	assert.Equal(t, "NEON BAR", found.Name)
	assert.Equal(t, "ZIGGY", found.HostName)
	assert.True(t, found.IsActive)

	_, err = svc.rooms.CloseRoom(ctx, room.ID)
	require.NoError(t, err)

	_, err = svc.rooms.GetRoomByCode(ctx, room.Code)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	// 关闭后房间记录仍在，直到 TTL 到期
	svc.mr.FastForward(domain.RoomTTL)
	_, err = svc.rooms.CloseRoom(ctx, room.ID)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestMessageLog_RecentIsOrderedAndIdempotent(t *testing.T) {
	svc := newRedisServices(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := svc.messages.Append(ctx, "room-1", "ZIGGY", content, domain.MessageTypeUser)
		require.NoError(t, err)
	}

	recent, err := svc.messages.Recent(ctx, "room-1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"two", "three", "four"}, []string{recent[0].Content, recent[1].Content, recent[2].Content})
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].CreatedAt.Before(recent[i-1].CreatedAt))
	}

	again, err := svc.messages.Recent(ctx, "room-1", 3)
	require.NoError(t, err)
	assert.Equal(t, recent, again, "无新写入时重复读取结果一致")

	all, err := svc.messages.Recent(ctx, "room-1", 50)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMessageLog_ExpiredMessagesAreSkipped(t *testing.T) {
	svc := newRedisServices(t)
	ctx := context.Background()

	_, err := svc.messages.Append(ctx, "room-1", "ZIGGY", "hello", domain.MessageTypeUser)
	require.NoError(t, err)

	recent, err := svc.messages.Recent(ctx, "room-1", 50)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	svc.mr.FastForward(domain.RoomTTL + time.Second)

	recent, err = svc.messages.Recent(ctx, "room-1", 50)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestJoinRequestQueue_RequestPendingResolve(t *testing.T) {
	svc := newRedisServices(t)
	ctx := context.Background()

	req, err := svc.requests.Request(ctx, "room-1", "VOID")
	require.NoError(t, err)

	pending, err := svc.requests.Pending(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
	assert.Equal(t, domain.RequestPending, pending[0].Status)

	resolved, err := svc.requests.Resolve(ctx, req.ID, domain.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, resolved.Status)

	pending, err = svc.requests.Pending(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.requests.Resolve(ctx, req.ID, domain.RequestRejected)
	assert.ErrorIs(t, err, service.ErrInvalidState)

	svc.mr.FastForward(domain.JoinRequestTTL)
	_, err = svc.requests.Resolve(ctx, req.ID, domain.RequestRejected)
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}
