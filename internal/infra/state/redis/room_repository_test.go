package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

func TestRedisRoomRepository_CreateAndFind(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "")
	ctx := context.Background()

	room := &domain.Room{ID: "room-1", Code: "48213", Name: "NEON BAR", HostName: "ZIGGY", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.ReserveCode(ctx, room.Code, room.ID, domain.RoomTTL))
	require.NoError(t, repo.Create(ctx, room, domain.RoomTTL))

	assert.True(t, mr.Exists("chatroom:room-1"))
	assert.True(t, mr.Exists("chatroom:code:48213"))
	assert.Equal(t, domain.RoomTTL, mr.TTL("chatroom:room-1"))
	assert.Equal(t, domain.RoomTTL, mr.TTL("chatroom:code:48213"))

	id, err := repo.FindIDByCode(ctx, "48213")
	require.NoError(t, err)
	assert.Equal(t, "room-1", id)

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, room.Name, found.Name)
	assert.Equal(t, room.HostName, found.HostName)
	assert.True(t, found.IsActive)
	assert.True(t, room.CreatedAt.Equal(found.CreatedAt))
}

func TestRedisRoomRepository_ReserveCode_Duplicate(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "")
	ctx := context.Background()

	require.NoError(t, repo.ReserveCode(ctx, "11111", "a", time.Hour))
	err := repo.ReserveCode(ctx, "11111", "b", time.Hour)
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	id, err := repo.FindIDByCode(ctx, "11111")
	require.NoError(t, err)
	assert.Equal(t, "a", id, "first reservation must win")

	require.NoError(t, repo.ReleaseCode(ctx, "11111"))
	_, err = repo.FindIDByCode(ctx, "11111")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestRedisRoomRepository_UpdateKeepsTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "")
	ctx := context.Background()

	room := &domain.Room{ID: "room-2", Code: "22222", Name: "n", HostName: "h", IsActive: true}
	require.NoError(t, repo.Create(ctx, room, domain.RoomTTL))
	mr.FastForward(time.Hour)

	room.IsActive = false
	require.NoError(t, repo.Update(ctx, room))
	assert.Equal(t, domain.RoomTTL-time.Hour, mr.TTL("chatroom:room-2"), "update must not reset the TTL")

	found, err := repo.FindByID(ctx, "room-2")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestRedisRoomRepository_UpdateMissing(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "")

	err := repo.Update(context.Background(), &domain.Room{ID: "ghost"})
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.False(t, mr.Exists("chatroom:ghost"), "update must not resurrect an expired room")
}

func TestRedisRoomRepository_Expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "")
	ctx := context.Background()

	room := &domain.Room{ID: "room-3", Code: "33333", IsActive: true}
	require.NoError(t, repo.ReserveCode(ctx, room.Code, room.ID, domain.RoomTTL))
	require.NoError(t, repo.Create(ctx, room, domain.RoomTTL))

	mr.FastForward(domain.RoomTTL + time.Second)

	_, err := repo.FindIDByCode(ctx, "33333")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	_, err = repo.FindByID(ctx, "room-3")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestRedisRoomRepository_KeyPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisRoomRepository(client, "chatx:")

	require.NoError(t, repo.Create(context.Background(), &domain.Room{ID: "p"}, time.Minute))
	assert.True(t, mr.Exists("chatx:chatroom:p"))
}
