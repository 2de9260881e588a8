package worker_test

import (
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/zigg31416/Chatx/internal/repository/mocks"
	"github.com/zigg31416/Chatx/internal/worker"
)

func TestNewWorkerServer_UsesInstanceQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	redisOpt := asynq.RedisClientOpt{Addr: mr.Addr()}
	sweeper := worker.NewRoomSweepHandler(staticRooms{}, new(mocks.MessageRepository), new(mocks.JoinRequestRepository))

	first := worker.NewWorkerServer(redisOpt, sweeper, "@every 5m", logrus.New())
	second := worker.NewWorkerServer(redisOpt, sweeper, "@every 5m", logrus.New())

	assert.True(t, strings.HasPrefix(first.Queue(), "sweep:"))
	assert.NotEqual(t, first.Queue(), second.Queue(), "每个实例只处理自己的清理任务")
}
