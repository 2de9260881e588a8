package tasks

import (
	"time"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	// TypeRoomSweep 周期性清理活跃房间中指向已过期记录的 ID
	TypeRoomSweep = "room:sweep"
)

// sweepTimeout 单次清理任务的最长执行时间
const sweepTimeout = 1 * time.Minute

// NewRoomSweepTask 创建周期性清理任务。
// 任务本身无负载，房间列表在执行时从 Hub 获取；失败不重试，等待下一个周期。
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil, asynq.MaxRetry(0), asynq.Timeout(sweepTimeout))
}
