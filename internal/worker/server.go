package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/tasks"
)

const sweepUniqueTTL = time.Minute

// WorkerServer 封装了 Asynq Worker Server 和周期任务调度器的启动和关闭逻辑
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	sweeper   *RoomSweepHandler
	schedule  string
	queue     string
	log       *logrus.Entry
}

// NewWorkerServer 创建一个新的 WorkerServer 实例。
// schedule 是清理任务的 cron 表达式，例如 "@every 5m"。
//
// 会话只存在于创建它的进程内，清理任务必须由同一进程执行。
// 因此每个实例使用独立的队列，调度器只向本实例的队列投递，
// 多实例部署时每个实例各自清理自己的会话。
func NewWorkerServer(redisOpt asynq.RedisConnOpt, sweeper *RoomSweepHandler, schedule string, logger *logrus.Logger) *WorkerServer {
	if sweeper == nil {
		panic("RoomSweepHandler cannot be nil for WorkerServer")
	}
	queue := "sweep:" + uuid.NewString()
	logEntry := logger.WithFields(logrus.Fields{"component": "worker_server", "queue": queue})

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger:   logEntry,
			LogLevel: asynq.WarnLevel,
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   logEntry,
		LogLevel: asynq.WarnLevel,
	})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		sweeper:   sweeper,
		schedule:  schedule,
		queue:     queue,
		log:       logEntry,
	}
}

// Start 注册周期任务并启动 Worker Server 和调度器 (非阻塞)。
// 信号处理由调用方负责，关闭时调用 Shutdown。
func (ws *WorkerServer) Start() error {
	// 上一次清理尚未执行时不再重复投递
	entryID, err := ws.scheduler.Register(ws.schedule, tasks.NewRoomSweepTask(), asynq.Queue(ws.queue), asynq.Unique(sweepUniqueTTL))
	if err != nil {
		return fmt.Errorf("could not register room sweep task with schedule '%s': %w", ws.schedule, err)
	}
	ws.log.Infof("Room sweep task registered with schedule '%s' (EntryID: %s)", ws.schedule, entryID)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRoomSweep, ws.sweeper.ProcessTask)

	if err := ws.server.Start(mux); err != nil {
		return fmt.Errorf("could not start worker server: %w", err)
	}
	if err := ws.scheduler.Start(); err != nil {
		ws.server.Shutdown()
		return fmt.Errorf("could not start scheduler: %w", err)
	}
	ws.log.Info("Worker server and scheduler started")
	return nil
}

// Queue 返回本实例专用的清理队列名
func (ws *WorkerServer) Queue() string { return ws.queue }

// Shutdown 优雅地关闭调度器和 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
