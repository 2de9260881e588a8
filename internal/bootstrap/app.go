package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	// --- 导入内部包 ---
	httpHandler "github.com/zigg31416/Chatx/internal/handler/http"
	wsHandler "github.com/zigg31416/Chatx/internal/handler/websocket"
	"github.com/zigg31416/Chatx/internal/hub"
	"github.com/zigg31416/Chatx/internal/infra/setup"
	redisstate "github.com/zigg31416/Chatx/internal/infra/state/redis"
	"github.com/zigg31416/Chatx/internal/middleware"
	"github.com/zigg31416/Chatx/internal/service"
	"github.com/zigg31416/Chatx/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client
	Hub         *hub.Hub
	Worker      *worker.WorkerServer
	Router      *gin.Engine
	HttpServer  *http.Server
}

// NewApp 加载配置、连接 Redis 并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 初始化 Logger
	log := setup.NewLogger(setup.LoggerConfig{Level: cfg.LogLevel, AppEnv: cfg.AppEnv, LogFile: cfg.LogFile})
	log.WithFields(logrus.Fields{
		"app_env":          cfg.AppEnv,
		"require_approval": cfg.RequireApproval,
		"key_prefix":       cfg.KeyPrefix,
	}).Info("Configuration loaded successfully")

	// 3. 初始化 Redis
	redisClient, err := setup.InitRedis(context.Background(), setup.RedisConfig{
		URL:      cfg.RedisURL,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	app, err := newApp(cfg, log, redisClient)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	return app, nil
}

// newApp 在已连接的 Redis 客户端之上组装仓库、服务、Hub、Handler 和 Worker
func newApp(cfg *Config, log *logrus.Logger, redisClient *redis.Client) (*App, error) {
	// 4. 初始化 Repositories
	roomRepo := redisstate.NewRedisRoomRepository(redisClient, cfg.KeyPrefix)
	msgRepo := redisstate.NewRedisMessageRepository(redisClient, cfg.KeyPrefix)
	reqRepo := redisstate.NewRedisJoinRequestRepository(redisClient, cfg.KeyPrefix)
	bus := redisstate.NewRedisEventBus(redisClient, cfg.KeyPrefix)

	// 5. 初始化 Services
	roomService := service.NewRoomService(roomRepo, bus)
	messageService := service.NewMessageService(msgRepo, bus)
	requestService := service.NewJoinRequestService(reqRepo, bus)
	tokenService, err := service.NewTokenService(cfg.SessionSecret, cfg.SessionTTLHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create TokenService: %w", err)
	}

	// 6. 初始化 Hub
	hubInstance := hub.NewHub(roomService, messageService, requestService, bus, hub.Options{IdleTimeout: cfg.SessionIdleTimeout})

	// 7. 初始化 Worker Server
	redisOpt, err := asynqRedisOpt(cfg)
	if err != nil {
		hubInstance.Shutdown()
		return nil, err
	}
	sweeper := worker.NewRoomSweepHandler(hubInstance, msgRepo, reqRepo)
	workerServer := worker.NewWorkerServer(redisOpt, sweeper, cfg.SweepSchedule, log)

	// 8. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, log, redisClient, routeHandlers{
		rooms:   httpHandler.NewRoomHandler(hubInstance, roomService, requestService, tokenService, cfg.RequireApproval),
		session: httpHandler.NewSessionHandler(hubInstance),
		ws:      wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSAllowedOrigin, cfg.WSSendRate),
		tokens:  tokenService,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		Hub:         hubInstance,
		Worker:      workerServer,
		Router:      router,
		HttpServer:  httpServer,
	}, nil
}

// asynqRedisOpt 让 Worker 与应用使用同一个 Redis
func asynqRedisOpt(cfg *Config) (asynq.RedisConnOpt, error) {
	if cfg.RedisURL != "" {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL for worker: %w", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

type routeHandlers struct {
	rooms   *httpHandler.RoomHandler
	session *httpHandler.SessionHandler
	ws      *wsHandler.WebSocketHandler
	tokens  *service.TokenService
}

func newRouter(cfg *Config, log *logrus.Logger, redisClient *redis.Client, h routeHandlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigin)))
	router.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	roomRoutes := api.Group("/rooms")
	{
		roomRoutes.POST("", h.rooms.CreateRoom)
		roomRoutes.GET("/:code", h.rooms.GetRoom)
		roomRoutes.POST("/join", h.rooms.JoinRoom)
	}
	requestRoutes := api.Group("/requests")
	{
		requestRoutes.GET("/:requestId", h.rooms.GetRequest)
		requestRoutes.POST("/:requestId/enter", h.rooms.EnterApproved)
	}
	sessionRoutes := api.Group("/session").Use(middleware.SessionAuth(h.tokens))
	{
		sessionRoutes.GET("/messages", h.session.ListMessages)
		sessionRoutes.POST("/messages", h.session.SendMessage)
		sessionRoutes.GET("/events", h.session.PollEvents)
		sessionRoutes.GET("/requests", h.session.ListRequests)
		sessionRoutes.POST("/requests/:requestId/approve", h.session.ApproveRequest)
		sessionRoutes.POST("/requests/:requestId/reject", h.session.RejectRequest)
		sessionRoutes.POST("/leave", h.session.Leave)
		sessionRoutes.POST("/close", h.session.Close)
	}
	router.GET("/ws/session", middleware.SessionAuth(h.tokens), h.ws.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	return router
}

func corsConfig(allowedOrigin string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if allowedOrigin == "" || allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{allowedOrigin}
	cfg.AllowCredentials = true
	return cfg
}

// Start 启动 Worker 和 HTTP 服务器
func (a *App) Start() error {
	if err := a.Worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求，等待进行中的 HTTP 请求完成；已升级的 WebSocket 连接不受影响
	if a.HttpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.HttpServer.Shutdown(ctx); err != nil {
			a.Log.Errorf("Error shutting down HTTP server: %v", err)
		} else {
			a.Log.Info("HTTP server shut down gracefully.")
		}
	}

	// 2. 停止所有会话及其监听器，WebSocket 写循环随收件箱关闭而退出
	if a.Hub != nil {
		a.Hub.Shutdown()
	}

	// 3. 关闭 Worker 和调度器
	if a.Worker != nil {
		a.Worker.Shutdown()
	}

	// 4. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next() // 处理请求
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		path := c.Request.URL.Path
		if query := c.Request.URL.Query(); len(query) > 0 {
			// 会话令牌可能出现在 ?token= 中，不能写进日志
			if query.Has("token") {
				query.Set("token", "REDACTED")
			}
			path = path + "?" + query.Encode()
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
