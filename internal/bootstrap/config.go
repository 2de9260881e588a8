package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSessionSecret 未配置 SESSION_SECRET 时返回
var ErrMissingSessionSecret = errors.New("environment variable SESSION_SECRET must be set")

// Config 结构体用于存储从环境变量或 .env 文件加载的配置
type Config struct {
	RedisURL           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	KeyPrefix          string // Redis Key 前缀，为空时使用裸 key
	SessionSecret      string
	SessionTTLHours    int
	ServerPort         string
	LogLevel           string
	LogFile            string
	AppEnv             string // development/production
	RateLimitMax       int
	RateLimitWindow    time.Duration
	RequireApproval    bool
	CORSAllowedOrigin  string
	SweepSchedule      string
	WSSendRate         float64       // 每个 WebSocket 连接每秒允许发送的消息数
	SessionIdleTimeout time.Duration // 会话无活动超过该时长后由清理任务回收
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Second)
	v.SetDefault("REQUIRE_APPROVAL", false)
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("WS_SEND_RATE", 5.0)
	v.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)

	cfg := &Config{
		RedisURL:           v.GetString("REDIS_URL"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		KeyPrefix:          v.GetString("REDIS_KEY_PREFIX"),
		SessionSecret:      v.GetString("SESSION_SECRET"),
		SessionTTLHours:    v.GetInt("SESSION_TTL_HOURS"),
		ServerPort:         v.GetString("SERVER_PORT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		AppEnv:             v.GetString("APP_ENV"),
		RateLimitMax:       v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:    v.GetDuration("RATE_LIMIT_WINDOW"),
		RequireApproval:    v.GetBool("REQUIRE_APPROVAL"),
		CORSAllowedOrigin:  v.GetString("CORS_ALLOWED_ORIGIN"),
		SweepSchedule:      v.GetString("SWEEP_SCHEDULE"),
		WSSendRate:         v.GetFloat64("WS_SEND_RATE"),
		SessionIdleTimeout: v.GetDuration("SESSION_IDLE_TIMEOUT"),
	}

	if cfg.SessionSecret == "" {
		return nil, ErrMissingSessionSecret
	}
	if cfg.RedisURL == "" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("either REDIS_URL or REDIS_ADDR must be set")
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be a positive duration")
	}
	if cfg.SessionIdleTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be a positive duration")
	}
	return cfg, nil
}
