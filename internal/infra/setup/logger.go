package setup

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level   string
	AppEnv  string
	LogFile string // 非空时同时写入滚动日志文件
}

// NewLogger 配置全局 logrus 实例并返回它。
// production 下输出 JSON，其余环境输出带时间戳的文本格式。
func NewLogger(cfg LoggerConfig) *logrus.Logger {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.AppEnv == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	if err != nil {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, falling back to info")
	}
	return logger
}
