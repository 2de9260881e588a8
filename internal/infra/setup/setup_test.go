package setup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis_Addr(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := InitRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestInitRedis_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := InitRedis(context.Background(), RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, mr.Addr(), client.Options().Addr)
}

func TestInitRedis_Errors(t *testing.T) {
	_, err := InitRedis(context.Background(), RedisConfig{URL: "not-a-url://x"})
	assert.Error(t, err)

	_, err = InitRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = InitRedis(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "chatx.log")

	logger := NewLogger(LoggerConfig{Level: "debug", AppEnv: "production", LogFile: logFile})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = NewLogger(LoggerConfig{Level: "nonsense", AppEnv: "development"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
