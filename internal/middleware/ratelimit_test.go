package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func newRateLimitedRouter(t *testing.T, max int, window time.Duration) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := gin.New()
	router.Use(RateLimit(client, "chatx:", max, window))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, mr
}

func ping(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	router, mr := newRateLimitedRouter(t, 2, time.Minute)

	w := ping(router, "192.0.2.1:1234")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "192.0.2.1:1234").Code)

	// 计数按客户端 IP 区分
	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.2:1234").Code)
	assert.True(t, mr.Exists("chatx:ratelimit:192.0.2.1"))
}

func TestRateLimit_WindowExpires(t *testing.T) {
	router, mr := newRateLimitedRouter(t, 1, time.Second)

	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "192.0.2.1:1234").Code)

	mr.FastForward(2 * time.Second)
	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.1:1234").Code)
}

func TestRateLimit_FailsOpenWhenStoreUnavailable(t *testing.T) {
	router, mr := newRateLimitedRouter(t, 1, time.Minute)
	mr.Close()

	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusOK, ping(router, "192.0.2.1:1234").Code)
}
