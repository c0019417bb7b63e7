package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/api"
	"github.com/stretchr/testify/assert"
)

// doFrom 以指定客户端地址发起请求
func doFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRateLimitMiddleware_PerClient 限流桶按客户端 IP 独立
func TestRateLimitMiddleware_PerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(api.RateLimitMiddleware(1, 1))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// 第一个客户端耗尽配额
	assert.Equal(t, http.StatusOK, doFrom(router, "10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(router, "10.0.0.1:1111").Code)

	// 另一个客户端不受影响
	assert.Equal(t, http.StatusOK, doFrom(router, "10.0.0.2:2222").Code)
}
