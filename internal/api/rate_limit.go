package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter 单个客户端的限流器
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware 按客户端 IP 限流的中间件
// 清理在请求路径上顺带完成,不额外起后台协程
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var (
		mu          sync.Mutex
		clients     = make(map[string]*clientLimiter)
		lastCleanup = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		// 每分钟清理一次超过 3 分钟未活跃的客户端
		if now.Sub(lastCleanup) > time.Minute {
			for addr, client := range clients {
				if now.Sub(client.lastSeen) > 3*time.Minute {
					delete(clients, addr)
				}
			}
			lastCleanup = now
		}

		client, ok := clients[ip]
		if !ok {
			client = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = client
		}
		client.lastSeen = now
		allowed := client.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    429,
				Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
