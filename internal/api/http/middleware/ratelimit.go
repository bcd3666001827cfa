package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apitypes "github.com/weisyn/vmrunner/internal/api/types"
)

// RateLimit 按客户端IP的令牌桶限流
//
// 挂在 /check 上：每次请求都要完整编译一遍字节码。
type RateLimit struct {
	limit    int // 每秒令牌数
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	now      func() time.Time
}

// rateLimiter 单个客户端的令牌桶
type rateLimiter struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimit 创建限流中间件；limit <= 0 表示不限流
func NewRateLimit(limit int) *RateLimit {
	return &RateLimit{limit: limit, limiters: make(map[string]*rateLimiter), now: time.Now}
}

// Middleware 返回Gin中间件
func (m *RateLimit) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limit > 0 && !m.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			WriteError(c, http.StatusTooManyRequests, apitypes.CodeRateLimited, "request rate limit exceeded",
				map[string]interface{}{"limit_per_second": m.limit})
			return
		}
		c.Next()
	}
}

// allow 消费一个令牌（每整秒补满 limit 个）
func (m *RateLimit) allow(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l, ok := m.limiters[clientID]
	if !ok {
		l = &rateLimiter{tokens: m.limit, lastRefill: now}
		m.limiters[clientID] = l
	}
	if refill := int(now.Sub(l.lastRefill).Seconds()) * m.limit; refill > 0 {
		l.tokens += refill
		if l.tokens > m.limit {
			l.tokens = m.limit
		}
		l.lastRefill = now
	}
	if l.tokens == 0 {
		return false
	}
	l.tokens--
	return true
}
