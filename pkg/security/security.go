package security

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 中间件 仅允许白名单中的Origin，支持Credentials
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originSet[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		// XSS保护
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter 按客户端 key 分配令牌桶，每个窗口最多 maxRequests 次（允许同等突发）
type ClientLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	every  rate.Limit
	burst  int
	expiry time.Duration
	// RetryAfter 是补充一个令牌所需的时间
	RetryAfter time.Duration
	Now        func() time.Time
}

func NewClientLimiter(maxRequests int, window time.Duration) *ClientLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	retryAfter := window / time.Duration(maxRequests)
	return &ClientLimiter{
		visitors:   make(map[string]*visitor),
		every:      rate.Every(retryAfter),
		burst:      maxRequests,
		expiry:     expiry,
		RetryAfter: retryAfter,
		Now:        time.Now,
	}
}

func (l *ClientLimiter) Allow(key string) bool {
	now := l.Now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Sweep 删除超过过期时间未出现的客户端，返回删除数量
func (l *ClientLimiter) Sweep() int {
	now := l.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.expiry {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Run 每 interval 清理一次，ctx 结束后退出
func (l *ClientLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// RateLimiter 限流中间件 按IP限流，清理协程随 ctx 退出
func RateLimiter(ctx context.Context, maxRequests int, window time.Duration) gin.HandlerFunc {
	limiter := NewClientLimiter(maxRequests, window)
	go limiter.Run(ctx, time.Minute)
	return Limit(limiter)
}

func Limit(limiter *ClientLimiter) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(limiter.RetryAfter.Seconds()) + 1)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "请求过于频繁，请稍后再试",
				"error":   "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
