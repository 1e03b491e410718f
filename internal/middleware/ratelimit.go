package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/schemaforge/api/handlers"
	"github.com/BaSui01/schemaforge/types"
)

const (
	idleLimiterTTL = 3 * time.Minute
	sweepInterval  = time.Minute
)

type ipLimiter struct {
	*rate.Limiter
	seen time.Time
}

// ipLimiters 每个客户端 IP 一个令牌桶，闲置超过 idleLimiterTTL 的被回收
type ipLimiters struct {
	rps   rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*ipLimiter
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.m[ip]
	if !ok {
		e = &ipLimiter{Limiter: rate.NewLimiter(l.rps, l.burst)}
		l.m[ip] = e
	}
	e.seen = now
	return e.Limiter
}

func (l *ipLimiters) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.m {
		if now.Sub(e.seen) > idleLimiterTTL {
			delete(l.m, ip)
		}
	}
}

// RateLimiter 按客户端 IP 限流，rps <= 0 时直接放行。
// 被拒绝的请求返回 429 与按令牌桶计算的 Retry-After；回收 goroutine 随 ctx 退出。
func RateLimiter(ctx context.Context, rps float64, burst int, logger *zap.Logger) Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}
	limiters := &ipLimiters{rps: rate.Limit(rps), burst: burst, m: make(map[string]*ipLimiter)}

	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				limiters.sweep(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			now := time.Now()
			res := limiters.get(ip, now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
				res.CancelAt(now)
				logger.Debug("rate limited", zap.String("ip", ip), zap.Duration("retry_in", delay))
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(delay.Seconds())))))
				handlers.WriteError(w, r, types.NewRateLimitError("too many requests"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
