package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/technosupport/ts-camstream/internal/ratelimit"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	config  Config
}

type Config struct {
	GlobalIP ratelimit.LimitConfig `yaml:"global_ip"`
	Upload   ratelimit.LimitConfig `yaml:"upload"`
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, c Config) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: l, config: c}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i >= 0 {
		ip = ip[:i]
	}
	return ip
}

// GlobalLimiter enforces a per-IP ceiling on every request. Redis outages
// fail open so a cache blip does not take the whole API down with it.
func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipHash := m.limiter.HashIP(clientIP(r))
		key := fmt.Sprintf("rl:ip:%s", ipHash)

		decision, err := m.limiter.CheckRateLimit(r.Context(), key, m.config.GlobalIP)
		if err != nil {
			log.Printf("ratelimit: redis error, failing open: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			m.writeRateLimitHeaders(w, decision)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UploadLimiter caps frame uploads per camera. Must run after APIKeyAuth so
// the camera is on the context; unauthenticated requests fall back to IP.
func (m *RateLimitMiddleware) UploadLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if cam, ok := GetCamera(r.Context()); ok {
			key = fmt.Sprintf("rl:upload:%s", cam.ID)
		} else {
			key = fmt.Sprintf("rl:upload:ip:%s", m.limiter.HashIP(clientIP(r)))
		}

		decision, err := m.limiter.CheckRateLimit(r.Context(), key, m.config.Upload)
		if err != nil {
			log.Printf("ratelimit: redis error, failing open: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			m.writeRateLimitHeaders(w, decision)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
