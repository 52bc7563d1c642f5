package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/eldtechnologies/agentslack/internal/metrics"
)

// AgentHeader optionally names the calling agent so limits apply per agent
// instead of per IP.
const AgentHeader = "X-Agent-Name"

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // Enable auto-blocking after repeated violations; needs Redis
	ToolRPS          float64  // sustained tool calls per second per agent
}

// counter decides whether one more request fits in a limit.
type counter interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time)
}

// RateLimiter implements per-endpoint rate limiting. With a Redis client it
// uses a shared sliding window; without one it falls back to in-process
// token buckets.
type RateLimiter struct {
	counter          counter
	client           *redis.Client
	limits           map[string]RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelist        []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
}

// NewRateLimiter creates a new rate limiter. client may be nil.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	if cfg.ToolRPS <= 0 {
		cfg.ToolRPS = 5
	}
	toolsPerMinute := int(cfg.ToolRPS * 60)
	if toolsPerMinute < 1 {
		toolsPerMinute = 1
	}

	rl := &RateLimiter{
		client:       client,
		logger:       logger,
		whitelistIPs: make(map[string]bool),
		limits: map[string]RateLimit{
			"POST /register_": {30, time.Hour, ipKey},
			"POST /tools/":    {toolsPerMinute, time.Minute, agentOrIPKey},
			"GET /tools":      {120, time.Minute, ipKey},
			"GET /agents/":    {120, time.Minute, ipKey},
			"GET /worlds/":    {120, time.Minute, ipKey},
		},
	}
	if client != nil {
		rl.counter = &redisCounter{client: client}
		rl.blocker = NewIPBlocker(client)
		rl.autoBlockEnabled = cfg.AutoBlockEnabled
	} else {
		rl.counter = newLocalCounter()
		if cfg.AutoBlockEnabled {
			logger.Warn().Msg("auto-block needs Redis, disabled")
		}
	}

	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

// isWhitelisted checks if an IP is in the whitelist.
func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ipKey returns rate limit key based on client IP.
func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + RealIP(r)
}

// agentOrIPKey returns the agent key when the caller names itself,
// otherwise the IP key.
func agentOrIPKey(r *http.Request) string {
	if agent := r.Header.Get(AgentHeader); agent != "" {
		return "ratelimit:agent:" + agent
	}
	return ipKey(r)
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type redisCounter struct {
	client *redis.Client
}

// CheckAndIncrement counts the request in a sorted set per window bucket.
// Returns (allowed, remaining, resetAt).
func (c *redisCounter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-window)
	windowKey := fmt.Sprintf("%s:%d", key, now.Unix()/int64(window.Seconds()))

	pipe := c.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, windowKey, window*2)

	// Fail open when Redis is unreachable.
	if _, err := pipe.Exec(ctx); err != nil {
		return true, limit, now.Add(window)
	}

	count := countCmd.Val()
	remaining := limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < int64(limit), remaining, now.Add(window)
}

type localCounter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	lastPrune time.Time
}

type bucket struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// localPruneInterval bounds how often idle buckets are scanned for.
const localPruneInterval = time.Minute

func newLocalCounter() *localCounter {
	return &localCounter{buckets: make(map[string]*bucket), now: time.Now}
}

// CheckAndIncrement takes a token from the key's bucket, which refills at
// limit per window with a burst of limit.
func (c *localCounter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := c.now()

	c.mu.Lock()
	c.pruneLocked(now)
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit), window: window}
		c.buckets[key] = b
	}
	b.lastSeen = now
	c.mu.Unlock()

	allowed := b.lim.AllowN(now, 1)
	remaining := int(b.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, now.Add(window / time.Duration(limit))
}

// pruneLocked drops buckets idle for a full window. Such a bucket has
// refilled completely, so forgetting it does not change any decision.
func (c *localCounter) pruneLocked(now time.Time) {
	if now.Sub(c.lastPrune) < localPruneInterval {
		return
	}
	c.lastPrune = now
	for key, b := range c.buckets {
		if now.Sub(b.lastSeen) >= b.window {
			delete(c.buckets, key)
		}
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocker != nil && rl.blocker.IsBlocked(r.Context(), ip) {
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.KeyFunc(r)
		allowed, remaining, resetAt := rl.counter.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retry := int(time.Until(resetAt).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))

			rl.trackViolation(r.Context(), ip)
			metrics.RateLimitHits.WithLabelValues(endpointLabel(r)).Inc()

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("agent", r.Header.Get(AgentHeader)).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit finds the matching rate limit for a request. The longest
// matching pattern wins.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	key := r.Method + " " + r.URL.Path

	var (
		best    string
		matched *RateLimit
	)
	for pattern, limit := range rl.limits {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			l := limit
			best, matched = pattern, &l
		}
	}
	return matched
}

func endpointLabel(r *http.Request) string {
	return r.Method + " " + normalizePath(r.URL.Path)
}

// trackViolation tracks rate limit violations and auto-blocks repeat offenders.
func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := fmt.Sprintf("violations:ip:%s", ip)
	count, _ := rl.client.Incr(ctx, key).Result()
	rl.client.Expire(ctx, key, time.Hour)

	if count >= 10 {
		rl.blocker.Block(ctx, ip, 24*time.Hour, "repeated rate limit violations")
		rl.logger.Warn().
			Str("type", "security").
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}

// IPBlocker manages temporary IP blocks.
type IPBlocker struct {
	client *redis.Client
}

// NewIPBlocker creates a new IP blocker.
func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

// IsBlocked checks if an IP is blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	exists, _ := b.client.Exists(ctx, blockKey(ip)).Result()
	return exists > 0
}

// Block blocks an IP for the specified duration.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, blockKey(ip), reason, duration)
}

func blockKey(ip string) string {
	return "blocked:ip:" + ip
}
