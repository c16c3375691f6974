package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/core/port"
	"github.com/David567rs/LoginAna/internal/infra/logger"
)

const (
	rateLimitProblemType  = "/problems/rate-limit-exceeded"
	rateLimitProblemTitle = "Too Many Requests"
)

// IdentifierFunc extracts the value a rule is scoped by, such as the client IP.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding-window limit of Limit attempts per Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// ClientIPRule limits a route per client IP.
func ClientIPRule(name string, limit int, window time.Duration) RateLimitRule {
	return RateLimitRule{Name: name, Limit: limit, Window: window, Identifier: ClientIPIdentifier()}
}

// ClientIPIdentifier scopes a rule by c.ClientIP().
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimiter enforces RateLimitRules against a shared attempt store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails is the RFC 9457 body returned on rejection.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

type decision struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: log, now: time.Now}
}

// WithClock overrides the time source, mainly for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit returns a middleware enforcing rules in order. Rules with a non-positive limit or
// window are ignored. Store errors let the request through.
func (rl *RateLimiter) Limit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if rl == nil || rl.store == nil || len(active) == 0 {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *decision

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok {
				continue
			}

			d, err := rl.evaluate(c, rule, rule.Name+":"+identifier, now)
			if err != nil {
				logger.FromContext(c.Request.Context(), rl.logger).Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("client_ip", logger.MaskIP(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !d.allowed {
				logger.FromContext(c.Request.Context(), rl.logger).Info("rate limit exceeded",
					zap.String("rule", rule.Name),
					zap.String("client_ip", logger.MaskIP(identifier)),
				)
				writeRateLimitHeaders(c, d)
				rejectRateLimited(c, d)
				return
			}
			if tightest == nil || d.remaining < tightest.remaining {
				tightest = &d
			}
		}

		if tightest != nil {
			writeRateLimitHeaders(c, *tightest)
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(c *gin.Context, rule RateLimitRule, key string, now time.Time) (decision, error) {
	ctx := c.Request.Context()

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return decision{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}
	oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}

	d := decision{allowed: true, limit: rule.Limit, reset: now.Add(rule.Window)}
	if found {
		d.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		d.allowed = false
		d.retryAfter = max(d.reset.Sub(now), 0)
		return d, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return decision{}, err
	}
	d.remaining = max(rule.Limit-count-1, 0)
	return d, nil
}

func writeRateLimitHeaders(c *gin.Context, d decision) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))
	if !d.allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(d.retryAfter)))
	}
}

func rejectRateLimited(c *gin.Context, d decision) {
	seconds := retrySeconds(d.retryAfter)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
