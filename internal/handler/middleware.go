package handler

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"museum_nav/internal/errs"
	"museum_nav/internal/metrics"
	"museum_nav/internal/models"
	"museum_nav/internal/service"
)

const (
	principalKey = "principal"
	routeIDKey   = "route_id"

	msgInvalidRouteID   = "Invalid route id"
	msgTooManyRequests  = "Too many requests"
	limiterIdleInterval = time.Hour
)

// extractToken reads the session cookie, falling back to a bearer header.
func (h *Handler) extractToken(c *gin.Context) string {
	if token, err := c.Cookie(h.cookieName); err == nil && token != "" {
		return token
	}

	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthMiddleware rejects the request unless it carries a live token.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := h.services.Auth.Authenticate(c.Request.Context(), h.extractToken(c))
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth identifies the caller when it can and otherwise lets the
// request through anonymously.
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.extractToken(c)
		if token != "" {
			if principal, err := h.services.Auth.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(principalKey, principal)
			}
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// mustPrincipal is used behind AuthMiddleware only.
func mustPrincipal(c *gin.Context) models.Principal {
	p, _ := principalFrom(c)
	return p
}

// RouteOwner loads the :id route owner. A missing route is 404 before an
// ownership mismatch is 403.
func (h *Handler) RouteOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		routeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || routeID <= 0 {
			h.respondError(c, errs.Validation(msgInvalidRouteID))
			return
		}

		owner, err := h.services.Routes.Owner(c.Request.Context(), routeID)
		if err != nil {
			h.respondError(c, err)
			return
		}

		if owner != mustPrincipal(c).UserID {
			h.respondError(c, errs.Forbidden(service.MsgAccessDenied))
			return
		}

		c.Set(routeIDKey, routeID)
		c.Next()
	}
}

func routeIDFrom(c *gin.Context) int64 {
	return c.GetInt64(routeIDKey)
}

// RateLimit throttles credential endpoints per client IP.
func (h *Handler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.limiter.Allow(c.ClientIP()) {
			metrics.RateLimited.Inc()
			h.respondError(c, errs.TooManyRequests(msgTooManyRequests))
			return
		}
		c.Next()
	}
}

// RateLimiter keeps one token bucket per client IP. A bucket idle for longer
// than an hour starts over full.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows reqsPerWindow requests per window and IP.
func NewRateLimiter(reqsPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Every(window / time.Duration(reqsPerWindow)),
		burst:    reqsPerWindow,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()

	entry, ok := rl.limiters[ip]
	if !ok || now.Sub(entry.lastAccess) > limiterIdleInterval {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}
