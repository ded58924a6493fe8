package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/studentva/internal/dtos"
)

const DefaultMessage = "Too many applications from this IP, please try again after 15 minutes."

// Options configures Middleware.
type Options struct {
	Limit   int
	Window  time.Duration
	Message string
	// OnReject is called for every rejected request.
	OnReject func()
}

// Middleware gates a route per client IP. It runs before the body is read.
// Store errors let the request through.
func Middleware(store Store, opts Options) gin.HandlerFunc {
	if opts.Message == "" {
		opts.Message = DefaultMessage
	}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if store == nil || key == "" {
			c.Next()
			return
		}
		d, err := store.Hit(c.Request.Context(), key, opts.Limit, opts.Window)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request", "ip", key, "error", err)
			c.Next()
			return
		}

		reset := secondsUntil(d.ResetAt)
		c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(reset))

		if !d.Allowed {
			if opts.OnReject != nil {
				opts.OnReject()
			}
			c.Header("Retry-After", strconv.Itoa(reset))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dtos.ApplyResponse{Success: false, Message: opts.Message})
			return
		}
		c.Next()
	}
}

func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
