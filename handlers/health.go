package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports UP while the store answers. A cache outage only degrades
// the response since the cache falls back to memory.
func Health(db Pinger, cache Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := gin.H{"status": "UP", "database": "up", "cache": "up"}
		code := http.StatusOK

		if err := db.Ping(ctx); err != nil {
			resp["status"] = "DOWN"
			resp["database"] = "down"
			code = http.StatusServiceUnavailable
		}
		if err := cache.Ping(ctx); err != nil {
			resp["cache"] = "degraded"
		}

		c.JSON(code, resp)
	}
}
