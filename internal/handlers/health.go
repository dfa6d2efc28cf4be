package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
}

// Health reports 503 when the database is down; cache and storage problems
// only degrade the status.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    h.probe(ctx, "database", h.db),
		Storage:     h.probe(ctx, "storage", h.store),
		Cache:       "disabled",
		Environment: h.cfg.Environment,
	}
	if h.cache != nil {
		resp.Cache = h.probe(ctx, "cache", redisPinger{h.cache})
	}

	status := http.StatusOK
	switch {
	case resp.Database == "error":
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	case resp.Cache == "error" || resp.Storage == "error":
		resp.Status = "degraded"
	}

	c.JSON(status, resp)
}

func (h HandlerSet) probe(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.log.Error().Err(err).Str("component", name).Msg("health probe failed")
		return "error"
	}
	return "ok"
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
