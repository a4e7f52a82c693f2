package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bus-bay-prediction-api/middleware"
	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/services"
	"bus-bay-prediction-api/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ArrivalLister interface {
	ListArrivals(ctx context.Context, filter store.ArrivalFilter) ([]models.BusArrival, error)
}

type ArrivalsHandler struct {
	store ArrivalLister
	cache *services.CacheService
}

func NewArrivalsHandler(s ArrivalLister, cache *services.CacheService) *ArrivalsHandler {
	return &ArrivalsHandler{store: s, cache: cache}
}

func (h *ArrivalsHandler) GetArrivals(c *gin.Context) {
	p, err := ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	service := c.Query("service")
	cursor := ""
	filter := store.ArrivalFilter{Service: service, Limit: p.Limit + 1}
	if p.Before != nil {
		cursor = p.Before.String()
		filter.Before = &p.Before.Time
		filter.BeforeID = p.Before.ID
	}
	cacheKey := fmt.Sprintf("arrivals:%s:%d:%s", service, p.Limit, cursor)

	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := h.store.ListArrivals(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("list arrivals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []models.BusArrival{}
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		nextCursor = ArrivalCursor{Time: last.ArrivalTime, ID: last.ID}.String()
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, 30*time.Second)

	c.JSON(http.StatusOK, resp)
}
