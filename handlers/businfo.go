package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bus-bay-prediction-api/middleware"
	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const MaxBatchServices = 50

type BusInfoProvider interface {
	GetLegacyBusInfo(ctx context.Context) (*models.LegacyBusInfoResponse, error)
	GetBusInfoWithPredictions(ctx context.Context) (*models.BusInfoResponse, error)
	GetBusPredictions(ctx context.Context) (*models.BusPredictionResponse, error)
	GetBusPredictionsFor(ctx context.Context, services []string) (map[string]models.PredictionInfo, error)
}

type BusInfoHandler struct {
	service BusInfoProvider
}

func NewBusInfoHandler(service BusInfoProvider) *BusInfoHandler {
	return &BusInfoHandler{service: service}
}

func (h *BusInfoHandler) GetLegacyBusInfo(c *gin.Context) {
	resp, err := h.service.GetLegacyBusInfo(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("legacy bus info failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred while fetching bus information"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BusInfoHandler) GetBusInfo(c *gin.Context) {
	resp, err := h.service.GetBusInfoWithPredictions(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("bus info failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred while fetching bus information"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BusInfoHandler) GetPredictions(c *gin.Context) {
	resp, err := h.service.GetBusPredictions(c.Request.Context())
	if errors.Is(err, services.ErrPredictionsDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "predictions are not currently enabled"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("predictions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred while fetching predictions"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetBatchPredictions serves predictions for a ';'-separated list of
// services.
func (h *BusInfoHandler) GetBatchPredictions(c *gin.Context) {
	requested, errMsg := parseBusNumbers(c.Param("busNumbers"))
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	predictions, err := h.service.GetBusPredictionsFor(c.Request.Context(), requested)
	if errors.Is(err, services.ErrPredictionsDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "predictions are not currently enabled"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("batch predictions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred while fetching predictions"})
		return
	}
	if len(predictions) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no valid bus numbers found"})
		return
	}

	c.JSON(http.StatusOK, predictions)
}

// parseBusNumbers splits, trims and deduplicates the list, keeping first
// occurrence order. The size limit applies before deduplication.
func parseBusNumbers(raw string) ([]string, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, "no bus numbers provided"
	}

	var parts []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return nil, "no valid bus numbers provided"
	}
	if len(parts) > MaxBatchServices {
		return nil, "too many bus numbers requested (maximum 50)"
	}

	seen := make(map[string]bool, len(parts))
	unique := parts[:0]
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique, ""
}
