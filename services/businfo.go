package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/predictor"
	"bus-bay-prediction-api/scraper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	BusInfoCacheKey          = "CurrentBusInfo"
	BusInfoCacheKeyLegacy    = "BusInfoCacheLegacy"
	BusInfoCacheKeyPredicted = "CurrentBusInfoPredicted"
	PredictionCacheKeyPrefix = "BusPrediction"

	boardTTL      = 30 * time.Second
	predictionTTL = 45 * time.Second

	// LastUpdatedLayout is the UTC timestamp format of every board payload.
	LastUpdatedLayout = "2006-01-02T15:04:05"

	predictWorkers = 8
)

var ErrPredictionsDisabled = errors.New("predictions are not currently enabled")

type DepartureSource interface {
	FetchDepartures(ctx context.Context) ([]scraper.Departure, error)
}

type BayPredictor interface {
	Predict(ctx context.Context, service string, target time.Time) ([]predictor.BayPrediction, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// BusInfoService builds the live board payloads, attaching bay predictions
// and caching each response shape under its own key.
type BusInfoService struct {
	source             DepartureSource
	predictor          BayPredictor
	cache              Cache
	predictionsEnabled bool
	now                func() time.Time
}

func NewBusInfoService(source DepartureSource, p BayPredictor, cache Cache, predictionsEnabled bool) *BusInfoService {
	return &BusInfoService{
		source:             source,
		predictor:          p,
		cache:              cache,
		predictionsEnabled: predictionsEnabled,
		now:                time.Now,
	}
}

// GetLegacyBusInfo maps each service to its bay, or to "Not arrived".
func (s *BusInfoService) GetLegacyBusInfo(ctx context.Context) (*models.LegacyBusInfoResponse, error) {
	var cached models.LegacyBusInfoResponse
	if s.lookup(ctx, BusInfoCacheKeyLegacy, &cached) {
		return &cached, nil
	}

	departures, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.LegacyBusInfoResponse{
		BusData:     make(map[string]string, len(departures)),
		LastUpdated: s.timestamp(),
	}
	for _, d := range departures {
		if d.Bay == "" {
			resp.BusData[d.Service] = models.StatusNotArrived
		} else {
			resp.BusData[d.Service] = d.Bay
		}
	}

	s.store(ctx, BusInfoCacheKeyLegacy, resp, boardTTL)
	return resp, nil
}

// GetBusInfo returns the current board without predictions.
func (s *BusInfoService) GetBusInfo(ctx context.Context) (*models.BusInfoResponse, error) {
	var cached models.BusInfoResponse
	if s.lookup(ctx, BusInfoCacheKey, &cached) {
		return &cached, nil
	}

	departures, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.BusInfoResponse{
		BusData:     make(map[string]models.BusStatus, len(departures)),
		LastUpdated: s.timestamp(),
	}
	for _, d := range departures {
		status := models.BusStatus{Status: models.StatusArrived, Bay: d.Bay}
		if d.Bay == "" {
			status.Status = models.StatusNotArrived
		}
		resp.BusData[d.Service] = status
	}

	s.store(ctx, BusInfoCacheKey, resp, boardTTL)
	return resp, nil
}

// GetBusInfoWithPredictions returns the board with predictedBays and
// predictionConfidence filled per service. Services whose prediction fails
// are left without predictions. With predictions disabled it is GetBusInfo.
func (s *BusInfoService) GetBusInfoWithPredictions(ctx context.Context) (*models.BusInfoResponse, error) {
	if !s.predictionsEnabled {
		return s.GetBusInfo(ctx)
	}

	var cached models.BusInfoResponse
	if s.lookup(ctx, BusInfoCacheKeyPredicted, &cached) {
		return &cached, nil
	}

	board, err := s.GetBusInfo(ctx)
	if err != nil {
		return nil, err
	}

	results := s.predictAll(ctx, serviceNames(board.BusData))

	resp := &models.BusInfoResponse{
		BusData:     make(map[string]models.BusStatus, len(board.BusData)),
		LastUpdated: board.LastUpdated,
	}
	for service, status := range board.BusData {
		if preds, ok := results[service]; ok {
			status.PredictedBays = preds
			status.PredictionConfidence = predictor.OverallConfidence(preds)
		}
		resp.BusData[service] = status
	}

	s.store(ctx, BusInfoCacheKeyPredicted, resp, boardTTL)
	return resp, nil
}

// GetBusPredictions predicts every service on the current board. The
// response is cached per UTC minute.
func (s *BusInfoService) GetBusPredictions(ctx context.Context) (*models.BusPredictionResponse, error) {
	if !s.predictionsEnabled {
		return nil, ErrPredictionsDisabled
	}

	key := PredictionCacheKeyPrefix + "_" + s.now().UTC().Format("200601021504")

	var cached models.BusPredictionResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	board, err := s.GetBusInfo(ctx)
	if err != nil {
		return nil, err
	}

	results := s.predictAll(ctx, serviceNames(board.BusData))

	resp := &models.BusPredictionResponse{
		Predictions: make(map[string]models.PredictionInfo, len(results)),
		LastUpdated: s.timestamp(),
	}
	for service, preds := range results {
		resp.Predictions[service] = models.PredictionInfo{
			Predictions:       preds,
			OverallConfidence: predictor.OverallConfidence(preds),
		}
	}

	s.store(ctx, key, resp, predictionTTL)
	return resp, nil
}

// GetBusPredictionsFor predicts each requested service independently and
// omits the ones that fail or have no history.
func (s *BusInfoService) GetBusPredictionsFor(ctx context.Context, services []string) (map[string]models.PredictionInfo, error) {
	if !s.predictionsEnabled {
		return nil, ErrPredictionsDisabled
	}

	results := s.predictAll(ctx, services)

	out := make(map[string]models.PredictionInfo, len(results))
	for service, preds := range results {
		if len(preds) == 1 && preds[0].Bay == predictor.NoHistoricalData {
			continue
		}
		out[service] = models.PredictionInfo{
			Predictions:       preds,
			OverallConfidence: predictor.OverallConfidence(preds),
		}
	}
	return out, nil
}

func (s *BusInfoService) fetch(ctx context.Context) ([]scraper.Departure, error) {
	departures, err := s.source.FetchDepartures(ctx)
	if err != nil {
		boardFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	boardFetches.WithLabelValues("ok").Inc()
	return departures, nil
}

func (s *BusInfoService) predict(ctx context.Context, service string, at time.Time) ([]predictor.BayPrediction, error) {
	timer := prometheus.NewTimer(predictionDuration)
	defer timer.ObserveDuration()

	preds, err := s.predictor.Predict(ctx, service, at)
	if err != nil {
		predictionsFailed.Inc()
		return nil, fmt.Errorf("predict service %s: %w", service, err)
	}
	return preds, nil
}

// predictAll runs one prediction per service on a small worker pool. Failed
// services are logged and left out of the result.
func (s *BusInfoService) predictAll(ctx context.Context, services []string) map[string][]predictor.BayPrediction {
	at := s.now()
	results := make(map[string][]predictor.BayPrediction, len(services))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, predictWorkers)

	for _, service := range services {
		wg.Add(1)
		go func(service string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			preds, err := s.predict(ctx, service, at)
			if err != nil {
				log.Error().Err(err).Str("service", service).Msg("bay prediction failed")
				return
			}

			mu.Lock()
			results[service] = preds
			mu.Unlock()
		}(service)
	}
	wg.Wait()

	return results
}

// lookup reports a cache hit. Cache errors count as misses.
func (s *BusInfoService) lookup(ctx context.Context, key string, dest interface{}) bool {
	family := keyFamily(key)
	err := s.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		cacheLookups.WithLabelValues(family, "hit").Inc()
		return true
	case errors.Is(err, ErrCacheMiss):
		cacheLookups.WithLabelValues(family, "miss").Inc()
	default:
		cacheLookups.WithLabelValues(family, "error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	return false
}

func (s *BusInfoService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *BusInfoService) timestamp() string {
	return s.now().UTC().Format(LastUpdatedLayout)
}

func keyFamily(key string) string {
	if strings.HasPrefix(key, PredictionCacheKeyPrefix+"_") {
		return PredictionCacheKeyPrefix
	}
	return key
}

func serviceNames(data map[string]models.BusStatus) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
