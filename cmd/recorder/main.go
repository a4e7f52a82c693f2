package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/logging"
	"bus-bay-prediction-api/predictor"
	"bus-bay-prediction-api/recorder"
	"bus-bay-prediction-api/scraper"
	"bus-bay-prediction-api/services"
	"bus-bay-prediction-api/store"
	"bus-bay-prediction-api/weather"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log, "recorder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := recorder.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid recorder config")
	}

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("db init failed")
	}
	defer db.Close()

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, live updates disabled")
	}
	defer cache.Close()

	publisher, closePublishers := buildPublisher(cfg.MQTT, cache)
	defer closePublishers()

	busInfo := services.NewBusInfoService(
		scraper.NewClient(cfg.Scraper),
		predictor.New(db, cfg.Predictor),
		cache,
		false,
	)

	go serveHTTP(cfg.Recorder.MetricsAddr, db)

	rec := recorder.New(busInfo, db, weather.NewClient(cfg.Weather), publisher, opts)
	if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("recorder stopped")
	}
	log.Info().Msg("recorder shutting down")
}

// buildPublisher always publishes to Redis and adds MQTT when MQTT_URL is set.
func buildPublisher(cfg config.MQTTConfig, cache *services.CacheService) (recorder.Publisher, func()) {
	pubs := recorder.Publishers{recorder.NewRedisPublisher(cache)}
	if cfg.URL == "" {
		return pubs, func() {}
	}

	mq, err := recorder.NewMQTTPublisher(cfg)
	if err != nil {
		log.Warn().Err(err).Str("broker", cfg.URL).Msg("mqtt disabled")
		return pubs, func() {}
	}
	log.Info().Str("broker", cfg.URL).Str("prefix", cfg.TopicPrefix).Msg("publishing arrivals to mqtt")
	return append(pubs, mq), mq.Close
}

func newMux(db pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func serveHTTP(addr string, db pinger) {
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(db),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("metrics server failed")
	}
}
