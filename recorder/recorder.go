// Package recorder watches the live board during the afternoon departure
// window and stores every new bay assignment as a historical arrival.
package recorder

import (
	"context"
	"fmt"
	"time"

	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/predictor"
	"bus-bay-prediction-api/weather"

	"github.com/rs/zerolog/log"
)

const resetAfter = time.Hour

type BoardSource interface {
	GetBusInfo(ctx context.Context) (*models.BusInfoResponse, error)
}

type ArrivalStore interface {
	HasArrivedOn(ctx context.Context, service, bay string, day time.Time) (bool, error)
	SaveArrival(ctx context.Context, arrival *models.BusArrival) error
}

type WeatherSource interface {
	Current(ctx context.Context, location string) (weather.Conditions, error)
}

type Options struct {
	Interval        time.Duration
	StartHour       int
	EndHour         int
	Location        *time.Location
	WeatherLocation string
	SchoolTerms     []config.SchoolTerm
}

// OptionsFromConfig resolves the recorder timezone and collects the settings
// spread across the config sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := time.LoadLocation(cfg.Recorder.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("invalid RECORDER_TIMEZONE %q: %w", cfg.Recorder.Timezone, err)
	}
	return Options{
		Interval:        cfg.Recorder.Interval,
		StartHour:       cfg.Recorder.StartHour,
		EndHour:         cfg.Recorder.EndHour,
		Location:        loc,
		WeatherLocation: cfg.Weather.Location,
		SchoolTerms:     cfg.SchoolTerms,
	}, nil
}

type Recorder struct {
	board     BoardSource
	store     ArrivalStore
	weather   WeatherSource
	publisher Publisher
	opts      Options

	// previous is the bay seen per service on the last tick. Only the Run
	// goroutine touches it.
	previous  map[string]string
	lastReset time.Time
	now       func() time.Time
}

func New(board BoardSource, store ArrivalStore, ws WeatherSource, pub Publisher, opts Options) *Recorder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if pub == nil {
		pub = Publishers{}
	}
	return &Recorder{
		board:     board,
		store:     store,
		weather:   ws,
		publisher: pub,
		opts:      opts,
		previous:  make(map[string]string),
		now:       time.Now,
	}
}

// Run ticks immediately and then every Interval until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.opts.Interval).
		Int("start_hour", r.opts.StartHour).
		Int("end_hour", r.opts.EndHour).
		Str("timezone", r.opts.Location.String()).
		Msg("recorder started")

	for {
		r.step(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("recorder stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Recorder) step(ctx context.Context) {
	now := r.now()

	switch {
	case r.inWindow(now):
		recorded, err := r.Tick(ctx)
		if err != nil {
			ticks.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("bus check failed")
			return
		}
		ticks.WithLabelValues("ok").Inc()
		log.Debug().Int("recorded", recorded).Msg("bus check complete")
	case now.Sub(r.lastReset) > resetAfter:
		r.reset(now)
		ticks.WithLabelValues("reset").Inc()
	default:
		ticks.WithLabelValues("skipped").Inc()
		log.Debug().Msg("outside recording window, skipping")
	}
}

// inWindow reports whether t falls on a weekday within [StartHour, EndHour)
// in the recorder timezone.
func (r *Recorder) inWindow(t time.Time) bool {
	local := t.In(r.opts.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return local.Hour() >= r.opts.StartHour && local.Hour() < r.opts.EndHour
}

func (r *Recorder) reset(now time.Time) {
	r.previous = make(map[string]string)
	r.lastReset = now
	log.Info().Msg("reset previous bus data")
}

// Tick reads the board once and records every service whose bay changed
// since the previous tick and has not been recorded at that bay today. A
// service that fails to record is retried on the next tick.
func (r *Recorder) Tick(ctx context.Context) (int, error) {
	board, err := r.board.GetBusInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read board: %w", err)
	}

	if err := r.publisher.PublishBoard(ctx, board); err != nil {
		publishFailures.Inc()
		log.Warn().Err(err).Msg("board publish failed")
	}

	var conditions *weather.Conditions
	recorded := 0

	for service, status := range board.BusData {
		bay := status.Bay
		if bay == "" || bay == r.previous[service] {
			r.previous[service] = bay
			continue
		}

		now := r.now().UTC()
		arrived, err := r.store.HasArrivedOn(ctx, service, bay, now)
		if err != nil {
			recordFailures.Inc()
			log.Error().Err(err).Str("service", service).Str("bay", bay).Msg("arrival lookup failed")
			continue
		}
		if arrived {
			r.previous[service] = bay
			continue
		}

		if conditions == nil {
			c := r.currentWeather(ctx)
			conditions = &c
		}

		arrival := r.newArrival(service, bay, now, *conditions)
		if err := r.store.SaveArrival(ctx, arrival); err != nil {
			recordFailures.Inc()
			log.Error().Err(err).Str("service", service).Str("bay", bay).Msg("arrival save failed")
			continue
		}

		r.previous[service] = bay
		recorded++
		arrivalsRecorded.Inc()
		log.Info().Str("service", service).Str("bay", bay).Msg("new arrival recorded")

		if err := r.publisher.PublishArrival(ctx, arrival); err != nil {
			publishFailures.Inc()
			log.Warn().Err(err).Str("service", service).Msg("arrival publish failed")
		}
	}

	return recorded, nil
}

func (r *Recorder) currentWeather(ctx context.Context) weather.Conditions {
	if r.weather == nil {
		return weather.Conditions{Condition: weather.Unknown}
	}
	c, err := r.weather.Current(ctx, r.opts.WeatherLocation)
	if err != nil {
		log.Warn().Err(err).Str("location", r.opts.WeatherLocation).Msg("weather lookup failed")
		return weather.Conditions{Condition: weather.Unknown}
	}
	return c
}

func (r *Recorder) newArrival(service, bay string, now time.Time, c weather.Conditions) *models.BusArrival {
	return &models.BusArrival{
		Service:      service,
		Bay:          bay,
		Status:       "Arrived at " + now.Format("15:04"),
		ArrivalTime:  now,
		DayOfWeek:    int(now.Weekday()),
		Temperature:  c.Temperature,
		Weather:      c.Condition,
		WeekOfYear:   predictor.WeekOfYear(now),
		IsSchoolTerm: inSchoolTerm(r.opts.SchoolTerms, now),
	}
}

func inSchoolTerm(terms []config.SchoolTerm, t time.Time) bool {
	for _, term := range terms {
		if term.Contains(t) {
			return true
		}
	}
	return false
}
