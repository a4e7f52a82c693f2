// Package store persists observed bus arrivals and serves the historical
// window the bay predictor scores.
package store

import (
	"context"
	"fmt"
	"time"

	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/predictor"
)

// ArrivalFilter pages newest first on (arrival_time, id). With BeforeID set,
// arrivals at exactly Before are kept when their id is lower.
type ArrivalFilter struct {
	Service  string
	Limit    int
	Before   *time.Time
	BeforeID int64
}

type Store interface {
	predictor.ArrivalSource
	HasArrivedOn(ctx context.Context, service, bay string, day time.Time) (bool, error)
	SaveArrival(ctx context.Context, arrival *models.BusArrival) error
	ListArrivals(ctx context.Context, filter ArrivalFilter) ([]models.BusArrival, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgres(ctx, cfg.GetDSN())
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func toHistorical(a models.BusArrival) predictor.HistoricalArrival {
	return predictor.HistoricalArrival{
		Service:      a.Service,
		Bay:          a.Bay,
		ArrivalTime:  a.ArrivalTime.UTC(),
		DayOfWeek:    time.Weekday(a.DayOfWeek),
		Weather:      a.Weather,
		IsSchoolTerm: a.IsSchoolTerm,
	}
}

// dayBounds returns the UTC midnight starting day and the one after it.
func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
