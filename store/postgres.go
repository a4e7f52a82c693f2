package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/predictor"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres shares one pgx pool between gorm queries and health checks.
type Postgres struct {
	pool  *pgxpool.Pool
	sqlDB *sql.DB
	db    *gorm.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	return &Postgres{pool: pool, sqlDB: sqlDB, db: db}, nil
}

func (p *Postgres) RecentWeekdayArrivals(ctx context.Context, service string, limit int) ([]predictor.HistoricalArrival, error) {
	var rows []models.BusArrival
	if err := recentWeekdayQuery(p.db.WithContext(ctx), service, limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query arrivals for service %s: %w", service, err)
	}

	history := make([]predictor.HistoricalArrival, len(rows))
	for i, r := range rows {
		history[i] = toHistorical(r)
	}
	return history, nil
}

func recentWeekdayQuery(db *gorm.DB, service string, limit int) *gorm.DB {
	return db.Model(&models.BusArrival{}).
		Where("service = ?", service).
		Where("day_of_week BETWEEN ? AND ?", int(time.Monday), int(time.Friday)).
		Where("bay IS NOT NULL AND bay <> ''").
		Order("arrival_time DESC").
		Limit(limit)
}

func (p *Postgres) HasArrivedOn(ctx context.Context, service, bay string, day time.Time) (bool, error) {
	start, end := dayBounds(day)

	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.BusArrival{}).
		Where("service = ? AND bay = ?", service, bay).
		Where("arrival_time >= ? AND arrival_time < ?", start, end).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check arrival for service %s: %w", service, err)
	}
	return count > 0, nil
}

func (p *Postgres) SaveArrival(ctx context.Context, arrival *models.BusArrival) error {
	if err := p.db.WithContext(ctx).Create(arrival).Error; err != nil {
		return fmt.Errorf("failed to insert arrival for service %s: %w", arrival.Service, err)
	}
	return nil
}

func (p *Postgres) ListArrivals(ctx context.Context, filter ArrivalFilter) ([]models.BusArrival, error) {
	var rows []models.BusArrival
	if err := listQuery(p.db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list arrivals: %w", err)
	}
	return rows, nil
}

func listQuery(db *gorm.DB, filter ArrivalFilter) *gorm.DB {
	query := db.Model(&models.BusArrival{}).
		Order("arrival_time DESC").
		Order("id DESC").
		Limit(filter.Limit)

	if filter.Before != nil {
		before := filter.Before.UTC()
		query = query.Where("arrival_time < ? OR (arrival_time = ? AND id < ?)", before, before, filter.BeforeID)
	}
	if filter.Service != "" {
		query = query.Where("service = ?", filter.Service)
	}
	return query
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	err := p.sqlDB.Close()
	p.pool.Close()
	return err
}
