package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bus-bay-prediction-api/models"
	"bus-bay-prediction-api/predictor"

	_ "modernc.org/sqlite"
)

// Arrival times are stored as UTC unix milliseconds so ordering and range
// checks stay numeric.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bus_arrivals (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		service        TEXT    NOT NULL,
		bay            TEXT    NOT NULL DEFAULT '',
		status         TEXT    NOT NULL DEFAULT '',
		arrival_time   INTEGER NOT NULL,
		day_of_week    INTEGER NOT NULL,
		temperature    REAL    NOT NULL DEFAULT 0,
		weather        TEXT    NOT NULL DEFAULT '',
		week_of_year   INTEGER NOT NULL DEFAULT 0,
		is_school_term INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bus_arrivals_service_time
		ON bus_arrivals (service, arrival_time DESC)`,
}

const arrivalColumns = `id, service, bay, status, arrival_time, day_of_week,
	temperature, weather, week_of_year, is_school_term`

// SQLite is a single-file arrival store for small deployments and tests.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) RecentWeekdayArrivals(ctx context.Context, service string, limit int) ([]predictor.HistoricalArrival, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+arrivalColumns+`
		FROM bus_arrivals
		WHERE service = ?
		  AND day_of_week BETWEEN ? AND ?
		  AND bay <> ''
		ORDER BY arrival_time DESC
		LIMIT ?
	`, service, int(time.Monday), int(time.Friday), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrivals for service %s: %w", service, err)
	}

	arrivals, err := scanArrivals(rows)
	if err != nil {
		return nil, err
	}

	history := make([]predictor.HistoricalArrival, len(arrivals))
	for i, a := range arrivals {
		history[i] = toHistorical(a)
	}
	return history, nil
}

func (s *SQLite) HasArrivedOn(ctx context.Context, service, bay string, day time.Time) (bool, error) {
	start, end := dayBounds(day)

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bus_arrivals
			WHERE service = ? AND bay = ? AND arrival_time >= ? AND arrival_time < ?
		)
	`, service, bay, start.UnixMilli(), end.UnixMilli()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check arrival for service %s: %w", service, err)
	}
	return exists, nil
}

func (s *SQLite) SaveArrival(ctx context.Context, arrival *models.BusArrival) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bus_arrivals (service, bay, status, arrival_time, day_of_week,
			temperature, weather, week_of_year, is_school_term)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		arrival.Service,
		arrival.Bay,
		arrival.Status,
		arrival.ArrivalTime.UTC().UnixMilli(),
		arrival.DayOfWeek,
		arrival.Temperature,
		arrival.Weather,
		arrival.WeekOfYear,
		arrival.IsSchoolTerm,
	)
	if err != nil {
		return fmt.Errorf("failed to insert arrival for service %s: %w", arrival.Service, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read arrival id: %w", err)
	}
	arrival.ID = id
	return nil
}

func (s *SQLite) ListArrivals(ctx context.Context, filter ArrivalFilter) ([]models.BusArrival, error) {
	query := `SELECT ` + arrivalColumns + ` FROM bus_arrivals WHERE 1 = 1`
	var args []any

	if filter.Before != nil {
		before := filter.Before.UTC().UnixMilli()
		query += ` AND (arrival_time < ? OR (arrival_time = ? AND id < ?))`
		args = append(args, before, before, filter.BeforeID)
	}
	if filter.Service != "" {
		query += ` AND service = ?`
		args = append(args, filter.Service)
	}
	query += ` ORDER BY arrival_time DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list arrivals: %w", err)
	}
	return scanArrivals(rows)
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanArrivals(rows *sql.Rows) ([]models.BusArrival, error) {
	defer rows.Close()

	var arrivals []models.BusArrival
	for rows.Next() {
		var a models.BusArrival
		var arrivalMillis int64
		if err := rows.Scan(
			&a.ID,
			&a.Service,
			&a.Bay,
			&a.Status,
			&arrivalMillis,
			&a.DayOfWeek,
			&a.Temperature,
			&a.Weather,
			&a.WeekOfYear,
			&a.IsSchoolTerm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan arrival: %w", err)
		}
		a.ArrivalTime = time.UnixMilli(arrivalMillis).UTC()
		arrivals = append(arrivals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return arrivals, nil
}
