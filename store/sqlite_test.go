package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bus-bay-prediction-api/config"
	"bus-bay-prediction-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "arrivals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func arrival(service, bay string, at time.Time) *models.BusArrival {
	return &models.BusArrival{
		Service:      service,
		Bay:          bay,
		Status:       "Arrived at " + at.Format("15:04"),
		ArrivalTime:  at,
		DayOfWeek:    int(at.Weekday()),
		Temperature:  11.5,
		Weather:      "Clouds",
		WeekOfYear:   10,
		IsSchoolTerm: true,
	}
}

func TestSQLiteSaveAssignsID(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := arrival("125", "A3", time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC))
	second := arrival("125", "B1", time.Date(2025, time.March, 11, 15, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveArrival(ctx, first))
	require.NoError(t, s.SaveArrival(ctx, second))

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
}

func TestSQLiteRecentWeekdayArrivals(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	monday := time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, time.March, 15, 15, 0, 0, 0, time.UTC)

	for _, a := range []*models.BusArrival{
		arrival("125", "A3", monday),
		arrival("125", "B1", monday.AddDate(0, 0, 1)),
		arrival("125", "C2", saturday),
		arrival("125", "", monday.AddDate(0, 0, 2)),
		arrival("119", "D4", monday),
	} {
		require.NoError(t, s.SaveArrival(ctx, a))
	}

	history, err := s.RecentWeekdayArrivals(ctx, "125", 2000)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "B1", history[0].Bay, "newest first")
	assert.Equal(t, "A3", history[1].Bay)
	assert.Equal(t, time.Tuesday, history[0].DayOfWeek)
	assert.True(t, history[0].ArrivalTime.Equal(monday.AddDate(0, 0, 1)))
	assert.Equal(t, time.UTC, history[0].ArrivalTime.Location())
	assert.Equal(t, "Clouds", history[0].Weather)
	assert.True(t, history[0].IsSchoolTerm)

	limited, err := s.RecentWeekdayArrivals(ctx, "125", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "B1", limited[0].Bay)
}

func TestSQLiteHasArrivedOn(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	at := time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveArrival(ctx, arrival("125", "A3", at)))

	tests := []struct {
		name    string
		service string
		bay     string
		day     time.Time
		want    bool
	}{
		{"same day", "125", "A3", time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC), true},
		{"other bay", "125", "B1", at, false},
		{"other service", "119", "A3", at, false},
		{"next day", "125", "A3", at.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasArrivedOn(ctx, tt.service, tt.bay, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteListArrivals(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveArrival(ctx, arrival("125", "A3", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.SaveArrival(ctx, arrival("119", "B1", base.Add(10*time.Minute))))

	all, err := s.ListArrivals(ctx, ArrivalFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, "119", all[0].Service)

	before := base.Add(3 * time.Minute)
	page, err := s.ListArrivals(ctx, ArrivalFilter{Service: "125", Limit: 2, Before: &before})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].ArrivalTime.Equal(base.Add(2*time.Minute)))
	assert.True(t, page[1].ArrivalTime.Equal(base.Add(time.Minute)))
}

func TestSQLiteListArrivalsKeysetCursor(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// One recorder tick stores several services at the same instant.
	tick := time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)
	for _, svc := range []string{"119", "125", "X2"} {
		require.NoError(t, s.SaveArrival(ctx, arrival(svc, "A3", tick)))
	}
	require.NoError(t, s.SaveArrival(ctx, arrival("7", "B1", tick.Add(-time.Minute))))

	first, err := s.ListArrivals(ctx, ArrivalFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"X2", "125"}, []string{first[0].Service, first[1].Service})

	last := first[len(first)-1]
	second, err := s.ListArrivals(ctx, ArrivalFilter{Limit: 2, Before: &last.ArrivalTime, BeforeID: last.ID})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []string{"119", "7"}, []string{second[0].Service, second[1].Service})

	strict, err := s.ListArrivals(ctx, ArrivalFilter{Limit: 10, Before: &tick})
	require.NoError(t, err)
	require.Len(t, strict, 1, "a cursor without an id excludes the whole instant")
	assert.Equal(t, "7", strict[0].Service)
}

func TestOpenSQLiteDriver(t *testing.T) {
	s, err := Open(context.Background(), config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestDayBounds(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	start, end := dayBounds(time.Date(2025, time.June, 10, 0, 30, 0, 0, london))

	assert.Equal(t, time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC), end)
}
