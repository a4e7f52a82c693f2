package store

import (
	"testing"
	"time"

	"bus-bay-prediction-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds SQL without opening a connection.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=businfo dbname=businfo sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestRecentWeekdayQuery(t *testing.T) {
	var rows []models.BusArrival
	stmt := recentWeekdayQuery(dryRunDB(t), "125", 2000).Find(&rows).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, `FROM "bus_arrivals"`)
	assert.Contains(t, sql, "service = $1")
	assert.Contains(t, sql, "day_of_week BETWEEN $2 AND $3")
	assert.Contains(t, sql, "bay IS NOT NULL AND bay <> ''")
	assert.Contains(t, sql, "ORDER BY arrival_time DESC LIMIT")
	assert.Equal(t, []interface{}{"125", int(time.Monday), int(time.Friday), 2000}, stmt.Vars)
}

func TestListQuery(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		var rows []models.BusArrival
		stmt := listQuery(dryRunDB(t), ArrivalFilter{Limit: 51}).Find(&rows).Statement
		sql := stmt.SQL.String()

		assert.NotContains(t, sql, "WHERE")
		assert.Contains(t, sql, "ORDER BY arrival_time DESC,id DESC LIMIT")
		assert.Equal(t, []interface{}{51}, stmt.Vars)
	})

	t.Run("keyset cursor with service", func(t *testing.T) {
		before := time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)
		var rows []models.BusArrival
		stmt := listQuery(dryRunDB(t), ArrivalFilter{
			Service:  "125",
			Limit:    11,
			Before:   &before,
			BeforeID: 42,
		}).Find(&rows).Statement
		sql := stmt.SQL.String()

		assert.Contains(t, sql, "arrival_time < $1 OR (arrival_time = $2 AND id < $3)")
		assert.Contains(t, sql, "service = $4")
		assert.Equal(t, []interface{}{before, before, int64(42), "125", 11}, stmt.Vars)
	})
}
