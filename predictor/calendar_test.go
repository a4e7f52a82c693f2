package predictor

import (
	"testing"
	"time"
)

func TestWeekOfYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC), 1},   // Wednesday
		{time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC), 11},   // Wednesday
		{time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 1},    // Monday
		{time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), 53}, // ISO says 2025-W01
		{time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 53},
		{time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), 53}, // Friday, previous year's week
		{time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), 52}, // Sunday
		{time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			if got := WeekOfYear(tt.date); got != tt.want {
				t.Errorf("WeekOfYear(%s) = %d, want %d", tt.date.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestWeekDistance(t *testing.T) {
	tests := []struct {
		a, b int
		want int
	}{
		{11, 11, 0},
		{11, 15, 4},
		{15, 11, 4},
		{10, 36, 26},
		{10, 37, 25}, // 27 folds to 52-27
		{1, 52, 1},
		{53, 1, 0},
		{2, 50, 4},
	}
	for _, tt := range tests {
		if got := weekDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("weekDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSeasonalMatchAcrossYearBoundary(t *testing.T) {
	newYear := time.Date(2025, time.January, 8, 15, 0, 0, 0, time.UTC) // week 2
	december := time.Date(2024, time.December, 18, 15, 0, 0, 0, time.UTC)

	tallies := aggregate(
		[]HistoricalArrival{{Bay: "A3", ArrivalTime: december}},
		HistoricalArrival{Bay: "A3", ArrivalTime: december},
		newYear, DefaultConfig(),
	)
	if tallies[0].seasonalMatches != 1 {
		t.Errorf("seasonalMatches = %d, want 1 for week 51 vs week 2", tallies[0].seasonalMatches)
	}
}
