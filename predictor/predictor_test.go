package predictor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records   []HistoricalArrival
	err       error
	calls     int
	lastLimit int
}

func (f *fakeSource) RecentWeekdayArrivals(_ context.Context, _ string, limit int) ([]HistoricalArrival, error) {
	f.calls++
	f.lastLimit = limit
	return f.records, f.err
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func arrival(bay string, ts time.Time, weather string, term bool) HistoricalArrival {
	return HistoricalArrival{
		Service:      "10",
		Bay:          bay,
		ArrivalTime:  ts,
		DayOfWeek:    ts.Weekday(),
		Weather:      weather,
		IsSchoolTerm: term,
	}
}

// Wednesday afternoon, ISO-like week 11.
var target = at(2025, time.March, 12, 15, 0)

func TestPredictWeekendShortCircuit(t *testing.T) {
	for _, day := range []time.Time{at(2025, time.March, 15, 15, 0), at(2025, time.March, 16, 9, 30)} {
		t.Run(day.Weekday().String(), func(t *testing.T) {
			src := &fakeSource{records: []HistoricalArrival{arrival("A3", target, "Rain", true)}}
			p := New(src, DefaultConfig())

			got, err := p.Predict(context.Background(), "10", day)
			require.NoError(t, err)
			assert.Equal(t, []BayPrediction{{Bay: NoWeekendService, Probability: 0}}, got)
			assert.Zero(t, src.calls, "weekend predictions must not query the store")
		})
	}
}

func TestPredictNoHistoricalData(t *testing.T) {
	tests := []struct {
		name    string
		records []HistoricalArrival
	}{
		{"empty store", nil},
		{"only unusable bays", []HistoricalArrival{
			arrival("A", target.Add(-time.Hour), "Rain", true),
			arrival("no HISTORICAL data", target.Add(-2*time.Hour), "Rain", true),
			arrival("", target.Add(-3*time.Hour), "Rain", true),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeSource{records: tt.records}, DefaultConfig())
			got, err := p.Predict(context.Background(), "10", target)
			require.NoError(t, err)
			assert.Equal(t, []BayPrediction{{Bay: NoHistoricalData, Probability: 0}}, got)
		})
	}
}

func TestPredictSingleMatchingRecord(t *testing.T) {
	src := &fakeSource{records: []HistoricalArrival{
		arrival("A3", at(2025, time.March, 5, 15, 5), "Rain", true),
	}}
	p := New(src, DefaultConfig())

	got, err := p.Predict(context.Background(), "10", target)
	require.NoError(t, err)
	assert.Equal(t, []BayPrediction{{Bay: "A3", Probability: 100}}, got)
	assert.Equal(t, 2000, src.lastLimit)
}

func TestPredictRanksBays(t *testing.T) {
	src := &fakeSource{records: []HistoricalArrival{
		arrival("A3", at(2025, time.March, 11, 15, 2), "Rain", true),
		arrival("A3", at(2025, time.March, 10, 15, 10), "Rain", true),
		arrival("B1", at(2025, time.March, 7, 15, 0), "Clear", true),
		arrival("A3", at(2025, time.March, 6, 14, 50), "Rain", true),
		arrival("C9", at(2024, time.September, 2, 8, 0), "Snow", false),
	}}
	p := New(src, DefaultConfig())

	got, err := p.Predict(context.Background(), "10", target)
	require.NoError(t, err)

	// A3: 0.35 + 0.25*0.6 + 0.15 + 0.15 + 0.10 + 0.10*0.6 = 0.96
	// B1: 0.35 + 0.25*0.2 + 0     + 0.15 + 0.10 + 0.10*0.2 = 0.67
	// C9: only the base prior, 0.02, dropped by the threshold.
	assert.Equal(t, []BayPrediction{
		{Bay: "A3", Probability: 96},
		{Bay: "B1", Probability: 67},
	}, got)
}

func TestPredictResultBounds(t *testing.T) {
	var records []HistoricalArrival
	for i, bay := range []string{"A1", "A2", "A3", "B1", "B2"} {
		for n := 0; n <= i; n++ {
			records = append(records, arrival(bay, at(2025, time.March, 10, 15, n), "Rain", true))
		}
	}
	p := New(&fakeSource{records: records}, DefaultConfig())

	got, err := p.Predict(context.Background(), "10", target)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, pred := range got {
		assert.Greater(t, pred.Probability, 15)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Probability, pred.Probability)
		}
	}
	assert.Equal(t, "B2", got[0].Bay)
}

func TestPredictNoPredictionsAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinProbability = 100
	src := &fakeSource{records: []HistoricalArrival{
		arrival("A3", at(2025, time.March, 5, 15, 5), "Rain", true),
	}}

	got, err := New(src, cfg).Predict(context.Background(), "10", target)
	require.NoError(t, err)
	assert.Equal(t, []BayPrediction{{Bay: NoPredictions, Probability: 0}}, got)
}

func TestPredictStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	p := New(&fakeSource{err: storeErr}, DefaultConfig())

	got, err := p.Predict(context.Background(), "10", target)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrPrediction)
	assert.ErrorIs(t, err, storeErr)
}

func TestTimeOfDayDoesNotWrapMidnight(t *testing.T) {
	late := at(2025, time.March, 11, 23, 55)
	tallies := aggregate([]HistoricalArrival{arrival("A3", late, "Rain", true)},
		arrival("A3", late, "Rain", true), at(2025, time.March, 12, 0, 5), DefaultConfig())

	require.Len(t, tallies, 1)
	assert.Equal(t, 0, tallies[0].timeMatches)
	assert.Equal(t, 1, tallies[0].recentMatches)
}

func TestScoreThreshold(t *testing.T) {
	cfg := DefaultConfig()
	// Only the weather ratio and the base prior contribute.
	onlyWeather := &bayTally{bay: "Z1", occurrences: 1, weatherMatches: 1}

	fifteen := score(onlyWeather, 100, cfg.Weights) // 0.15 + 0.001
	sixteen := score(onlyWeather, 10, cfg.Weights)  // 0.15 + 0.01
	require.Equal(t, 15, fifteen)
	require.Equal(t, 16, sixteen)

	got := selectTop([]BayPrediction{{Bay: "X", Probability: fifteen}}, cfg)
	assert.Equal(t, []BayPrediction{{Bay: NoPredictions, Probability: 0}}, got)

	got = selectTop([]BayPrediction{{Bay: "X", Probability: fifteen}, {Bay: "Y", Probability: sixteen}}, cfg)
	assert.Equal(t, []BayPrediction{{Bay: "Y", Probability: 16}}, got)
}

func TestScoreZeroDenominators(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 0, score(&bayTally{occurrences: 0}, 10, w))
	assert.Equal(t, 0, score(&bayTally{occurrences: 3}, 0, w))
}

func TestSelectTopKeepsStableOrderForTies(t *testing.T) {
	got := selectTop([]BayPrediction{
		{Bay: "B", Probability: 40},
		{Bay: "A", Probability: 60},
		{Bay: "C", Probability: 40},
		{Bay: "D", Probability: 40},
	}, DefaultConfig())

	assert.Equal(t, []BayPrediction{
		{Bay: "A", Probability: 60},
		{Bay: "B", Probability: 40},
		{Bay: "C", Probability: 40},
	}, got)
}

func TestWeights(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.ContextSum(), 1e-9)
	assert.InDelta(t, 1.0, w.Time+w.Recency+w.Weather+w.Seasonal+w.SchoolTerm, 1e-9)
	assert.InDelta(t, 0.10, w.Base, 1e-9)
	assert.InDelta(t, 1.10, w.Sum(), 1e-9)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2000, cfg.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.TimeWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.RecencyWindow)
	assert.Equal(t, 4, cfg.SeasonalWeeks)
	assert.Equal(t, 15, cfg.MinProbability)
	assert.Equal(t, 3, cfg.MaxResults)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max results", func(c *Config) { c.MaxResults = 0 }},
		{"negative max results", func(c *Config) { c.MaxResults = -1 }},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }},
		{"negative threshold", func(c *Config) { c.MinProbability = -1 }},
		{"threshold above 100", func(c *Config) { c.MinProbability = 101 }},
		{"zero time window", func(c *Config) { c.TimeWindow = 0 }},
		{"negative recency window", func(c *Config) { c.RecencyWindow = -time.Hour }},
		{"negative seasonal weeks", func(c *Config) { c.SeasonalWeeks = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAggregateWindowEdges(t *testing.T) {
	// target is 15:00 on Wednesday of week 11.
	tests := []struct {
		name         string
		arrivedAt    time.Time
		wantTime     int
		wantRecent   int
		wantSeasonal int
	}{
		{"exactly 15 minutes earlier in the day", at(2025, time.March, 5, 14, 45), 1, 1, 1},
		{"15 minutes and 1 second earlier in the day", at(2025, time.March, 5, 14, 44).Add(59 * time.Second), 0, 1, 1},
		{"exactly 15 minutes later in the day", at(2025, time.March, 5, 15, 15), 1, 1, 1},
		{"exactly 30 days old", target.Add(-30 * 24 * time.Hour), 1, 1, 1},
		{"30 days and 1 second old", target.Add(-30*24*time.Hour - time.Second), 1, 0, 1},
		{"exactly 4 weeks of year apart", at(2025, time.February, 12, 9, 0), 0, 1, 1},
		{"5 weeks of year apart", at(2025, time.February, 5, 9, 0), 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := []HistoricalArrival{arrival("A3", tt.arrivedAt, "Rain", true)}
			tallies := aggregate(history, history[0], target, DefaultConfig())

			require.Len(t, tallies, 1)
			assert.Equal(t, 1, tallies[0].occurrences)
			assert.Equal(t, tt.wantTime, tallies[0].timeMatches, "time")
			assert.Equal(t, tt.wantRecent, tallies[0].recentMatches, "recent")
			assert.Equal(t, tt.wantSeasonal, tallies[0].seasonalMatches, "seasonal")
		})
	}
}
