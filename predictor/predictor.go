// Package predictor estimates which bay a bus service will use, scoring every
// bay the service has been seen at against the target instant.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Sentinel bay values returned in place of real candidates.
const (
	NoWeekendService = "No weekend service"
	NoHistoricalData = "No historical data"
	NoPredictions    = "No predictions"
)

var ErrPrediction = errors.New("failed to process prediction data")

// HistoricalArrival is one observed arrival of a service at a bay.
type HistoricalArrival struct {
	Service      string
	Bay          string
	ArrivalTime  time.Time
	DayOfWeek    time.Weekday
	Weather      string
	IsSchoolTerm bool
}

type BayPrediction struct {
	Bay         string `json:"bay"`
	Probability int    `json:"probability"`
}

// ArrivalSource returns the most recent weekday arrivals of a service with a
// non-empty bay, newest first, at most limit records.
type ArrivalSource interface {
	RecentWeekdayArrivals(ctx context.Context, service string, limit int) ([]HistoricalArrival, error)
}

type Predictor struct {
	source ArrivalSource
	cfg    Config
}

func New(source ArrivalSource, cfg Config) *Predictor {
	return &Predictor{source: source, cfg: cfg}
}

// Predict ranks candidate bays for service at target. It returns either real
// candidates or exactly one sentinel prediction with probability 0.
func (p *Predictor) Predict(ctx context.Context, service string, target time.Time) ([]BayPrediction, error) {
	target = target.UTC()
	if isWeekend(target) {
		return sentinel(NoWeekendService), nil
	}

	records, err := p.source.RecentWeekdayArrivals(ctx, service, p.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrediction, err)
	}

	history := usableArrivals(records)
	if len(history) == 0 {
		return sentinel(NoHistoricalData), nil
	}

	tallies := aggregate(history, latest(history), target, p.cfg)

	scored := make([]BayPrediction, 0, len(tallies))
	for _, t := range tallies {
		scored = append(scored, BayPrediction{
			Bay:         t.bay,
			Probability: score(t, len(history), p.cfg.Weights),
		})
	}

	return selectTop(scored, p.cfg), nil
}

// bayTally holds the per-bay match counts over the historical window.
type bayTally struct {
	bay               string
	occurrences       int
	timeMatches       int
	recentMatches     int
	weatherMatches    int
	seasonalMatches   int
	schoolTermMatches int
}

// aggregate groups history by bay in order of first appearance.
func aggregate(history []HistoricalArrival, ref HistoricalArrival, target time.Time, cfg Config) []*bayTally {
	targetMinutes := minutesOfDay(target)
	targetWeek := WeekOfYear(target)
	timeWindow := cfg.TimeWindow.Minutes()

	index := make(map[string]*bayTally)
	var ordered []*bayTally

	for _, a := range history {
		t, ok := index[a.Bay]
		if !ok {
			t = &bayTally{bay: a.Bay}
			index[a.Bay] = t
			ordered = append(ordered, t)
		}

		arrival := a.ArrivalTime.UTC()
		t.occurrences++
		if math.Abs(minutesOfDay(arrival)-targetMinutes) <= timeWindow {
			t.timeMatches++
		}
		if target.Sub(arrival) <= cfg.RecencyWindow {
			t.recentMatches++
		}
		if a.Weather == ref.Weather {
			t.weatherMatches++
		}
		if weekDistance(WeekOfYear(arrival), targetWeek) <= cfg.SeasonalWeeks {
			t.seasonalMatches++
		}
		if a.IsSchoolTerm == ref.IsSchoolTerm {
			t.schoolTermMatches++
		}
	}

	return ordered
}

// score combines the match ratios into a 0-100 confidence. Recency and the
// base prior are relative to the whole window, the rest to the bay's own
// occurrences.
func score(t *bayTally, totalRecords int, w Weights) int {
	if totalRecords == 0 || t.occurrences == 0 {
		return 0
	}

	occurrences := float64(t.occurrences)
	total := float64(totalRecords)

	factors := []float64{
		float64(t.timeMatches) / occurrences,
		float64(t.recentMatches) / total,
		float64(t.weatherMatches) / occurrences,
		float64(t.seasonalMatches) / occurrences,
		float64(t.schoolTermMatches) / occurrences,
		occurrences / total,
	}

	weighted := floats.Dot(w.vector(), factors)

	return int(math.RoundToEven(math.Max(0, math.Min(100, weighted*100))))
}

func selectTop(scored []BayPrediction, cfg Config) []BayPrediction {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Probability > scored[j].Probability
	})

	var top []BayPrediction
	for _, p := range scored {
		if p.Probability <= cfg.MinProbability {
			continue
		}
		top = append(top, p)
		if len(top) == cfg.MaxResults {
			break
		}
	}

	if len(top) == 0 {
		return sentinel(NoPredictions)
	}
	return top
}

func usableArrivals(records []HistoricalArrival) []HistoricalArrival {
	usable := make([]HistoricalArrival, 0, len(records))
	for _, r := range records {
		if len(r.Bay) < 2 || strings.EqualFold(r.Bay, NoHistoricalData) {
			continue
		}
		usable = append(usable, r)
	}
	return usable
}

func latest(history []HistoricalArrival) HistoricalArrival {
	ref := history[0]
	for _, a := range history[1:] {
		if a.ArrivalTime.After(ref.ArrivalTime) {
			ref = a
		}
	}
	return ref
}

func sentinel(bay string) []BayPrediction {
	return []BayPrediction{{Bay: bay, Probability: 0}}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// minutesOfDay is the time of day in fractional minutes since midnight.
func minutesOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) +
		float64(t.Second())/60 +
		float64(t.Nanosecond())/float64(time.Minute)
}
