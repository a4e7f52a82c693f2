package predictor

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Weights are the coefficients of the match ratios. The five context
// weights sum to 1; Base is a prior added on top, so a perfect match scores
// above 100 before clamping.
type Weights struct {
	Time       float64 `yaml:"time"`
	Recency    float64 `yaml:"recency"`
	Weather    float64 `yaml:"weather"`
	Seasonal   float64 `yaml:"seasonal"`
	SchoolTerm float64 `yaml:"school_term"`
	Base       float64 `yaml:"base"`
}

func DefaultWeights() Weights {
	return Weights{
		Time:       0.35,
		Recency:    0.25,
		Weather:    0.15,
		Seasonal:   0.15,
		SchoolTerm: 0.10,
		Base:       0.10,
	}
}

// vector orders the weights the same way score orders its factors.
func (w Weights) vector() []float64 {
	return []float64{w.Time, w.Recency, w.Weather, w.Seasonal, w.SchoolTerm, w.Base}
}

// ContextSum is the total of every weight except the base prior.
func (w Weights) ContextSum() float64 {
	return floats.Sum(w.vector()[:5])
}

func (w Weights) Sum() float64 {
	return floats.Sum(w.vector())
}

type Config struct {
	HistoryLimit   int           `yaml:"history_limit"`
	TimeWindow     time.Duration `yaml:"time_window"`
	RecencyWindow  time.Duration `yaml:"recency_window"`
	SeasonalWeeks  int           `yaml:"seasonal_weeks"`
	MinProbability int           `yaml:"min_probability"`
	MaxResults     int           `yaml:"max_results"`
	Weights        Weights       `yaml:"weights"`
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:   2000,
		TimeWindow:     15 * time.Minute,
		RecencyWindow:  30 * 24 * time.Hour,
		SeasonalWeeks:  4,
		MinProbability: 15,
		MaxResults:     3,
		Weights:        DefaultWeights(),
	}
}

// Validate rejects settings under which Predict could return more than
// MaxResults candidates or never match anything.
func (c Config) Validate() error {
	switch {
	case c.HistoryLimit < 1:
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	case c.MaxResults < 1:
		return fmt.Errorf("max_results must be at least 1, got %d", c.MaxResults)
	case c.MinProbability < 0 || c.MinProbability > 100:
		return fmt.Errorf("min_probability must be within [0, 100], got %d", c.MinProbability)
	case c.TimeWindow <= 0:
		return fmt.Errorf("time_window must be positive, got %s", c.TimeWindow)
	case c.RecencyWindow <= 0:
		return fmt.Errorf("recency_window must be positive, got %s", c.RecencyWindow)
	case c.SeasonalWeeks < 0:
		return fmt.Errorf("seasonal_weeks must not be negative, got %d", c.SeasonalWeeks)
	}
	return nil
}
