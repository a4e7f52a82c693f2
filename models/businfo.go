package models

import "bus-bay-prediction-api/predictor"

const (
	StatusArrived    = "Arrived"
	StatusNotArrived = "Not arrived"
)

type BusStatus struct {
	Status               string                    `json:"status"`
	Bay                  string                    `json:"bay"`
	PredictedBays        []predictor.BayPrediction `json:"predictedBays,omitempty"`
	PredictionConfidence int                       `json:"predictionConfidence"`
}

type BusInfoResponse struct {
	BusData     map[string]BusStatus `json:"busData"`
	LastUpdated string               `json:"lastUpdated"`
}

// LegacyBusInfoResponse maps each service straight to its bay, or to
// "Not arrived".
type LegacyBusInfoResponse struct {
	BusData     map[string]string `json:"busData"`
	LastUpdated string            `json:"lastUpdated"`
}

type PredictionInfo struct {
	Predictions       []predictor.BayPrediction `json:"predictions"`
	OverallConfidence int                       `json:"overallConfidence"`
}

type BusPredictionResponse struct {
	Predictions map[string]PredictionInfo `json:"predictions"`
	LastUpdated string                    `json:"lastUpdated"`
}
