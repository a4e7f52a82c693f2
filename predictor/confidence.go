package predictor

import "sort"

// OverallConfidence summarises how decisive a prediction list is. A clear
// leader keeps most of its probability; close runners-up pull it down.
func OverallConfidence(predictions []BayPrediction) int {
	switch len(predictions) {
	case 0:
		return 0
	case 1:
		return predictions[0].Probability
	}

	ordered := make([]BayPrediction, len(predictions))
	copy(ordered, predictions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Probability > ordered[j].Probability
	})

	highest := ordered[0].Probability
	second := ordered[1].Probability

	if highest >= 70 && second >= 70 {
		return max(70, highest-10)
	}
	if highest == second {
		return int(float64(highest) * 0.8)
	}

	ratio := float64(highest-second) / float64(highest)
	return int(float64(highest) * (0.7 + ratio*0.3))
}
