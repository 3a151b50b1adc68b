package inference

import (
	"math"

	"github.com/Brownie44l1/malaria-api/internal/model"
)

const (
	// decisionThreshold is the lowest probability labelled Uninfected.
	decisionThreshold = 0.5
	// highRiskConfidence is the Parasitized confidence above which risk is High.
	highRiskConfidence = 80.0
)

// Decide maps the sigmoid output p (probability of Uninfected) to a
// labelled result. Thresholds are applied to unrounded values; the two
// class percentages are rounded independently and may not sum to 100.
func Decide(p float64) model.PredictionResult {
	var label, risk string
	var confidence float64

	if p >= decisionThreshold {
		label = model.LabelUninfected
		confidence = p * 100
		risk = model.RiskLow
	} else {
		label = model.LabelParasitized
		confidence = (1 - p) * 100
		risk = model.RiskModerate
		if confidence > highRiskConfidence {
			risk = model.RiskHigh
		}
	}

	return model.PredictionResult{
		Prediction: label,
		Confidence: round2(confidence),
		RiskLevel:  risk,
		Probabilities: model.Probabilities{
			Parasitized: round2((1 - p) * 100),
			Uninfected:  round2(p * 100),
		},
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
