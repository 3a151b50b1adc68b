package inference

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/malaria-api/internal/model"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		p           float64
		label       string
		confidence  float64
		risk        string
		parasitized float64
		uninfected  float64
	}{
		{0.1, model.LabelParasitized, 90.00, model.RiskHigh, 90.00, 10.00},
		{0.3, model.LabelParasitized, 70.00, model.RiskModerate, 70.00, 30.00},
		{0.5, model.LabelUninfected, 50.00, model.RiskLow, 50.00, 50.00},
		{0.95, model.LabelUninfected, 95.00, model.RiskLow, 5.00, 95.00},
		{0.0, model.LabelParasitized, 100.00, model.RiskHigh, 100.00, 0.00},
		{1.0, model.LabelUninfected, 100.00, model.RiskLow, 0.00, 100.00},
		{0.4999, model.LabelParasitized, 50.01, model.RiskModerate, 50.01, 49.99},
		{0.25, model.LabelParasitized, 75.00, model.RiskModerate, 75.00, 25.00},
		{0.15, model.LabelParasitized, 85.00, model.RiskHigh, 85.00, 15.00},
	}

	for _, tt := range tests {
		got := Decide(tt.p)
		require.Equal(t, tt.label, got.Prediction, "p=%v", tt.p)
		require.InDelta(t, tt.confidence, got.Confidence, 1e-9, "p=%v", tt.p)
		require.Equal(t, tt.risk, got.RiskLevel, "p=%v", tt.p)
		require.InDelta(t, tt.parasitized, got.Probabilities.Parasitized, 1e-9, "p=%v", tt.p)
		require.InDelta(t, tt.uninfected, got.Probabilities.Uninfected, 1e-9, "p=%v", tt.p)
	}
}

func TestDecide_LabelBoundary(t *testing.T) {
	for p := 0.0; p < 0.5; p += 0.01 {
		require.Equal(t, model.LabelParasitized, Decide(p).Prediction, "p=%v", p)
	}
	for _, p := range []float64{0.5, 0.51, 0.75, 0.999, 1} {
		require.Equal(t, model.LabelUninfected, Decide(p).Prediction, "p=%v", p)
		require.Equal(t, model.RiskLow, Decide(p).RiskLevel, "p=%v", p)
	}
}

func TestDecide_IndependentRounding(t *testing.T) {
	// 12.345 -> 12.35 and 87.655 -> 87.66 when rounded separately.
	got := Decide(0.12345)
	sum := got.Probabilities.Parasitized + got.Probabilities.Uninfected
	require.InDelta(t, 87.66, got.Probabilities.Parasitized, 1e-9)
	require.InDelta(t, 12.35, got.Probabilities.Uninfected, 1e-9)
	require.InDelta(t, 100.01, sum, 1e-9, "rounding is per class, not normalized")
}

func TestDecide_RiskUsesUnroundedConfidence(t *testing.T) {
	// Confidence 80.004 rounds to 80.00 but is still above 80.
	got := Decide(0.19996)
	require.Equal(t, model.RiskHigh, got.RiskLevel)
	require.InDelta(t, 80.00, got.Confidence, 1e-9)
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.23, round2(1.2345))
	require.Equal(t, 1.24, round2(1.2351))
	require.Equal(t, 90.0, round2(90.00000000000001))
}
