package model

// Class labels and risk tiers reported to clients.
const (
	LabelParasitized = "Parasitized"
	LabelUninfected  = "Uninfected"

	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
)

// Architecture identifies the network every strategy reconstructs.
const Architecture = "mobilenetv2+gap-dropout(0.5)-dense(128,relu)-dropout(0.3)-dense(1,sigmoid)"

// InputShape is the per-sample NHWC input the network expects.
type InputShape struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// DefaultInputShape is 128x128 RGB.
var DefaultInputShape = InputShape{Height: 128, Width: 128, Channels: 3}

// Size returns the number of float32 values in one sample.
func (s InputShape) Size() int {
	return s.Height * s.Width * s.Channels
}

// Dims returns the batched NHWC dimensions for a batch of one.
func (s InputShape) Dims() []int64 {
	return []int64{1, int64(s.Height), int64(s.Width), int64(s.Channels)}
}

// TensorRequest is the body of a raw tensor prediction.
type TensorRequest struct {
	Input []float32 `json:"input"`
}

// Probabilities holds both class percentages, each rounded independently.
type Probabilities struct {
	Parasitized float64 `json:"Parasitized"`
	Uninfected  float64 `json:"Uninfected"`
}

// PredictionResult is the outcome of one prediction.
type PredictionResult struct {
	Prediction    string        `json:"prediction"`
	Confidence    float64       `json:"confidence"`
	RiskLevel     string        `json:"risk_level"`
	Probabilities Probabilities `json:"probabilities"`
}
