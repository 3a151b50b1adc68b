package inference

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/Brownie44l1/malaria-api/internal/model"
)

// Pipeline turns uploaded images into predictions against a loaded model.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	state  *model.State
	logger *slog.Logger
}

// New creates a Pipeline over state. A state without a model makes every
// prediction fail with model.ErrModelUnavailable.
func New(state *model.State, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{state: state, logger: logger}
}

// ModelLoaded reports whether predictions can be served.
func (p *Pipeline) ModelLoaded() bool {
	return p.state.Loaded()
}

// Model returns the loaded handle, or model.ErrModelUnavailable.
func (p *Pipeline) Model() (*model.Handle, error) {
	return p.state.Handle()
}

// Predict decodes, normalizes and classifies one image.
func (p *Pipeline) Predict(ctx context.Context, data []byte) (*model.PredictionResult, error) {
	h, err := p.state.Handle()
	if err != nil {
		return nil, err
	}

	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	p.logger.DebugContext(ctx, "image decoded",
		"format", format, "width", b.Dx(), "height", b.Dy(), "color_model", colorModelName(img))

	input, err := Preprocess(img, h.Shape)
	if err != nil {
		return nil, err
	}
	return p.forward(ctx, h, input)
}

// PredictTensor classifies an already preprocessed NHWC tensor.
func (p *Pipeline) PredictTensor(ctx context.Context, input []float32) (*model.PredictionResult, error) {
	h, err := p.state.Handle()
	if err != nil {
		return nil, err
	}

	if len(input) != h.Shape.Size() {
		return nil, &model.PreprocessingError{
			Reason: fmt.Sprintf("expected %d values, got %d", h.Shape.Size(), len(input)),
		}
	}
	for i, v := range input {
		if !(v >= 0 && v <= 1) {
			return nil, &model.PreprocessingError{
				Reason: fmt.Sprintf("value %v at index %d is outside [0, 1]", v, i),
			}
		}
	}
	return p.forward(ctx, h, input)
}

func (p *Pipeline) forward(ctx context.Context, h *model.Handle, input []float32) (*model.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lo, hi := valueRange(input)
	p.logger.DebugContext(ctx, "tensor ready", "values", len(input), "min", lo, "max", hi)

	prob, err := h.Predict(input)
	if err != nil {
		return nil, &model.InferenceError{Err: err}
	}
	if !validProbability(prob) {
		return nil, &model.InferenceError{Err: fmt.Errorf("model output %v is not a probability", prob)}
	}

	result := Decide(float64(prob))
	p.logger.DebugContext(ctx, "raw model output",
		"probability", prob, "label", result.Prediction, "strategy", h.Strategy)
	return &result, nil
}

func validProbability(p float32) bool {
	return p >= 0 && p <= 1
}

func valueRange(v []float32) (lo, hi float32) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func colorModelName(img image.Image) string {
	return fmt.Sprintf("%T", img)
}
