package inference

import (
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/malaria-api/internal/model"
)

// meanClassifier returns the mean input value, so brighter images read as
// more likely Uninfected. It records every input it sees.
type meanClassifier struct {
	mu     sync.Mutex
	inputs [][]float32
	err    error
	out    *float32
}

func (c *meanClassifier) Predict(input []float32) (float32, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, append([]float32(nil), input...))
	c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}
	if c.out != nil {
		return *c.out, nil
	}
	var sum float64
	for _, v := range input {
		sum += float64(v)
	}
	return float32(sum / float64(len(input))), nil
}

func (c *meanClassifier) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(c model.Classifier) *Pipeline {
	state := model.NewState(&model.Handle{
		Classifier:   c,
		Shape:        model.DefaultInputShape,
		Architecture: model.Architecture,
		Strategy:     "fake",
	})
	return New(state, quietLogger())
}

func TestPipeline_Predict(t *testing.T) {
	p := newTestPipeline(&meanClassifier{})

	white, err := p.Predict(context.Background(), encodePNG(t, uniformRGBA(50, 50, color.RGBA{255, 255, 255, 255})))
	require.NoError(t, err)
	require.Equal(t, model.LabelUninfected, white.Prediction)
	require.Equal(t, model.RiskLow, white.RiskLevel)
	require.InDelta(t, 100.0, white.Confidence, 1e-9)

	black, err := p.Predict(context.Background(), encodePNG(t, uniformRGBA(50, 50, color.RGBA{0, 0, 0, 255})))
	require.NoError(t, err)
	require.Equal(t, model.LabelParasitized, black.Prediction)
	require.Equal(t, model.RiskHigh, black.RiskLevel)
	require.InDelta(t, 100.0, black.Probabilities.Parasitized, 1e-9)
}

func TestPipeline_ModelUnavailable(t *testing.T) {
	p := New(model.NewState(nil), quietLogger())
	require.False(t, p.ModelLoaded())

	_, err := p.Predict(context.Background(), encodePNG(t, uniformRGBA(8, 8, color.RGBA{A: 255})))
	require.ErrorIs(t, err, model.ErrModelUnavailable)

	_, err = p.PredictTensor(context.Background(), make([]float32, model.DefaultInputShape.Size()))
	require.ErrorIs(t, err, model.ErrModelUnavailable)

	_, err = p.Model()
	require.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestPipeline_DecodeError(t *testing.T) {
	c := &meanClassifier{}
	p := newTestPipeline(c)

	_, err := p.Predict(context.Background(), []byte("GIF89a but not really"))

	var de *model.ImageDecodeError
	require.ErrorAs(t, err, &de)
	require.Empty(t, c.inputs, "the model must not run on undecodable input")
}

func TestPipeline_Idempotent(t *testing.T) {
	c := &meanClassifier{}
	p := newTestPipeline(c)
	data := encodePNG(t, uniformRGBA(77, 33, color.RGBA{10, 160, 90, 255}))

	first, err := p.Predict(context.Background(), data)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), data)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, c.inputs, 2)
	require.Equal(t, c.inputs[0], c.inputs[1])
}

func TestPipeline_Concurrent(t *testing.T) {
	p := newTestPipeline(&meanClassifier{})
	data := encodePNG(t, uniformRGBA(40, 40, color.RGBA{90, 90, 90, 255}))

	want, err := p.Predict(context.Background(), data)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*model.PredictionResult, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Predict(context.Background(), data)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, want, results[i])
	}
}

func TestPipeline_InferenceErrors(t *testing.T) {
	nan := float32(math.NaN())
	above := float32(1.2)

	for name, c := range map[string]*meanClassifier{
		"runtime": {err: errors.New("session closed")},
		"nan":     {out: &nan},
		"range":   {out: &above},
	} {
		p := newTestPipeline(c)
		_, err := p.PredictTensor(context.Background(), make([]float32, model.DefaultInputShape.Size()))

		var ie *model.InferenceError
		require.ErrorAs(t, err, &ie, name)
	}
}

func TestPipeline_PredictTensor(t *testing.T) {
	p := newTestPipeline(&meanClassifier{})

	input := make([]float32, model.DefaultInputShape.Size())
	for i := range input {
		input[i] = 0.3
	}
	got, err := p.PredictTensor(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, model.LabelParasitized, got.Prediction)
	require.Equal(t, model.RiskModerate, got.RiskLevel)
	require.InDelta(t, 70.0, got.Confidence, 0.01)
}

func TestPipeline_PredictTensorRejectsBadInput(t *testing.T) {
	p := newTestPipeline(&meanClassifier{})

	_, err := p.PredictTensor(context.Background(), make([]float32, 10))
	var pe *model.PreprocessingError
	require.ErrorAs(t, err, &pe)

	input := make([]float32, model.DefaultInputShape.Size())
	input[5] = 255
	_, err = p.PredictTensor(context.Background(), input)
	require.ErrorAs(t, err, &pe)

	input[5] = float32(math.NaN())
	_, err = p.PredictTensor(context.Background(), input)
	require.ErrorAs(t, err, &pe)
}

func TestPipeline_CanceledContext(t *testing.T) {
	c := &meanClassifier{}
	p := newTestPipeline(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, encodePNG(t, uniformRGBA(8, 8, color.RGBA{A: 255})))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, c.inputs)
}
