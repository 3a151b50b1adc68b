package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	testModelPath = "../../models/malaria_mobilenetv2.onnx"
	testLibPath   = "../../models/libonnxruntime.so"
)

func skipIfNoModel(t *testing.T) {
	t.Helper()
	for _, p := range []string{testModelPath, testLibPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Skipf("%s not found; export the model into models/ first", p)
		}
	}
}

func TestCheckInputDims(t *testing.T) {
	tests := []struct {
		name    string
		dims    ort.Shape
		wantErr bool
	}{
		{"dynamic batch", ort.NewShape(-1, 128, 128, 3), false},
		{"static batch", ort.NewShape(1, 128, 128, 3), false},
		{"batch of eight", ort.NewShape(8, 128, 128, 3), true},
		{"nchw", ort.NewShape(-1, 3, 128, 128), true},
		{"wrong size", ort.NewShape(-1, 224, 224, 3), true},
		{"rank 3", ort.NewShape(128, 128, 3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInputDims(tt.dims, DefaultInputShape)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestResolveBatch(t *testing.T) {
	got, err := resolveBatch(ort.NewShape(-1, 4, 4, 1280))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 4, 4, 1280}, got)

	got, err = resolveBatch(ort.NewShape(1, 1))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 1}, got)

	_, err = resolveBatch(ort.NewShape(-1, -1, -1, 1280))
	require.ErrorContains(t, err, "dynamic")

	_, err = resolveBatch(ort.NewShape())
	require.Error(t, err)
}

func TestONNXClassifier(t *testing.T) {
	skipIfNoModel(t)

	c, err := newONNXClassifier(testModelPath, DefaultInputShape, Runtime{LibPath: testLibPath, IntraOpThreads: 1})
	require.NoError(t, err)
	defer c.Close()

	input := make([]float32, DefaultInputShape.Size())
	for i := range input {
		input[i] = 0.5
	}

	p1, err := c.Predict(input)
	require.NoError(t, err)
	require.True(t, validProbability(p1), "got %v", p1)

	p2, err := c.Predict(input)
	require.NoError(t, err)
	require.Equal(t, p1, p2, "inference must be deterministic")
}
