package model

import (
	"fmt"
	"math"
)

// Tensor names of the head weights, as exported from the trained model.
const (
	hiddenKernel = "dense.kernel"
	hiddenBias   = "dense.bias"
	outputKernel = "dense_1.kernel"
	outputBias   = "dense_1.bias"
)

// hiddenUnits is the width of the head's hidden dense layer.
const hiddenUnits = 128

// dense is a fully connected layer with a Keras-layout kernel [in, out].
type dense struct {
	kernel []float32
	bias   []float32
	in     int
	out    int
}

func newDense(tensors map[string]tensor, kernelName, biasName string) (*dense, error) {
	k, ok := tensors[kernelName]
	if !ok {
		return nil, fmt.Errorf("head: tensor %q not found", kernelName)
	}
	b, ok := tensors[biasName]
	if !ok {
		return nil, fmt.Errorf("head: tensor %q not found", biasName)
	}
	if len(k.shape) != 2 {
		return nil, fmt.Errorf("head: %s: expected 2D kernel, got shape %v", kernelName, k.shape)
	}
	if len(b.shape) != 1 || b.shape[0] != k.shape[1] {
		return nil, fmt.Errorf("head: %s: bias shape %v doesn't match kernel %v", biasName, b.shape, k.shape)
	}
	return &dense{kernel: k.data, bias: b.data, in: k.shape[0], out: k.shape[1]}, nil
}

func (d *dense) apply(x []float32) []float32 {
	y := make([]float32, d.out)
	copy(y, d.bias)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := d.kernel[i*d.out : (i+1)*d.out]
		for j, w := range row {
			y[j] += xi * w
		}
	}
	return y
}

// head is the classifier appended to the backbone:
// GlobalAveragePooling2D -> Dropout(0.5) -> Dense(128, relu) ->
// Dropout(0.3) -> Dense(1, sigmoid). Dropout is the identity at inference.
type head struct {
	hidden *dense
	output *dense
}

// loadHead reads the head weights from a safetensors file and checks that
// they chain from features inputs to one output.
func loadHead(path string, features int) (*head, error) {
	tensors, err := readSafetensors(path)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	hidden, err := newDense(tensors, hiddenKernel, hiddenBias)
	if err != nil {
		return nil, err
	}
	output, err := newDense(tensors, outputKernel, outputBias)
	if err != nil {
		return nil, err
	}

	if hidden.in != features {
		return nil, fmt.Errorf("head: backbone emits %d features, hidden layer expects %d", features, hidden.in)
	}
	if hidden.out != hiddenUnits {
		return nil, fmt.Errorf("head: expected %d hidden units, got %d", hiddenUnits, hidden.out)
	}
	if output.in != hidden.out || output.out != 1 {
		return nil, fmt.Errorf("head: output layer shape [%d,%d] doesn't chain from hidden layer [%d,%d]",
			output.in, output.out, hidden.in, hidden.out)
	}
	return &head{hidden: hidden, output: output}, nil
}

// apply maps pooled backbone features to the sigmoid probability.
func (h *head) apply(features []float32) float32 {
	x := h.hidden.apply(features)
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
	logit := h.output.apply(x)[0]
	return sigmoid(logit)
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// globalAveragePool averages an NHWC feature map of a single sample over its
// spatial positions, returning one value per channel.
func globalAveragePool(fm []float32, positions, channels int) []float32 {
	out := make([]float32, channels)
	if positions == 0 {
		return out
	}
	for p := 0; p < positions; p++ {
		px := fm[p*channels : (p+1)*channels]
		for c, v := range px {
			out[c] += v
		}
	}
	inv := 1 / float32(positions)
	for c := range out {
		out[c] *= inv
	}
	return out
}
