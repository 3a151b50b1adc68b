package model

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Runtime holds ONNX Runtime process settings.
type Runtime struct {
	LibPath        string
	IntraOpThreads int
}

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initRuntime initializes the ONNX Runtime environment. Only the first call
// has any effect; later calls return the first result.
func initRuntime(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ShutdownRuntime destroys the ONNX Runtime environment if it was started.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// onnxSession wraps a DynamicAdvancedSession with one float32 input and one
// float32 output. Tensors are allocated per call, so Run is safe to call
// from concurrent requests.
type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputName  string
	inputShape  ort.Shape
	outputShape ort.Shape
}

// newONNXSession loads modelPath, checks that its single input accepts
// shape, and resolves the output dimensions for a batch of one.
func newONNXSession(modelPath string, shape InputShape, rt Runtime) (*onnxSession, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx: model file not found: %w", err)
	}

	if err := initRuntime(rt.LibPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}

	if err := checkInputDims(inputs[0].Dimensions, shape); err != nil {
		return nil, err
	}
	outDims, err := resolveBatch(outputs[0].Dimensions)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if rt.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(rt.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:     session,
		inputName:   inputs[0].Name,
		outputName:  outputs[0].Name,
		inputShape:  ort.NewShape(shape.Dims()...),
		outputShape: ort.NewShape(outDims...),
	}, nil
}

// checkInputDims accepts [N,H,W,C] where N may be dynamic and H, W, C match shape.
func checkInputDims(dims ort.Shape, shape InputShape) error {
	want := shape.Dims()
	if len(dims) != len(want) {
		return fmt.Errorf("onnx: expected 4D NHWC input, got %v", dims)
	}
	if dims[0] != -1 && dims[0] != 1 {
		return fmt.Errorf("onnx: input batch dimension %d does not accept a single sample", dims[0])
	}
	for i := 1; i < len(want); i++ {
		if dims[i] != want[i] {
			return fmt.Errorf("onnx: input shape %v does not match expected %v", dims, want)
		}
	}
	return nil
}

// resolveBatch pins a dynamic leading batch dimension to 1. Any other
// dynamic dimension cannot be pre-allocated and is rejected.
func resolveBatch(dims ort.Shape) ([]int64, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("onnx: output has no dimensions")
	}
	out := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case i == 0 && d < 0:
			out[i] = 1
		case d <= 0:
			return nil, fmt.Errorf("onnx: output dimension %d is dynamic in %v", i, dims)
		default:
			out[i] = d
		}
	}
	return out, nil
}

// run executes one forward pass and returns a copy of the output data.
func (s *onnxSession) run(input []float32) ([]float32, error) {
	in, err := ort.NewTensor(s.inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](s.outputShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// Copy data out before tensor is destroyed.
	src := out.GetData()
	result := make([]float32, len(src))
	copy(result, src)
	return result, nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}

// onnxClassifier is a full model whose output is the sigmoid probability.
type onnxClassifier struct {
	sess *onnxSession
}

func newONNXClassifier(modelPath string, shape InputShape, rt Runtime) (*onnxClassifier, error) {
	sess, err := newONNXSession(modelPath, shape, rt)
	if err != nil {
		return nil, err
	}
	if n := sess.outputShape.FlattenedSize(); n != 1 {
		err := fmt.Errorf("onnx: expected a single scalar output, got shape %v", sess.outputShape)
		return nil, errors.Join(err, sess.close())
	}
	return &onnxClassifier{sess: sess}, nil
}

func (c *onnxClassifier) Predict(input []float32) (float32, error) {
	out, err := c.sess.run(input)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func (c *onnxClassifier) Close() error {
	return c.sess.close()
}
