//go:build gocv
// +build gocv

package model

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// opencvClassifier evaluates a TensorFlow frozen graph with OpenCV DNN.
// gocv.Net is not re-entrant, so Predict serializes on mu.
type opencvClassifier struct {
	mu    sync.Mutex
	net   gocv.Net
	shape InputShape
}

func newOpenCVClassifier(modelPath string, shape InputShape) (Classifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("opencv: model file not found: %w", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("opencv: failed to load network from %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &opencvClassifier{net: net, shape: shape}, nil
}

func (c *opencvClassifier) Predict(input []float32) (float32, error) {
	if len(input) != c.shape.Size() {
		return 0, fmt.Errorf("opencv: expected %d input values, got %d", c.shape.Size(), len(input))
	}

	buf := make([]byte, len(input)*4)
	for i, v := range input {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	img, err := gocv.NewMatFromBytes(c.shape.Height, c.shape.Width, gocv.MatTypeCV32FC3, buf)
	if err != nil {
		return 0, fmt.Errorf("opencv: failed to wrap input: %w", err)
	}
	defer img.Close()

	// Values are already scaled and RGB ordered; the blob only reorders to NCHW.
	blob := gocv.BlobFromImage(img, 1.0, image.Pt(c.shape.Width, c.shape.Height),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	if out.Total() != 1 {
		return 0, fmt.Errorf("opencv: expected a single scalar output, got %d values", out.Total())
	}
	return out.GetFloatAt(0, 0), nil
}

func (c *opencvClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
