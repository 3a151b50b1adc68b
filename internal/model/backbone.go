package model

import (
	"errors"
	"fmt"
)

// backboneClassifier runs a feature-extraction backbone in ONNX Runtime and
// the classification head in Go.
type backboneClassifier struct {
	sess      *onnxSession
	head      *head
	positions int
	channels  int
}

// newBackboneClassifier rebuilds the network from a backbone model and
// weights-only head. The backbone may emit a [1,H,W,C] feature map or
// already-pooled [1,C] features.
func newBackboneClassifier(backbonePath, headPath string, shape InputShape, rt Runtime) (*backboneClassifier, error) {
	sess, err := newONNXSession(backbonePath, shape, rt)
	if err != nil {
		return nil, fmt.Errorf("backbone: %w", err)
	}

	var positions, channels int
	switch dims := sess.outputShape; len(dims) {
	case 4:
		positions, channels = int(dims[1]*dims[2]), int(dims[3])
	case 2:
		positions, channels = 1, int(dims[1])
	default:
		err := fmt.Errorf("backbone: expected [1,H,W,C] or [1,C] output, got %v", dims)
		return nil, errors.Join(err, sess.close())
	}

	h, err := loadHead(headPath, channels)
	if err != nil {
		return nil, errors.Join(err, sess.close())
	}

	return &backboneClassifier{
		sess:      sess,
		head:      h,
		positions: positions,
		channels:  channels,
	}, nil
}

func (c *backboneClassifier) Predict(input []float32) (float32, error) {
	fm, err := c.sess.run(input)
	if err != nil {
		return 0, fmt.Errorf("backbone: %w", err)
	}
	pooled := globalAveragePool(fm, c.positions, c.channels)
	return c.head.apply(pooled), nil
}

func (c *backboneClassifier) Close() error {
	return c.sess.close()
}
