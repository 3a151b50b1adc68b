//go:build !gocv
// +build !gocv

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCVStub(t *testing.T) {
	c, err := newOpenCVClassifier("models/malaria_model_savedmodel.pb", DefaultInputShape)
	require.Nil(t, c)
	require.EqualError(t, err, "opencv: gocv build tag is not enabled")
}
