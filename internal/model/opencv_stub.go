//go:build !gocv
// +build !gocv

package model

import "errors"

// newOpenCVClassifier reports that OpenCV support was not compiled in.
func newOpenCVClassifier(string, InputShape) (Classifier, error) {
	return nil, errors.New("opencv: gocv build tag is not enabled")
}
