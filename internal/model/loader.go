package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// Artifacts lists every persisted model file a strategy may read.
type Artifacts struct {
	ModelPath              string
	OpenCVModelPath        string
	BackbonePath           string
	HeadWeightsPath        string
	PretrainedBackbonePath string
	Shape                  InputShape
	Runtime                Runtime
}

// Strategy is one way of reconstructing the classifier from artifacts.
type Strategy struct {
	Name string
	Load func(Artifacts) (*Handle, error)
}

// DefaultStrategies returns the production strategies in the order they
// are tried: full model first, explicit topology rebuild last.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "onnx-full", Load: loadFullONNX},
		{Name: "opencv-full", Load: loadFullOpenCV},
		{Name: "onnx-backbone-head", Load: loadBackboneHead},
		{Name: "pretrained-backbone-head", Load: loadPretrainedBackboneHead},
	}
}

// Loader tries strategies in order until one yields a working model.
type Loader struct {
	Strategies []Strategy
	SmokeTest  bool
	SmokeSeed  uint64
	Logger     *slog.Logger
}

// Load returns a State holding the first handle that loads and passes the
// smoke test. When every strategy fails it returns an empty State together
// with a *LoadFailure; the State is usable either way.
func (l *Loader) Load(a Artifacts) (*State, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var failures []StrategyError
	for _, s := range l.Strategies {
		logger.Info("loading model", "strategy", s.Name)

		h, err := s.Load(a)
		if errors.Is(err, ErrStrategySkipped) {
			logger.Info("strategy skipped", "strategy", s.Name, "reason", err.Error())
			continue
		}
		if err == nil && h == nil {
			err = errors.New("strategy returned no model")
		}
		if err == nil && l.SmokeTest {
			var p float32
			p, err = smokeTest(h, l.SmokeSeed)
			if err != nil {
				if cerr := h.Close(); cerr != nil {
					logger.Warn("failed to release model", "strategy", s.Name, "error", cerr)
				}
			} else {
				logger.Info("smoke test passed", "strategy", s.Name, "output", p)
			}
		}
		if err != nil {
			logger.Warn("strategy failed", "strategy", s.Name, "error", err)
			failures = append(failures, StrategyError{Strategy: s.Name, Err: err})
			continue
		}

		h.Strategy = s.Name
		if h.Architecture == "" {
			h.Architecture = Architecture
		}
		if h.LowConfidence {
			logger.Warn("model loaded with a generic pretrained backbone; predictions may diverge from the trained model",
				"strategy", s.Name, "architecture", h.Architecture)
		} else {
			logger.Info("model loaded", "strategy", s.Name, "architecture", h.Architecture)
		}
		return NewState(h), nil
	}

	err := &LoadFailure{Attempts: failures}
	logger.Error("model unavailable, serving in degraded mode", "error", err)
	return NewState(nil), err
}

// smokeTest runs one forward pass on seeded uniform noise. It only checks
// that the output is a single finite probability.
func smokeTest(h *Handle, seed uint64) (float32, error) {
	rng := rand.New(rand.NewPCG(seed, seed))
	input := make([]float32, h.Shape.Size())
	for i := range input {
		input[i] = rng.Float32()
	}

	p, err := h.Predict(input)
	if err != nil {
		return 0, fmt.Errorf("smoke test: %w", err)
	}
	if !validProbability(p) {
		return 0, fmt.Errorf("smoke test: output %v is not a probability", p)
	}
	return p, nil
}

func validProbability(p float32) bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0 && f <= 1
}

func loadFullONNX(a Artifacts) (*Handle, error) {
	if a.ModelPath == "" {
		return nil, fmt.Errorf("%w: no full model path", ErrStrategySkipped)
	}
	c, err := newONNXClassifier(a.ModelPath, a.Shape, a.Runtime)
	if err != nil {
		return nil, err
	}
	return &Handle{Classifier: c, Shape: a.Shape, Architecture: Architecture}, nil
}

func loadFullOpenCV(a Artifacts) (*Handle, error) {
	if a.OpenCVModelPath == "" {
		return nil, fmt.Errorf("%w: no opencv model path", ErrStrategySkipped)
	}
	c, err := newOpenCVClassifier(a.OpenCVModelPath, a.Shape)
	if err != nil {
		return nil, err
	}
	return &Handle{Classifier: c, Shape: a.Shape, Architecture: Architecture}, nil
}

func loadBackboneHead(a Artifacts) (*Handle, error) {
	if a.BackbonePath == "" || a.HeadWeightsPath == "" {
		return nil, fmt.Errorf("%w: backbone or head weights path missing", ErrStrategySkipped)
	}
	c, err := newBackboneClassifier(a.BackbonePath, a.HeadWeightsPath, a.Shape, a.Runtime)
	if err != nil {
		return nil, err
	}
	return &Handle{Classifier: c, Shape: a.Shape, Architecture: Architecture}, nil
}

// loadPretrainedBackboneHead pairs a generic ImageNet backbone with the
// trained head. Numerics differ from the trained model, so the handle is
// flagged low confidence.
func loadPretrainedBackboneHead(a Artifacts) (*Handle, error) {
	if a.PretrainedBackbonePath == "" || a.HeadWeightsPath == "" {
		return nil, fmt.Errorf("%w: no pretrained backbone path", ErrStrategySkipped)
	}
	c, err := newBackboneClassifier(a.PretrainedBackbonePath, a.HeadWeightsPath, a.Shape, a.Runtime)
	if err != nil {
		return nil, err
	}
	return &Handle{
		Classifier:    c,
		Shape:         a.Shape,
		Architecture:  Architecture + " (imagenet backbone)",
		LowConfidence: true,
	}, nil
}
