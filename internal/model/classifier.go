package model

// Classifier runs a forward pass over one NHWC float32 sample and returns the
// sigmoid output. Implementations must be safe for concurrent use.
type Classifier interface {
	Predict(input []float32) (float32, error)
	Close() error
}

// Handle is a loaded, ready-to-evaluate model. It is never mutated after
// the loader returns it.
type Handle struct {
	Classifier
	Shape         InputShape
	Architecture  string
	Strategy      string
	LowConfidence bool
}

// State holds the process-wide "model or none" result of loading.
type State struct {
	handle *Handle
}

// NewState wraps h. A nil h means the model is unavailable.
func NewState(h *Handle) *State {
	return &State{handle: h}
}

// Loaded reports whether a model is available.
func (s *State) Loaded() bool {
	return s != nil && s.handle != nil
}

// Handle returns the loaded model, or ErrModelUnavailable.
func (s *State) Handle() (*Handle, error) {
	if !s.Loaded() {
		return nil, ErrModelUnavailable
	}
	return s.handle, nil
}

// Close releases the model's runtime resources.
func (s *State) Close() error {
	if !s.Loaded() {
		return nil
	}
	return s.handle.Close()
}
