package dataset

import (
	"fmt"

	"gofit/tensor"
)

// RangeError reports a degenerate scaling range.
type RangeError struct {
	Min, Max float32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dataset: degenerate value range [%g, %g]", e.Min, e.Max)
}

// Scaler rescales pixel intensities from a known source range into
// [0, 1]. The same scaler must be applied to every dataset split so
// the splits stay comparable.
type Scaler struct {
	Min float32
	Max float32
}

// NewScaler creates a scaler for the source range [min, max].
func NewScaler(min, max float32) (*Scaler, error) {
	if max == min {
		return nil, &RangeError{Min: min, Max: max}
	}
	return &Scaler{Min: min, Max: max}, nil
}

// Apply returns a new tensor with every element mapped through
// (x - min) / (max - min).
func (s *Scaler) Apply(t *tensor.Tensor) *tensor.Tensor {
	out := t.Clone()
	span := s.Max - s.Min
	for i, v := range out.Data {
		out.Data[i] = (v - s.Min) / span
	}
	return out
}
