package dataset

import (
	"fmt"

	"gofit/tensor"
)

// Dataset pairs prepared features with one-hot labels. Row order
// matches between the two tensors at all times.
type Dataset struct {
	Features *tensor.Tensor
	Labels   *tensor.Tensor
}

// New validates that features and labels have matching row counts.
func New(features, labels *tensor.Tensor) (*Dataset, error) {
	if features.Rows() != labels.Rows() {
		return nil, &tensor.ShapeError{
			Op:    "dataset.New",
			Shape: labels.Shape,
			Msg: fmt.Sprintf("labels have %d rows, features have %d",
				labels.Rows(), features.Rows()),
		}
	}
	return &Dataset{Features: features, Labels: labels}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.Features.Rows()
}

// NumClasses returns the one-hot width of the labels.
func (d *Dataset) NumClasses() int {
	return d.Labels.RowSize()
}

// Split partitions the dataset into a training set and a held-out
// validation set. The last valFraction of rows becomes the validation
// set; shuffle before splitting for a random holdout.
func (d *Dataset) Split(valFraction float64) (*Dataset, *Dataset, error) {
	if valFraction <= 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("dataset: validation fraction must be in (0, 1), got %g", valFraction)
	}

	n := d.Len()
	valSize := int(float64(n) * valFraction)
	if valSize == 0 || valSize == n {
		return nil, nil, fmt.Errorf("dataset: validation fraction %g leaves an empty split for %d samples", valFraction, n)
	}
	trainSize := n - valSize

	trainIdx := make([]int, trainSize)
	valIdx := make([]int, valSize)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	for i := range valIdx {
		valIdx[i] = trainSize + i
	}

	train := &Dataset{
		Features: Gather(d.Features, trainIdx),
		Labels:   Gather(d.Labels, trainIdx),
	}
	val := &Dataset{
		Features: Gather(d.Features, valIdx),
		Labels:   Gather(d.Labels, valIdx),
	}
	return train, val, nil
}
