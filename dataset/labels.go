package dataset

import (
	"fmt"

	"gofit/tensor"
)

// DomainError reports a class label outside [0, numClasses).
type DomainError struct {
	Index      int
	Label      int
	NumClasses int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("dataset: label %d at index %d outside [0, %d)",
		e.Label, e.Index, e.NumClasses)
}

// InferNumClasses returns max(label)+1 for a non-empty label sequence.
func InferNumClasses(labels []int) int {
	max := -1
	for _, l := range labels {
		if l > max {
			max = l
		}
	}
	return max + 1
}

// OneHot converts integer class labels into a (N, numClasses) tensor of
// one-hot vectors. Pass numClasses <= 0 to infer it as max(label)+1.
// Every label must fall in [0, numClasses).
func OneHot(labels []int, numClasses int) (*tensor.Tensor, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("dataset: cannot one-hot encode empty label sequence")
	}
	if numClasses <= 0 {
		numClasses = InferNumClasses(labels)
	}

	out, err := tensor.Zeros([]int{len(labels), numClasses})
	if err != nil {
		return nil, err
	}
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, &DomainError{Index: i, Label: label, NumClasses: numClasses}
		}
		out.Data[i*numClasses+label] = 1.0
	}
	return out, nil
}
