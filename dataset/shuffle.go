package dataset

import (
	"fmt"
	"math/rand"

	"gofit/tensor"
)

// Permutation returns a uniform random permutation of [0, n),
// deterministic for a given seed.
func Permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(n)
}

// Shuffle applies one seeded permutation jointly to features and
// labels, preserving row correspondence: out[i] = in[perm[i]] for both
// tensors. Applying different permutations to each would silently
// corrupt the supervised pairing, so the permutation is drawn once and
// returned for verification.
func Shuffle(features, labels *tensor.Tensor, seed int64) (*tensor.Tensor, *tensor.Tensor, []int, error) {
	if features.Rows() != labels.Rows() {
		return nil, nil, nil, &tensor.ShapeError{
			Op:    "dataset.Shuffle",
			Shape: labels.Shape,
			Msg: fmt.Sprintf("labels have %d rows, features have %d",
				labels.Rows(), features.Rows()),
		}
	}

	perm := Permutation(features.Rows(), seed)
	return Gather(features, perm), Gather(labels, perm), perm, nil
}

// Gather builds a new tensor whose i-th row is the indices[i]-th row of
// the source tensor.
func Gather(t *tensor.Tensor, indices []int) *tensor.Tensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	shape[0] = len(indices)

	rowSize := t.RowSize()
	data := make([]float32, len(indices)*rowSize)
	for i, idx := range indices {
		copy(data[i*rowSize:(i+1)*rowSize], t.Row(idx))
	}
	return &tensor.Tensor{Shape: shape, Data: data}
}
