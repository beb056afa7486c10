// Package dataset prepares raw image tensors and integer labels for
// training: flattening, intensity scaling, one-hot encoding, joint
// shuffling, splitting, and batched loading.
package dataset

import (
	"fmt"

	"gofit/tensor"
)

// Flatten2D converts a 3D image tensor (N, H, W) into a 2D tensor
// (N, H*W) where row i is the row-major flattening of the i-th image.
// Order-preserving and deterministic.
func Flatten2D(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Rank() != 3 {
		return nil, &tensor.ShapeError{
			Op:    "dataset.Flatten2D",
			Shape: t.Shape,
			Msg:   fmt.Sprintf("expected rank 3 (N, H, W), got rank %d", t.Rank()),
		}
	}
	return t.Reshape([]int{t.Shape[0], t.Shape[1] * t.Shape[2]})
}

// Reshape3D is the inverse of Flatten2D: it restores a (N, H*W) tensor
// to (N, H, W) with the given image dimensions.
func Reshape3D(t *tensor.Tensor, height, width int) (*tensor.Tensor, error) {
	if t.Rank() != 2 {
		return nil, &tensor.ShapeError{
			Op:    "dataset.Reshape3D",
			Shape: t.Shape,
			Msg:   fmt.Sprintf("expected rank 2 (N, features), got rank %d", t.Rank()),
		}
	}
	return t.Reshape([]int{t.Shape[0], height, width})
}
