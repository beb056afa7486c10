package tensor

import (
	"fmt"
)

// Tensor is a CPU-resident float32 tensor with row-major storage.
// The first dimension is always the sample dimension for batched data.
type Tensor struct {
	Shape []int
	Data  []float32
}

// ShapeError reports a rank or dimension mismatch detected at a
// component boundary, before any corrupted data can propagate.
type ShapeError struct {
	Op    string
	Shape []int
	Msg   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape %v: %s", e.Op, e.Shape, e.Msg)
}

// New creates a tensor with the given shape and data.
// The data length must match the product of the shape dimensions.
func New(shape []int, data []float32) (*Tensor, error) {
	n, err := checkShape("tensor.New", shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, &ShapeError{
			Op:    "tensor.New",
			Shape: shape,
			Msg:   fmt.Sprintf("data length %d does not match %d elements", len(data), n),
		}
	}
	return &Tensor{Shape: copyInts(shape), Data: data}, nil
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape []int) (*Tensor, error) {
	n, err := checkShape("tensor.Zeros", shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{Shape: copyInts(shape), Data: make([]float32, n)}, nil
}

// NumElems returns the total number of elements.
func (t *Tensor) NumElems() int {
	n := 1
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Rows returns the size of the sample dimension.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// RowSize returns the number of elements per sample.
func (t *Tensor) RowSize() int {
	if len(t.Shape) == 0 || t.Shape[0] == 0 {
		return 0
	}
	return t.NumElems() / t.Shape[0]
}

// Row returns the i-th sample as a slice into the underlying storage.
func (t *Tensor) Row(i int) []float32 {
	size := t.RowSize()
	return t.Data[i*size : (i+1)*size]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Shape: copyInts(t.Shape), Data: data}
}

// Reshape returns a tensor sharing this tensor's storage with a new
// shape. The element count must be preserved.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	n, err := checkShape("tensor.Reshape", shape)
	if err != nil {
		return nil, err
	}
	if n != t.NumElems() {
		return nil, &ShapeError{
			Op:    "tensor.Reshape",
			Shape: shape,
			Msg:   fmt.Sprintf("target has %d elements, source has %d", n, t.NumElems()),
		}
	}
	return &Tensor{Shape: copyInts(shape), Data: t.Data}, nil
}

// Equal reports whether two tensors have identical shape and data.
func Equal(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i, dim := range a.Shape {
		if b.Shape[i] != dim {
			return false
		}
	}
	for i, v := range a.Data {
		if b.Data[i] != v {
			return false
		}
	}
	return true
}

func checkShape(op string, shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, &ShapeError{Op: op, Shape: shape, Msg: "empty shape"}
	}
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			return 0, &ShapeError{
				Op:    op,
				Shape: shape,
				Msg:   fmt.Sprintf("invalid dimension %d", dim),
			}
		}
		n *= dim
	}
	return n, nil
}

func copyInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
