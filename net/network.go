// Package net implements the numeric collaborator for the training
// core: a feed-forward classifier with dense layers, ReLU and Softmax
// activations, inverted dropout, categorical cross-entropy, and an
// SGD-with-momentum optimizer step. Layer math runs on gonum mat.
package net

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"gofit/layers"
	"gofit/tensor"
)

type activation int

const (
	actNone activation = iota
	actReLU
	actSoftmax
)

// denseLayer holds the weights, momentum buffers, and post-activation
// behavior of one affine layer.
type denseLayer struct {
	name string

	w *mat.Dense // inputSize x outputSize
	b []float64  // outputSize, nil when bias disabled

	vw *mat.Dense // momentum velocity for w
	vb []float64

	act      activation
	dropRate float64
}

// Config controls network construction and optimizer behavior.
type Config struct {
	Seed     int64   `json:"seed"`
	Momentum float64 `json:"momentum"`
}

// Network is a feed-forward classifier built from a compiled ModelSpec.
// It owns mutable weight state; a single training run must be its sole
// writer.
type Network struct {
	spec     *layers.ModelSpec
	layers   []*denseLayer
	momentum float64
	rng      *rand.Rand
}

// FromSpec instantiates a network from a compiled model specification.
// Weights use seeded Glorot-uniform initialization so runs are
// reproducible.
func FromSpec(spec *layers.ModelSpec, cfg Config) (*Network, error) {
	if spec == nil || !spec.Compiled {
		return nil, fmt.Errorf("net: model spec must be compiled")
	}
	if cfg.Momentum < 0 || cfg.Momentum >= 1 {
		return nil, fmt.Errorf("net: momentum must be in [0, 1), got %g", cfg.Momentum)
	}

	n := &Network{
		spec:     spec,
		momentum: cfg.Momentum,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}

	for _, ls := range spec.Layers {
		switch ls.Type {
		case layers.Dense:
			inputSize, ok := ls.IntParam("input_size")
			if !ok {
				return nil, fmt.Errorf("net: dense layer %q has no input_size; spec not compiled?", ls.Name)
			}
			outputSize, ok := ls.IntParam("output_size")
			if !ok {
				return nil, fmt.Errorf("net: dense layer %q has no output_size", ls.Name)
			}
			useBias := true
			if b, ok := ls.Parameters["use_bias"].(bool); ok {
				useBias = b
			}
			n.layers = append(n.layers, n.newDense(ls.Name, inputSize, outputSize, useBias))

		case layers.ReLU, layers.Softmax:
			last := n.lastLayer()
			if last == nil || last.act != actNone {
				return nil, fmt.Errorf("net: activation %q must directly follow a dense layer", ls.Name)
			}
			if ls.Type == layers.ReLU {
				last.act = actReLU
			} else {
				last.act = actSoftmax
			}

		case layers.Dropout:
			last := n.lastLayer()
			if last == nil {
				return nil, fmt.Errorf("net: dropout %q must follow a dense layer", ls.Name)
			}
			last.dropRate = ls.Parameters["rate"].(float64)

		default:
			return nil, fmt.Errorf("net: unsupported layer type %s", ls.Type)
		}
	}

	if len(n.layers) == 0 {
		return nil, fmt.Errorf("net: model has no dense layers")
	}
	return n, nil
}

func (n *Network) newDense(name string, inputSize, outputSize int, useBias bool) *denseLayer {
	// Glorot-uniform initialization keeps early activations in range.
	limit := math.Sqrt(6.0 / float64(inputSize+outputSize))
	w := make([]float64, inputSize*outputSize)
	for i := range w {
		w[i] = (n.rng.Float64()*2 - 1) * limit
	}

	l := &denseLayer{
		name: name,
		w:    mat.NewDense(inputSize, outputSize, w),
		vw:   mat.NewDense(inputSize, outputSize, nil),
	}
	if useBias {
		l.b = make([]float64, outputSize)
		l.vb = make([]float64, outputSize)
	}
	return l
}

func (n *Network) lastLayer() *denseLayer {
	if len(n.layers) == 0 {
		return nil
	}
	return n.layers[len(n.layers)-1]
}

// Spec returns the model specification this network was built from.
func (n *Network) Spec() *layers.ModelSpec {
	return n.spec
}

// forwardCache records per-layer activations needed by backprop.
type forwardCache struct {
	input   *mat.Dense
	outputs []*mat.Dense // post-activation, post-dropout
	masks   [][]float64  // inverted dropout masks, nil when inactive
}

// forward runs the batch through every layer. Dropout is applied only
// when training is true.
func (n *Network) forward(x *mat.Dense, training bool) *forwardCache {
	cache := &forwardCache{
		input:   x,
		outputs: make([]*mat.Dense, len(n.layers)),
		masks:   make([][]float64, len(n.layers)),
	}

	current := x
	for li, l := range n.layers {
		rows, _ := current.Dims()
		_, cols := l.w.Dims()

		var z mat.Dense
		z.Mul(current, l.w)
		if l.b != nil {
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					z.Set(i, j, z.At(i, j)+l.b[j])
				}
			}
		}

		switch l.act {
		case actReLU:
			z.Apply(func(_, _ int, v float64) float64 {
				if v < 0 {
					return 0
				}
				return v
			}, &z)
		case actSoftmax:
			softmaxRows(&z)
		}

		if training && l.dropRate > 0 {
			keep := 1 - l.dropRate
			mask := make([]float64, rows*cols)
			for i := range mask {
				if n.rng.Float64() < keep {
					mask[i] = 1 / keep
				}
			}
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					z.Set(i, j, z.At(i, j)*mask[i*cols+j])
				}
			}
			cache.masks[li] = mask
		}

		out := mat.DenseCopyOf(&z)
		cache.outputs[li] = out
		current = out
	}

	return cache
}

// softmaxRows applies a numerically stable softmax to each row.
func softmaxRows(z *mat.Dense) {
	rows, cols := z.Dims()
	for i := 0; i < rows; i++ {
		max := z.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := z.At(i, j); v > max {
				max = v
			}
		}
		var sum float64
		for j := 0; j < cols; j++ {
			e := math.Exp(z.At(i, j) - max)
			z.Set(i, j, e)
			sum += e
		}
		for j := 0; j < cols; j++ {
			z.Set(i, j, z.At(i, j)/sum)
		}
	}
}

// Predict returns class probabilities for a feature batch.
func (n *Network) Predict(features *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := toDense(features)
	if err != nil {
		return nil, err
	}
	cache := n.forward(x, false)
	return fromDense(cache.outputs[len(cache.outputs)-1]), nil
}

// Evaluate computes mean cross-entropy loss and the number of correct
// argmax predictions over a batch. No weights are updated.
func (n *Network) Evaluate(features, labelsOneHot *tensor.Tensor) (float64, int, error) {
	x, err := toDense(features)
	if err != nil {
		return 0, 0, err
	}
	y, err := toDense(labelsOneHot)
	if err != nil {
		return 0, 0, err
	}

	cache := n.forward(x, false)
	probs := cache.outputs[len(cache.outputs)-1]
	return crossEntropy(probs, y), countCorrect(probs, y), nil
}

const logEpsilon = 1e-7

// crossEntropy returns the batch-mean categorical cross-entropy.
func crossEntropy(probs, y *mat.Dense) float64 {
	rows, cols := probs.Dims()
	var total float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if t := y.At(i, j); t > 0 {
				total -= t * math.Log(probs.At(i, j)+logEpsilon)
			}
		}
	}
	return total / float64(rows)
}

func countCorrect(probs, y *mat.Dense) int {
	rows, cols := probs.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		pred, target := 0, 0
		for j := 1; j < cols; j++ {
			if probs.At(i, j) > probs.At(i, pred) {
				pred = j
			}
			if y.At(i, j) > y.At(i, target) {
				target = j
			}
		}
		if pred == target {
			correct++
		}
	}
	return correct
}

func toDense(t *tensor.Tensor) (*mat.Dense, error) {
	if t.Rank() != 2 {
		return nil, &tensor.ShapeError{
			Op:    "net.toDense",
			Shape: t.Shape,
			Msg:   fmt.Sprintf("expected rank 2, got rank %d", t.Rank()),
		}
	}
	data := make([]float64, len(t.Data))
	for i, v := range t.Data {
		data[i] = float64(v)
	}
	return mat.NewDense(t.Shape[0], t.Shape[1], data), nil
}

func fromDense(m *mat.Dense) *tensor.Tensor {
	rows, cols := m.Dims()
	data := make([]float32, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = float32(m.At(i, j))
		}
	}
	return &tensor.Tensor{Shape: []int{rows, cols}, Data: data}
}
