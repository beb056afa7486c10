package net

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gofit/checkpoints"
)

// State is an opaque snapshot of the network's learned weights, used
// for best-weights retention and restore.
type State struct {
	weights []*mat.Dense
	biases  [][]float64
}

// Snapshot returns a deep copy of the current weights. Momentum
// buffers are not captured; a restored network resumes with fresh
// velocity.
func (n *Network) Snapshot() any {
	s := &State{
		weights: make([]*mat.Dense, len(n.layers)),
		biases:  make([][]float64, len(n.layers)),
	}
	for i, l := range n.layers {
		s.weights[i] = mat.DenseCopyOf(l.w)
		if l.b != nil {
			b := make([]float64, len(l.b))
			copy(b, l.b)
			s.biases[i] = b
		}
	}
	return s
}

// Restore overwrites the network weights with a snapshot previously
// produced by Snapshot on a network of identical topology.
func (n *Network) Restore(snapshot any) error {
	s, ok := snapshot.(*State)
	if !ok {
		return fmt.Errorf("net: snapshot is %T, expected *net.State", snapshot)
	}
	if len(s.weights) != len(n.layers) {
		return fmt.Errorf("net: snapshot has %d layers, network has %d", len(s.weights), len(n.layers))
	}

	for i, l := range n.layers {
		wr, wc := l.w.Dims()
		sr, sc := s.weights[i].Dims()
		if wr != sr || wc != sc {
			return fmt.Errorf("net: snapshot weight %d is %dx%d, network expects %dx%d", i, sr, sc, wr, wc)
		}
		l.w.Copy(s.weights[i])
		if l.b != nil {
			if len(s.biases[i]) != len(l.b) {
				return fmt.Errorf("net: snapshot bias %d has length %d, network expects %d", i, len(s.biases[i]), len(l.b))
			}
			copy(l.b, s.biases[i])
		}
	}
	return nil
}

// ExportWeights extracts the learned weights in checkpoint form.
func (n *Network) ExportWeights() []checkpoints.WeightTensor {
	var out []checkpoints.WeightTensor
	for _, l := range n.layers {
		rows, cols := l.w.Dims()
		wData := make([]float32, rows*cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				wData[i*cols+j] = float32(l.w.At(i, j))
			}
		}
		out = append(out, checkpoints.WeightTensor{
			Name:  fmt.Sprintf("%s.weight", l.name),
			Shape: []int{rows, cols},
			Data:  wData,
			Layer: l.name,
			Type:  "weight",
		})

		if l.b != nil {
			bData := make([]float32, len(l.b))
			for j, v := range l.b {
				bData[j] = float32(v)
			}
			out = append(out, checkpoints.WeightTensor{
				Name:  fmt.Sprintf("%s.bias", l.name),
				Shape: []int{len(l.b)},
				Data:  bData,
				Layer: l.name,
				Type:  "bias",
			})
		}
	}
	return out
}

// ImportWeights loads checkpoint weights back into the network. The
// weights must be in the order produced by ExportWeights.
func (n *Network) ImportWeights(weights []checkpoints.WeightTensor) error {
	idx := 0
	next := func() (*checkpoints.WeightTensor, error) {
		if idx >= len(weights) {
			return nil, fmt.Errorf("net: checkpoint has %d weight tensors, more expected", len(weights))
		}
		w := &weights[idx]
		idx++
		return w, nil
	}

	for _, l := range n.layers {
		wt, err := next()
		if err != nil {
			return err
		}
		rows, cols := l.w.Dims()
		if len(wt.Shape) != 2 || wt.Shape[0] != rows || wt.Shape[1] != cols {
			return fmt.Errorf("net: weight %s has shape %v, layer %s expects [%d %d]",
				wt.Name, wt.Shape, l.name, rows, cols)
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				l.w.Set(i, j, float64(wt.Data[i*cols+j]))
			}
		}

		if l.b != nil {
			bt, err := next()
			if err != nil {
				return err
			}
			if len(bt.Shape) != 1 || bt.Shape[0] != len(l.b) {
				return fmt.Errorf("net: bias %s has shape %v, layer %s expects [%d]",
					bt.Name, bt.Shape, l.name, len(l.b))
			}
			for j := range l.b {
				l.b[j] = float64(bt.Data[j])
			}
		}
	}

	if idx != len(weights) {
		return fmt.Errorf("net: checkpoint has %d extra weight tensors", len(weights)-idx)
	}
	return nil
}
