package net

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gofit/tensor"
)

// Step performs one optimizer step on a batch: forward pass with
// dropout active, categorical cross-entropy, backpropagation, and an
// SGD-with-momentum weight update at the given effective learning rate.
// It returns the batch-mean loss and the number of correct predictions.
func (n *Network) Step(features, labelsOneHot *tensor.Tensor, learningRate float64) (float64, int, error) {
	if learningRate <= 0 {
		return 0, 0, fmt.Errorf("net: learning rate must be positive, got %g", learningRate)
	}
	x, err := toDense(features)
	if err != nil {
		return 0, 0, err
	}
	y, err := toDense(labelsOneHot)
	if err != nil {
		return 0, 0, err
	}
	batch, _ := x.Dims()
	yRows, _ := y.Dims()
	if yRows != batch {
		return 0, 0, &tensor.ShapeError{
			Op:    "net.Step",
			Shape: labelsOneHot.Shape,
			Msg:   fmt.Sprintf("labels have %d rows, features have %d", yRows, batch),
		}
	}

	cache := n.forward(x, true)
	probs := cache.outputs[len(cache.outputs)-1]
	loss := crossEntropy(probs, y)
	correct := countCorrect(probs, y)

	// Softmax + cross-entropy gradient w.r.t. the final pre-activation.
	delta := &mat.Dense{}
	delta.Sub(probs, y)
	delta.Scale(1/float64(batch), delta)

	for li := len(n.layers) - 1; li >= 0; li-- {
		l := n.layers[li]

		prev := cache.input
		if li > 0 {
			prev = cache.outputs[li-1]
		}

		var gradW mat.Dense
		gradW.Mul(prev.T(), delta)

		var gradB []float64
		if l.b != nil {
			rows, cols := delta.Dims()
			gradB = make([]float64, cols)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					gradB[j] += delta.At(i, j)
				}
			}
		}

		// Propagate through this layer's weights before mutating them.
		if li > 0 {
			next := &mat.Dense{}
			next.Mul(delta, l.w.T())

			prevLayer := n.layers[li-1]
			prevOut := cache.outputs[li-1]
			rows, cols := next.Dims()
			mask := cache.masks[li-1]
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					v := next.At(i, j)
					if mask != nil {
						v *= mask[i*cols+j]
					}
					if prevLayer.act == actReLU && prevOut.At(i, j) <= 0 {
						v = 0
					}
					next.Set(i, j, v)
				}
			}
			delta = next
		}

		n.applyUpdate(l, &gradW, gradB, learningRate)
	}

	return loss, correct, nil
}

// applyUpdate performs v = momentum*v - lr*grad; param += v.
func (n *Network) applyUpdate(l *denseLayer, gradW *mat.Dense, gradB []float64, lr float64) {
	var scaled mat.Dense
	scaled.Scale(lr, gradW)
	l.vw.Scale(n.momentum, l.vw)
	l.vw.Sub(l.vw, &scaled)
	l.w.Add(l.w, l.vw)

	if l.b != nil {
		for j := range l.b {
			l.vb[j] = n.momentum*l.vb[j] - lr*gradB[j]
			l.b[j] += l.vb[j]
		}
	}
}
