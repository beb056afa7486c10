package training

import (
	"fmt"

	"gofit/tensor"
)

// ConfusionMatrix accumulates per-class prediction counts for the
// evaluation collaborator. Rows are true classes, columns predicted.
type ConfusionMatrix struct {
	NumClasses int
	Matrix     [][]int
	total      int
	correct    int
}

// NewConfusionMatrix creates an empty matrix for numClasses classes.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	m := make([][]int, numClasses)
	for i := range m {
		m[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{NumClasses: numClasses, Matrix: m}
}

// Update accumulates argmax predictions against one-hot targets.
func (cm *ConfusionMatrix) Update(probs, labelsOneHot *tensor.Tensor) error {
	if probs.Rank() != 2 || labelsOneHot.Rank() != 2 {
		return fmt.Errorf("training: confusion matrix requires 2D probabilities and labels")
	}
	if probs.Rows() != labelsOneHot.Rows() {
		return fmt.Errorf("training: row count mismatch: %d probabilities, %d labels",
			probs.Rows(), labelsOneHot.Rows())
	}
	if probs.RowSize() != cm.NumClasses || labelsOneHot.RowSize() != cm.NumClasses {
		return fmt.Errorf("training: expected width %d, got probabilities %d and labels %d",
			cm.NumClasses, probs.RowSize(), labelsOneHot.RowSize())
	}

	for i := 0; i < probs.Rows(); i++ {
		pred := argmax(probs.Row(i))
		truth := argmax(labelsOneHot.Row(i))
		cm.Matrix[truth][pred]++
		cm.total++
		if pred == truth {
			cm.correct++
		}
	}
	return nil
}

// Accuracy returns the fraction of correct predictions.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.total == 0 {
		return 0
	}
	return float64(cm.correct) / float64(cm.total)
}

// MacroPrecision averages per-class precision over classes that were
// predicted at least once.
func (cm *ConfusionMatrix) MacroPrecision() float64 {
	var sum float64
	classes := 0
	for c := 0; c < cm.NumClasses; c++ {
		predicted := 0
		for r := 0; r < cm.NumClasses; r++ {
			predicted += cm.Matrix[r][c]
		}
		if predicted == 0 {
			continue
		}
		sum += float64(cm.Matrix[c][c]) / float64(predicted)
		classes++
	}
	if classes == 0 {
		return 0
	}
	return sum / float64(classes)
}

// MacroRecall averages per-class recall over classes present in the
// targets.
func (cm *ConfusionMatrix) MacroRecall() float64 {
	var sum float64
	classes := 0
	for r := 0; r < cm.NumClasses; r++ {
		actual := 0
		for c := 0; c < cm.NumClasses; c++ {
			actual += cm.Matrix[r][c]
		}
		if actual == 0 {
			continue
		}
		sum += float64(cm.Matrix[r][r]) / float64(actual)
		classes++
	}
	if classes == 0 {
		return 0
	}
	return sum / float64(classes)
}

// MacroF1 is the harmonic mean of macro precision and macro recall.
func (cm *ConfusionMatrix) MacroF1() float64 {
	p := cm.MacroPrecision()
	r := cm.MacroRecall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy computes argmax accuracy of probabilities against one-hot
// labels in a single pass.
func Accuracy(probs, labelsOneHot *tensor.Tensor) (float64, error) {
	cm := NewConfusionMatrix(probs.RowSize())
	if err := cm.Update(probs, labelsOneHot); err != nil {
		return 0, err
	}
	return cm.Accuracy(), nil
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
