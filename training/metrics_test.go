package training

import (
	"math"
	"testing"

	"gofit/tensor"
)

func probsTensor(t *testing.T, rows, cols int, data []float32) *tensor.Tensor {
	t.Helper()
	ts, err := tensor.New([]int{rows, cols}, data)
	if err != nil {
		t.Fatalf("failed to build tensor: %v", err)
	}
	return ts
}

func TestConfusionMatrixUpdate(t *testing.T) {
	cm := NewConfusionMatrix(3)

	// Predictions: 0, 1, 2, 1. Targets: 0, 1, 2, 2.
	probs := probsTensor(t, 4, 3, []float32{
		0.8, 0.1, 0.1,
		0.2, 0.7, 0.1,
		0.1, 0.2, 0.7,
		0.1, 0.6, 0.3,
	})
	labels := probsTensor(t, 4, 3, []float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 1,
	})

	if err := cm.Update(probs, labels); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if cm.Matrix[0][0] != 1 || cm.Matrix[1][1] != 1 || cm.Matrix[2][2] != 1 {
		t.Errorf("diagonal counts wrong: %v", cm.Matrix)
	}
	if cm.Matrix[2][1] != 1 {
		t.Errorf("expected one class-2 sample predicted as class 1, matrix: %v", cm.Matrix)
	}
	if got := cm.Accuracy(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("expected accuracy 0.75, got %v", got)
	}
}

func TestConfusionMatrixMacroMetrics(t *testing.T) {
	cm := NewConfusionMatrix(2)

	// Class 0: 2 correct of 3. Class 1: 1 correct of 1.
	probs := probsTensor(t, 4, 2, []float32{
		0.9, 0.1,
		0.9, 0.1,
		0.2, 0.8,
		0.3, 0.7,
	})
	labels := probsTensor(t, 4, 2, []float32{
		1, 0,
		1, 0,
		1, 0,
		0, 1,
	})
	if err := cm.Update(probs, labels); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Precision: class 0 = 2/2, class 1 = 1/2, macro = 0.75.
	if got := cm.MacroPrecision(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("expected macro precision 0.75, got %v", got)
	}
	// Recall: class 0 = 2/3, class 1 = 1/1, macro = 5/6.
	if got := cm.MacroRecall(); math.Abs(got-5.0/6.0) > 1e-12 {
		t.Errorf("expected macro recall %v, got %v", 5.0/6.0, got)
	}

	p, r := 0.75, 5.0/6.0
	if got := cm.MacroF1(); math.Abs(got-2*p*r/(p+r)) > 1e-12 {
		t.Errorf("expected macro F1 %v, got %v", 2*p*r/(p+r), got)
	}
}

func TestConfusionMatrixSkipsAbsentClasses(t *testing.T) {
	cm := NewConfusionMatrix(3)

	// Class 2 never appears in targets or predictions.
	probs := probsTensor(t, 2, 3, []float32{
		0.9, 0.05, 0.05,
		0.1, 0.85, 0.05,
	})
	labels := probsTensor(t, 2, 3, []float32{
		1, 0, 0,
		0, 1, 0,
	})
	if err := cm.Update(probs, labels); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := cm.MacroPrecision(); got != 1.0 {
		t.Errorf("expected macro precision 1.0 over present classes, got %v", got)
	}
	if got := cm.MacroRecall(); got != 1.0 {
		t.Errorf("expected macro recall 1.0 over present classes, got %v", got)
	}
}

func TestConfusionMatrixRejectsMismatch(t *testing.T) {
	cm := NewConfusionMatrix(3)

	good := probsTensor(t, 2, 3, make([]float32, 6))
	narrow := probsTensor(t, 2, 2, make([]float32, 4))
	short := probsTensor(t, 1, 3, make([]float32, 3))

	if err := cm.Update(narrow, good); err == nil {
		t.Error("expected error for width mismatch")
	}
	if err := cm.Update(good, short); err == nil {
		t.Error("expected error for row count mismatch")
	}
}

func TestEmptyConfusionMatrix(t *testing.T) {
	cm := NewConfusionMatrix(4)
	if cm.Accuracy() != 0 || cm.MacroPrecision() != 0 || cm.MacroRecall() != 0 || cm.MacroF1() != 0 {
		t.Error("empty matrix must report zero for all metrics")
	}
}

func TestAccuracyHelper(t *testing.T) {
	probs := probsTensor(t, 2, 2, []float32{
		0.6, 0.4,
		0.3, 0.7,
	})
	labels := probsTensor(t, 2, 2, []float32{
		1, 0,
		1, 0,
	})

	got, err := Accuracy(probs, labels)
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	if got != 0.5 {
		t.Errorf("expected accuracy 0.5, got %v", got)
	}
}
