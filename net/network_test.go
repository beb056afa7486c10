package net

import (
	"math"
	"path/filepath"
	"testing"

	"gofit/checkpoints"
	"gofit/layers"
	"gofit/tensor"
)

func compileModel(t *testing.T, build func(*layers.ModelBuilder) *layers.ModelBuilder) *layers.ModelSpec {
	t.Helper()
	spec, err := build(layers.NewModelBuilder([]int{4, 3})).Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}
	return spec
}

func classifierSpec(t *testing.T) *layers.ModelSpec {
	return compileModel(t, func(b *layers.ModelBuilder) *layers.ModelBuilder {
		return b.
			AddDense(8, true, "fc1").
			AddReLU("relu1").
			AddDense(2, true, "fc2").
			AddSoftmax("softmax")
	})
}

// xorBatch is a tiny linearly inseparable problem used to check that
// training actually reduces loss.
func xorBatch() (*tensor.Tensor, *tensor.Tensor) {
	features := &tensor.Tensor{
		Shape: []int{4, 3},
		Data: []float32{
			0, 0, 1,
			0, 1, 1,
			1, 0, 1,
			1, 1, 1,
		},
	}
	labels := &tensor.Tensor{
		Shape: []int{4, 2},
		Data: []float32{
			1, 0,
			0, 1,
			0, 1,
			1, 0,
		},
	}
	return features, labels
}

func TestFromSpecValidation(t *testing.T) {
	spec := classifierSpec(t)

	tests := []struct {
		name    string
		spec    *layers.ModelSpec
		cfg     Config
		wantErr bool
	}{
		{"valid", spec, Config{Seed: 1, Momentum: 0.9}, false},
		{"nil spec", nil, Config{}, true},
		{"momentum too high", spec, Config{Momentum: 1.0}, true},
		{"negative momentum", spec, Config{Momentum: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSpec(tt.spec, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromSpec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromSpecRejectsUncompiledSpec(t *testing.T) {
	spec := &layers.ModelSpec{}
	if _, err := FromSpec(spec, Config{}); err == nil {
		t.Error("expected error for uncompiled spec")
	}
}

func TestFromSpecRejectsLeadingActivation(t *testing.T) {
	spec := compileModel(t, func(b *layers.ModelBuilder) *layers.ModelBuilder {
		return b.
			AddReLU("relu").
			AddDense(2, true, "fc").
			AddSoftmax("softmax")
	})
	if _, err := FromSpec(spec, Config{}); err == nil {
		t.Error("expected error for activation without preceding dense layer")
	}
}

func TestPredictShapeAndSoftmaxRows(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 42, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, _ := xorBatch()
	probs, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if probs.Shape[0] != 4 || probs.Shape[1] != 2 {
		t.Fatalf("expected output shape [4 2], got %v", probs.Shape)
	}

	for i := 0; i < 4; i++ {
		var sum float32
		for _, v := range probs.Row(i) {
			if v < 0 || v > 1 {
				t.Errorf("row %d: probability %v out of [0, 1]", i, v)
			}
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Errorf("row %d: probabilities sum to %v, want 1", i, sum)
		}
	}
}

func TestPredictRejectsWrongRank(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 1})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	bad := &tensor.Tensor{Shape: []int{2, 2, 3}, Data: make([]float32, 12)}
	if _, err := n.Predict(bad); err == nil {
		t.Error("expected shape error for rank-3 input")
	}
}

func TestStepReducesLoss(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 7, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, labels := xorBatch()
	initial, _, err := n.Evaluate(features, labels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	for i := 0; i < 200; i++ {
		if _, _, err := n.Step(features, labels, 0.5); err != nil {
			t.Fatalf("Step failed at iteration %d: %v", i, err)
		}
	}

	final, correct, err := n.Evaluate(features, labels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if final >= initial {
		t.Errorf("loss did not decrease: initial %v, final %v", initial, final)
	}
	if correct != 4 {
		t.Errorf("expected 4/4 correct after training, got %d", correct)
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	run := func() float64 {
		n, err := FromSpec(classifierSpec(t), Config{Seed: 99, Momentum: 0.9})
		if err != nil {
			t.Fatalf("FromSpec failed: %v", err)
		}
		features, labels := xorBatch()
		for i := 0; i < 50; i++ {
			if _, _, err := n.Step(features, labels, 0.1); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
		}
		loss, _, err := n.Evaluate(features, labels)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		return loss
	}

	if a, b := run(), run(); a != b {
		t.Errorf("same seed produced different losses: %v vs %v", a, b)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 3, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, labels := xorBatch()
	before, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	snap := n.Snapshot()

	for i := 0; i < 20; i++ {
		if _, _, err := n.Step(features, labels, 0.5); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	after, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if tensor.Equal(before, after) {
		t.Fatal("training did not change predictions; test is vacuous")
	}

	if err := n.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	restored, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !tensor.Equal(before, restored) {
		t.Error("restored network does not reproduce pre-training predictions")
	}
}

func TestRestoreRejectsForeignSnapshot(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 3})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	if err := n.Restore("not a snapshot"); err == nil {
		t.Error("expected error for wrong snapshot type")
	}

	otherSpec := compileModel(t, func(b *layers.ModelBuilder) *layers.ModelBuilder {
		return b.
			AddDense(5, true, "fc").
			AddSoftmax("softmax")
	})
	other, err := FromSpec(otherSpec, Config{Seed: 3})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}
	if err := n.Restore(other.Snapshot()); err == nil {
		t.Error("expected error for snapshot from different topology")
	}
}

func TestExportImportWeightsRoundTrip(t *testing.T) {
	cfg := Config{Seed: 11, Momentum: 0.9}
	trained, err := FromSpec(classifierSpec(t), cfg)
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, labels := xorBatch()
	for i := 0; i < 30; i++ {
		if _, _, err := trained.Step(features, labels, 0.2); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	want, err := trained.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	weights := trained.ExportWeights()
	// fc1 and fc2 each export a weight and a bias tensor.
	if len(weights) != 4 {
		t.Fatalf("expected 4 weight tensors, got %d", len(weights))
	}

	fresh, err := FromSpec(classifierSpec(t), Config{Seed: 5151, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}
	if err := fresh.ImportWeights(weights); err != nil {
		t.Fatalf("ImportWeights failed: %v", err)
	}

	got, err := fresh.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !tensor.Equal(want, got) {
		t.Error("imported network does not reproduce source predictions")
	}
}

func TestImportWeightsRejectsMismatch(t *testing.T) {
	n, err := FromSpec(classifierSpec(t), Config{Seed: 1})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	weights := n.ExportWeights()

	if err := n.ImportWeights(weights[:1]); err == nil {
		t.Error("expected error for truncated weight list")
	}

	tooMany := append(n.ExportWeights(), weights[0])
	if err := n.ImportWeights(tooMany); err == nil {
		t.Error("expected error for extra weight tensors")
	}

	bad := n.ExportWeights()
	bad[0].Shape = []int{1, 1}
	bad[0].Data = []float32{0}
	if err := n.ImportWeights(bad); err == nil {
		t.Error("expected error for shape mismatch")
	}
}

func TestCheckpointReloadRebuildsNetwork(t *testing.T) {
	trained, err := FromSpec(classifierSpec(t), Config{Seed: 13, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, labels := xorBatch()
	for i := 0; i < 30; i++ {
		if _, _, err := trained.Step(features, labels, 0.2); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	want, err := trained.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	checkpoint := &checkpoints.Checkpoint{
		ModelSpec: trained.Spec(),
		Weights:   trained.ExportWeights(),
	}
	if err := checkpoints.Save(checkpoint, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := checkpoints.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// The decoded spec carries float64 parameter values; building a
	// network from it must work the same as from the in-memory spec.
	reborn, err := FromSpec(loaded.ModelSpec, Config{Seed: 1, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec on reloaded spec failed: %v", err)
	}
	if err := reborn.ImportWeights(loaded.Weights); err != nil {
		t.Fatalf("ImportWeights failed: %v", err)
	}

	got, err := reborn.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !tensor.Equal(want, got) {
		t.Error("reloaded network does not reproduce checkpointed predictions")
	}
}

func TestDropoutOnlyActiveDuringTraining(t *testing.T) {
	spec := compileModel(t, func(b *layers.ModelBuilder) *layers.ModelBuilder {
		return b.
			AddDense(16, true, "fc1").
			AddReLU("relu1").
			AddDropout(0.5, "drop1").
			AddDense(2, true, "fc2").
			AddSoftmax("softmax")
	})
	n, err := FromSpec(spec, Config{Seed: 21, Momentum: 0.9})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	features, _ := xorBatch()
	a, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	b, err := n.Predict(features)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !tensor.Equal(a, b) {
		t.Error("inference is not deterministic; dropout leaked into Predict")
	}
}
