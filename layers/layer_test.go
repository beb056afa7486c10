package layers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCompileComputesShapesAndParams(t *testing.T) {
	builder := NewModelBuilder([]int{32, 784})
	model, err := builder.
		AddDense(128, true, "fc1").
		AddReLU("relu1").
		AddDropout(0.2, "drop1").
		AddDense(10, true, "fc2").
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}

	if model.OutputShape[1] != 10 {
		t.Errorf("expected output width 10, got %d", model.OutputShape[1])
	}

	// fc1: 784*128 + 128, fc2: 128*10 + 10
	wantParams := int64(784*128 + 128 + 128*10 + 10)
	if model.TotalParameters != wantParams {
		t.Errorf("expected %d parameters, got %d", wantParams, model.TotalParameters)
	}

	// Dropout passes width through unchanged.
	drop := model.Layers[2]
	if drop.InputShape[1] != 128 || drop.OutputShape[1] != 128 {
		t.Errorf("dropout changed width: in %v out %v", drop.InputShape, drop.OutputShape)
	}
}

func TestCompileDetectsWidthMismatch(t *testing.T) {
	// A dense layer emitting width 512 followed by a layer declaring
	// input width 256 must fail before any training begins.
	builder := NewModelBuilder([]int{32, 784})
	_, err := builder.
		AddDense(512, true, "fc1").
		AddDenseWithInput(256, 10, true, "fc2").
		AddSoftmax("softmax").
		Compile()

	var topoErr *TopologyError
	if !errors.As(err, &topoErr) {
		t.Fatalf("expected TopologyError, got %v", err)
	}
	if topoErr.Layer != "fc2" {
		t.Errorf("expected error on layer fc2, got %q", topoErr.Layer)
	}
}

func TestCompileAcceptsJSONDecodedParameters(t *testing.T) {
	// Decoding a serialized spec turns numeric parameters into
	// float64; recompiling such layers must still work.
	raw := `{"type":0,"name":"fc","parameters":{"input_size":4,"output_size":2,"use_bias":true}}`
	var layer LayerSpec
	if err := json.Unmarshal([]byte(raw), &layer); err != nil {
		t.Fatalf("failed to decode layer: %v", err)
	}

	model, err := NewModelBuilder([]int{8, 4}).
		AddLayer(layer).
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}
	if model.TotalParameters != 4*2+2 {
		t.Errorf("expected 10 parameters, got %d", model.TotalParameters)
	}

	// A width mismatch in float64 form must still be a TopologyError,
	// not a missing-parameter failure.
	mismatch := layer
	mismatch.Parameters = map[string]interface{}{
		"input_size": float64(3), "output_size": float64(2), "use_bias": true,
	}
	_, err = NewModelBuilder([]int{8, 4}).
		AddLayer(mismatch).
		AddSoftmax("softmax").
		Compile()
	var topoErr *TopologyError
	if !errors.As(err, &topoErr) {
		t.Fatalf("expected TopologyError for width mismatch, got %v", err)
	}
	if !strings.Contains(topoErr.Msg, "3") {
		t.Errorf("error should name the declared width: %v", topoErr)
	}
}

func TestCompileCopiesParameterMaps(t *testing.T) {
	params := map[string]interface{}{"output_size": 2, "use_bias": true}
	model, err := NewModelBuilder([]int{1, 4}).
		AddLayer(LayerSpec{Type: Dense, Name: "fc", Parameters: params}).
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}

	// Mutating the caller's map must not reach the compiled spec.
	params["output_size"] = 99
	if got, _ := model.Layers[0].IntParam("output_size"); got != 2 {
		t.Errorf("compiled spec saw caller-side mutation: output_size %d", got)
	}

	// Nor should compilation write inferred values back to the caller.
	if _, ok := params["input_size"]; ok {
		t.Error("compile wrote input_size into the caller's parameter map")
	}
}

func TestCompileRejectsEmptyModel(t *testing.T) {
	if _, err := NewModelBuilder([]int{1, 4}).Compile(); err == nil {
		t.Fatal("expected error compiling empty model")
	}
}

func TestCompileRejectsBadDropoutRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.0, 1.5} {
		_, err := NewModelBuilder([]int{1, 4}).
			AddDense(4, true, "fc").
			AddDropout(rate, "drop").
			AddSoftmax("softmax").
			Compile()
		var topoErr *TopologyError
		if !errors.As(err, &topoErr) {
			t.Errorf("rate %g: expected TopologyError, got %v", rate, err)
		}
	}
}

func TestValidateClassifier(t *testing.T) {
	model, err := NewModelBuilder([]int{16, 20}).
		AddDense(10, true, "fc").
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}

	if err := model.ValidateClassifier(10); err != nil {
		t.Errorf("valid classifier rejected: %v", err)
	}

	var topoErr *TopologyError
	if err := model.ValidateClassifier(5); !errors.As(err, &topoErr) {
		t.Errorf("expected TopologyError for class count mismatch, got %v", err)
	}

	noSoftmax, err := NewModelBuilder([]int{16, 20}).
		AddDense(10, true, "fc").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}
	if err := noSoftmax.ValidateClassifier(10); !errors.As(err, &topoErr) {
		t.Errorf("expected TopologyError for missing softmax, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	model, err := NewModelBuilder([]int{8, 4}).
		AddDense(2, false, "fc").
		AddSoftmax("softmax").
		Compile()
	if err != nil {
		t.Fatalf("failed to compile model: %v", err)
	}

	summary := model.Summary()
	if !strings.Contains(summary, "fc") || !strings.Contains(summary, "Softmax") {
		t.Errorf("summary missing layer details:\n%s", summary)
	}
}
