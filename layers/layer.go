// Package layers declares feed-forward network topology as pure
// configuration. A ModelBuilder accumulates layer specifications in
// order and Compile validates them into an immutable ModelSpec; no
// numeric computation happens here.
package layers

import (
	"fmt"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Dense LayerType = iota
	ReLU
	Softmax
	Dropout
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case ReLU:
		return "ReLU"
	case Softmax:
		return "Softmax"
	case Dropout:
		return "Dropout"
	default:
		return "Unknown"
	}
}

// TopologyError reports inconsistent layer wiring, detected at compile
// time before any training begins.
type TopologyError struct {
	Layer string
	Msg   string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("layers: %s: %s", e.Layer, e.Msg)
}

// LayerSpec defines layer configuration for the training core.
// This is pure configuration - no execution logic.
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`

	// Shape information (computed during model compilation)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during model compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
}

// ModelSpec defines a complete feed-forward model as validated layer
// configuration. It is immutable once produced by Compile.
type ModelSpec struct {
	Layers []LayerSpec `json:"layers"`

	TotalParameters int64   `json:"total_parameters"`
	ParameterShapes [][]int `json:"parameter_shapes"`
	InputShape      []int   `json:"input_shape"`
	OutputShape     []int   `json:"output_shape"`
	Compiled        bool    `json:"compiled"`
}

// IntParam reads an integer parameter by key. JSON decoding of a saved
// ModelSpec turns numbers into float64, so both representations are
// accepted.
func (ls *LayerSpec) IntParam(key string) (int, bool) {
	switch v := ls.Parameters[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ModelBuilder helps construct feed-forward classifier models.
// It is append-only: layers accumulate in order until Compile.
type ModelBuilder struct {
	layers     []LayerSpec
	inputShape []int
}

// NewModelBuilder creates a builder for models consuming inputs of the
// given shape [batch, features].
func NewModelBuilder(inputShape []int) *ModelBuilder {
	return &ModelBuilder{
		layers:     make([]LayerSpec, 0),
		inputShape: inputShape,
	}
}

// AddLayer appends a pre-built layer specification.
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	return mb
}

// AddDense appends a dense layer. The input width is inferred from the
// preceding layer during compilation.
func (mb *ModelBuilder) AddDense(outputSize int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dense,
		Name: name,
		Parameters: map[string]interface{}{
			"output_size": outputSize,
			"use_bias":    useBias,
		},
	})
}

// AddDenseWithInput appends a dense layer with an explicit input width.
// Compile fails with a TopologyError if the declared width does not
// match the width emitted by the preceding layer.
func (mb *ModelBuilder) AddDenseWithInput(inputSize, outputSize int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dense,
		Name: name,
		Parameters: map[string]interface{}{
			"input_size":  inputSize,
			"output_size": outputSize,
			"use_bias":    useBias,
		},
	})
}

// AddReLU appends a ReLU activation.
func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type:       ReLU,
		Name:       name,
		Parameters: map[string]interface{}{},
	})
}

// AddSoftmax appends a Softmax activation over the class dimension.
func (mb *ModelBuilder) AddSoftmax(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type:       Softmax,
		Name:       name,
		Parameters: map[string]interface{}{},
	})
}

// AddDropout appends a dropout layer.
// rate: drop probability in [0, 1). Width passes through unchanged.
func (mb *ModelBuilder) AddDropout(rate float64, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Dropout,
		Name: name,
		Parameters: map[string]interface{}{
			"rate": rate,
		},
	})
}

// Compile validates the accumulated layers and computes shapes and
// parameter counts, returning an immutable model specification.
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("layers: cannot compile empty model")
	}
	if len(mb.inputShape) != 2 {
		return nil, &TopologyError{
			Layer: "input",
			Msg:   fmt.Sprintf("input shape must be [batch, features], got %v", mb.inputShape),
		}
	}

	model := &ModelSpec{
		Layers:     make([]LayerSpec, len(mb.layers)),
		InputShape: copyInts(mb.inputShape),
	}
	copy(model.Layers, mb.layers)
	// The compiled spec must not alias builder-owned parameter maps.
	for i := range model.Layers {
		model.Layers[i].Parameters = copyParams(model.Layers[i].Parameters)
	}

	currentShape := model.InputShape
	var allParamShapes [][]int
	totalParams := int64(0)

	for i := range model.Layers {
		layer := &model.Layers[i]
		layer.InputShape = copyInts(currentShape)

		outputShape, paramShapes, paramCount, err := computeLayerInfo(layer, currentShape)
		if err != nil {
			return nil, err
		}

		layer.OutputShape = outputShape
		layer.ParameterShapes = paramShapes
		layer.ParameterCount = paramCount

		allParamShapes = append(allParamShapes, paramShapes...)
		totalParams += paramCount
		currentShape = outputShape
	}

	model.OutputShape = currentShape
	model.ParameterShapes = allParamShapes
	model.TotalParameters = totalParams
	model.Compiled = true

	return model, nil
}

// computeLayerInfo computes output shape and parameter information for a layer
func computeLayerInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	switch layer.Type {
	case Dense:
		return computeDenseInfo(layer, inputShape)
	case Dropout:
		rate, ok := layer.Parameters["rate"].(float64)
		if !ok || rate < 0 || rate >= 1 {
			return nil, nil, 0, &TopologyError{
				Layer: layer.Name,
				Msg:   fmt.Sprintf("dropout rate must be in [0, 1), got %v", layer.Parameters["rate"]),
			}
		}
		return copyInts(inputShape), nil, 0, nil
	case ReLU, Softmax:
		// Activations pass width through unchanged.
		return copyInts(inputShape), nil, 0, nil
	default:
		return nil, nil, 0, &TopologyError{
			Layer: layer.Name,
			Msg:   fmt.Sprintf("unsupported layer type: %s", layer.Type),
		}
	}
}

// computeDenseInfo computes dense layer information
func computeDenseInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	outputSize, ok := layer.IntParam("output_size")
	if !ok || outputSize <= 0 {
		return nil, nil, 0, &TopologyError{
			Layer: layer.Name,
			Msg:   "missing or invalid output_size parameter",
		}
	}

	inferredInput := inputShape[1]
	if declared, exists := layer.IntParam("input_size"); exists {
		if declared != inferredInput {
			return nil, nil, 0, &TopologyError{
				Layer: layer.Name,
				Msg: fmt.Sprintf("declared input width %d does not match emitted width %d of preceding layer",
					declared, inferredInput),
			}
		}
	}
	layer.Parameters["input_size"] = inferredInput

	useBias := true
	if bias, exists := layer.Parameters["use_bias"].(bool); exists {
		useBias = bias
	}

	outputShape := []int{inputShape[0], outputSize}

	var paramShapes [][]int
	paramCount := int64(0)

	paramShapes = append(paramShapes, []int{inferredInput, outputSize})
	paramCount += int64(inferredInput * outputSize)

	if useBias {
		paramShapes = append(paramShapes, []int{outputSize})
		paramCount += int64(outputSize)
	}

	return outputShape, paramShapes, paramCount, nil
}

// ValidateClassifier checks that the compiled model is usable with
// categorical cross-entropy over numClasses classes: the final layer
// must be a Softmax and the output width must equal numClasses.
func (ms *ModelSpec) ValidateClassifier(numClasses int) error {
	if !ms.Compiled {
		return fmt.Errorf("layers: model is not compiled")
	}

	last := ms.Layers[len(ms.Layers)-1]
	if last.Type != Softmax {
		return &TopologyError{
			Layer: last.Name,
			Msg:   fmt.Sprintf("final layer must be Softmax for cross-entropy, got %s", last.Type),
		}
	}
	if ms.OutputShape[1] != numClasses {
		return &TopologyError{
			Layer: last.Name,
			Msg: fmt.Sprintf("output width %d does not match %d classes",
				ms.OutputShape[1], numClasses),
		}
	}
	return nil
}

// Summary returns a human-readable model summary
func (ms *ModelSpec) Summary() string {
	if !ms.Compiled {
		return "Model not compiled"
	}

	summary := "Model Summary:\n"
	summary += fmt.Sprintf("Input Shape: %v\n", ms.InputShape)
	summary += fmt.Sprintf("Output Shape: %v\n", ms.OutputShape)
	summary += fmt.Sprintf("Total Parameters: %d\n", ms.TotalParameters)
	summary += fmt.Sprintf("Layers: %d\n\n", len(ms.Layers))

	for i, layer := range ms.Layers {
		summary += fmt.Sprintf("Layer %d: %s (%s)\n", i+1, layer.Name, layer.Type.String())
		summary += fmt.Sprintf("  Input:  %v\n", layer.InputShape)
		summary += fmt.Sprintf("  Output: %v\n", layer.OutputShape)
		summary += fmt.Sprintf("  Params: %d\n\n", layer.ParameterCount)
	}

	return summary
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func copyInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
