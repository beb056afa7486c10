// Package checkpoints serializes trained model state: the compiled
// model specification, learned weights, and training progress, in a
// versioned JSON format.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"gofit/layers"
)

// Checkpoint represents a complete model state including weights and
// training metadata.
type Checkpoint struct {
	ModelSpec *layers.ModelSpec `json:"model_spec"`
	Weights   []WeightTensor    `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata Metadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight" or "bias"
}

// TrainingState captures the training progress at save time.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	LearningRate float64 `json:"learning_rate"`
	BestLoss     float64 `json:"best_loss"`
	BestAccuracy float64 `json:"best_accuracy"`
	FinalState   string  `json:"final_state"`
}

// Metadata contains checkpoint provenance.
type Metadata struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Save writes the checkpoint to path as indented JSON. Missing
// metadata fields are filled in.
func Save(checkpoint *Checkpoint, path string) error {
	if checkpoint.ModelSpec == nil || !checkpoint.ModelSpec.Compiled {
		return fmt.Errorf("checkpoints: model spec must be compiled")
	}

	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "gofit"
		checkpoint.Metadata.Version = "1.0.0"
	}
	if checkpoint.Metadata.ID == "" {
		checkpoint.Metadata.ID = uuid.NewString()
	}
	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now().UTC()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoints: failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("checkpoints: failed to encode checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint previously written by Save.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoints: failed to open file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("checkpoints: failed to decode checkpoint: %w", err)
	}
	if checkpoint.ModelSpec == nil {
		return nil, fmt.Errorf("checkpoints: file has no model spec")
	}
	return &checkpoint, nil
}
