package training

import (
	"fmt"
)

// LossType selects the training loss.
type LossType int

const (
	CategoricalCrossEntropy LossType = iota
)

func (lt LossType) String() string {
	switch lt {
	case CategoricalCrossEntropy:
		return "CategoricalCrossEntropy"
	default:
		return "Unknown"
	}
}

// OptimizerType selects the external optimizer-step capability family.
type OptimizerType int

const (
	SGD OptimizerType = iota
)

func (ot OptimizerType) String() string {
	switch ot {
	case SGD:
		return "SGD"
	default:
		return "Unknown"
	}
}

// EarlyStoppingConfig controls the early-stopping observer.
type EarlyStoppingConfig struct {
	Enabled            bool    `json:"enabled"`
	Patience           int     `json:"patience"`
	MinDelta           float64 `json:"min_delta"`
	RestoreBestWeights bool    `json:"restore_best_weights"`
}

// PlateauConfig controls the learning-rate-reduction observer.
type PlateauConfig struct {
	Enabled  bool    `json:"enabled"`
	Patience int     `json:"patience"`
	Factor   float64 `json:"factor"`
	MinLR    float64 `json:"min_lr"`
	MinDelta float64 `json:"min_delta"`
}

// Config is an immutable configuration snapshot for one training run.
type Config struct {
	Loss      LossType      `json:"loss"`
	Optimizer OptimizerType `json:"optimizer"`

	LearningRate float64 `json:"learning_rate"`
	Momentum     float64 `json:"momentum"`
	BatchSize    int     `json:"batch_size"`
	MaxEpochs    int     `json:"max_epochs"`

	// ValidationSplit carves a validation set out of the training data
	// when no explicit validation set is supplied to Fit.
	ValidationSplit float64 `json:"validation_split"`

	// TargetLoss, when positive, terminates the run as Converged once
	// validation loss reaches it.
	TargetLoss float64 `json:"target_loss"`

	Seed int64 `json:"seed"`

	// NoReshuffle disables the per-epoch reshuffle of batch order.
	NoReshuffle bool `json:"no_reshuffle"`

	// PrintEvery prints a progress line every N epochs (0 = silent).
	PrintEvery int `json:"print_every"`

	EarlyStopping EarlyStoppingConfig `json:"early_stopping"`
	ReduceLR      PlateauConfig       `json:"reduce_lr_on_plateau"`
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("training: batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("training: max epochs must be positive, got %d", c.MaxEpochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("training: learning rate must be positive, got %g", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("training: momentum must be in [0, 1), got %g", c.Momentum)
	}
	if c.ValidationSplit != 0 && (c.ValidationSplit <= 0 || c.ValidationSplit >= 1) {
		return fmt.Errorf("training: validation split must be in (0, 1), got %g", c.ValidationSplit)
	}
	if c.EarlyStopping.Enabled {
		if c.EarlyStopping.Patience < 0 {
			return fmt.Errorf("training: early stopping patience must be non-negative, got %d", c.EarlyStopping.Patience)
		}
		if c.EarlyStopping.MinDelta < 0 {
			return fmt.Errorf("training: early stopping min delta must be non-negative, got %g", c.EarlyStopping.MinDelta)
		}
	}
	if c.ReduceLR.Enabled {
		if c.ReduceLR.Patience < 0 {
			return fmt.Errorf("training: plateau patience must be non-negative, got %d", c.ReduceLR.Patience)
		}
		if c.ReduceLR.Factor <= 0 || c.ReduceLR.Factor >= 1 {
			return fmt.Errorf("training: plateau factor must be in (0, 1), got %g", c.ReduceLR.Factor)
		}
		if c.ReduceLR.MinLR < 0 {
			return fmt.Errorf("training: plateau min LR must be non-negative, got %g", c.ReduceLR.MinLR)
		}
	}
	return nil
}

// DefaultConfig returns a configuration with conventional values for
// an MNIST-scale classifier.
func DefaultConfig() Config {
	return Config{
		Loss:            CategoricalCrossEntropy,
		Optimizer:       SGD,
		LearningRate:    0.1,
		Momentum:        0.9,
		BatchSize:       128,
		MaxEpochs:       50,
		ValidationSplit: 0.1,
		Seed:            1,
		EarlyStopping: EarlyStoppingConfig{
			Enabled:            true,
			Patience:           5,
			MinDelta:           1e-4,
			RestoreBestWeights: true,
		},
		ReduceLR: PlateauConfig{
			Enabled:  true,
			Patience: 2,
			Factor:   0.5,
			MinLR:    1e-5,
			MinDelta: 1e-4,
		},
	}
}
