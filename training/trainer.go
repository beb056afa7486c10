// Package training drives gradient-based optimization of a compiled
// model over a prepared dataset: sequential epoch and batch iteration
// against an external optimizer-step capability, a per-epoch history,
// and two callback observers that stop the run early or lower the
// learning rate on plateau.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"gofit/dataset"
	"gofit/layers"
	"gofit/tensor"
)

// Stepper is the external optimizer-step capability. Step mutates the
// model state it wraps; only one training run may drive a stepper at a
// time. Snapshot and Restore give the run best-weights retention
// without the core knowing the state's representation.
type Stepper interface {
	// Step runs one optimizer step on a batch at the given effective
	// learning rate, returning the batch-mean loss and the number of
	// correct predictions.
	Step(features, labels *tensor.Tensor, learningRate float64) (loss float64, correct int, err error)

	// Evaluate computes loss and correct predictions without updating
	// any weights.
	Evaluate(features, labels *tensor.Tensor) (loss float64, correct int, err error)

	// Snapshot returns an opaque deep copy of the model state.
	Snapshot() any

	// Restore overwrites the model state with an earlier snapshot.
	Restore(snapshot any) error
}

// RunState is the trainer's state machine position.
type RunState int

const (
	Idle RunState = iota
	Running
	Stopped          // early stopping fired
	MaxEpochsReached // epoch budget exhausted without stopping
	Converged        // validation loss reached the configured floor
	Cancelled        // external cancellation between batches or epochs
	Failed           // divergence or a step error aborted the run
)

func (rs RunState) String() string {
	switch rs {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case MaxEpochsReached:
		return "MaxEpochsReached"
	case Converged:
		return "Converged"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DivergenceError reports a non-finite loss persisting across two
// consecutive epochs. It signals a structurally bad configuration
// (for example a learning rate that is too large) and is never
// retried; the caller is expected to adjust the configuration and
// start a fresh run.
type DivergenceError struct {
	Epoch int
	Loss  float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("training: non-finite loss %g for two consecutive epochs at epoch %d", e.Loss, e.Epoch)
}

// Trainer orchestrates one training run. It is single-use: create a
// new Trainer for every run.
type Trainer struct {
	model     *layers.ModelSpec
	stepper   Stepper
	config    Config
	scheduler LRScheduler

	state     RunState
	history   *History
	callbacks *CallbackController
}

// NewTrainer validates the configuration and prepares a run in the
// Idle state.
func NewTrainer(model *layers.ModelSpec, stepper Stepper, config Config) (*Trainer, error) {
	if model == nil || !model.Compiled {
		return nil, fmt.Errorf("training: model spec must be compiled")
	}
	if stepper == nil {
		return nil, fmt.Errorf("training: stepper is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Trainer{
		model:     model,
		stepper:   stepper,
		config:    config,
		scheduler: &ConstantLR{},
		state:     Idle,
	}, nil
}

// SetScheduler installs a base learning-rate schedule. The plateau
// observer's multiplier composes on top of the scheduled rate.
func (t *Trainer) SetScheduler(s LRScheduler) {
	if s != nil {
		t.scheduler = s
	}
}

// State returns the trainer's current state.
func (t *Trainer) State() RunState {
	return t.state
}

// History returns the run's history, valid once Fit has started. An
// aborted run leaves all records up to the failure intact.
func (t *Trainer) History() *History {
	return t.history
}

// Fit runs the training loop until early stopping fires, the epoch
// budget is exhausted, the configured target loss is reached, the
// context is cancelled, or the run diverges. When validation is nil a
// validation set is carved from train using the configured split.
func (t *Trainer) Fit(ctx context.Context, train, validation *dataset.Dataset) (*History, error) {
	if t.state != Idle {
		return t.history, fmt.Errorf("training: trainer already ran (state %s); create a new trainer", t.state)
	}

	if validation == nil {
		if t.config.ValidationSplit <= 0 || t.config.ValidationSplit >= 1 {
			return nil, fmt.Errorf("training: no validation set supplied and validation split %g is not in (0, 1)",
				t.config.ValidationSplit)
		}
		var err error
		train, validation, err = train.Split(t.config.ValidationSplit)
		if err != nil {
			return nil, err
		}
	}

	if err := t.model.ValidateClassifier(train.NumClasses()); err != nil {
		return nil, err
	}

	loader, err := dataset.NewLoader(train, t.config.BatchSize, !t.config.NoReshuffle, t.config.Seed)
	if err != nil {
		return nil, err
	}

	t.state = Running
	t.history = NewHistory()
	t.callbacks = NewCallbackController(&t.config, t.stepper)

	nonFiniteEpochs := 0

	for epoch := 1; epoch <= t.config.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			t.finish(Cancelled)
			return t.history, err
		}

		epochStart := time.Now()
		baseLR := t.scheduler.GetLR(epoch-1, t.config.LearningRate)
		effectiveLR := t.callbacks.EffectiveLR(baseLR)

		trainLoss, trainAcc, err := t.trainEpoch(ctx, loader, effectiveLR)
		if err != nil {
			if ctx.Err() != nil {
				t.finish(Cancelled)
			} else {
				t.finish(Failed)
			}
			return t.history, err
		}

		valLoss, valCorrect, err := t.stepper.Evaluate(validation.Features, validation.Labels)
		if err != nil {
			t.finish(Failed)
			return t.history, fmt.Errorf("training: validation failed at epoch %d: %w", epoch, err)
		}
		valAcc := float64(valCorrect) / float64(validation.Len())

		// A single non-finite epoch is tolerated and left out of the
		// history; a second consecutive one is fatal.
		if !isFinite(trainLoss) || !isFinite(valLoss) {
			nonFiniteEpochs++
			if nonFiniteEpochs >= 2 {
				t.finish(Failed)
				return t.history, &DivergenceError{Epoch: epoch, Loss: firstNonFinite(trainLoss, valLoss)}
			}
			continue
		}
		nonFiniteEpochs = 0

		t.history.append(EpochRecord{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValLoss:       valLoss,
			ValAccuracy:   valAcc,
			LearningRate:  effectiveLR,
			Duration:      time.Since(epochStart),
		})

		if t.config.PrintEvery > 0 && epoch%t.config.PrintEvery == 0 {
			fmt.Printf("Epoch %d/%d: Train Loss=%.4f, Train Acc=%.2f%%, Val Loss=%.4f, Val Acc=%.2f%%, LR=%g\n",
				epoch, t.config.MaxEpochs, trainLoss, trainAcc*100, valLoss, valAcc*100, effectiveLR)
		}

		decision := t.callbacks.OnEpochEnd(epoch, valLoss)
		if decision.Stop {
			if err := t.callbacks.RestoreBestWeights(); err != nil {
				t.finish(Failed)
				return t.history, err
			}
			t.finish(Stopped)
			return t.history, nil
		}

		if t.config.TargetLoss > 0 && valLoss <= t.config.TargetLoss {
			t.finish(Converged)
			return t.history, nil
		}
	}

	t.finish(MaxEpochsReached)
	return t.history, nil
}

// trainEpoch iterates the training data strictly sequentially: each
// batch's optimizer step completes before the next begins, since every
// step mutates shared model state.
func (t *Trainer) trainEpoch(ctx context.Context, loader *dataset.Loader, learningRate float64) (float64, float64, error) {
	loader.Reset()

	var totalLoss float64
	var totalCorrect, totalSamples int

	for loader.HasNext() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		batch := loader.Next()
		loss, correct, err := t.stepper.Step(batch.Features, batch.Labels, learningRate)
		if err != nil {
			return 0, 0, fmt.Errorf("training: optimizer step failed: %w", err)
		}

		size := batch.Size()
		totalLoss += loss * float64(size)
		totalCorrect += correct
		totalSamples += size
	}

	if totalSamples == 0 {
		return 0, 0, fmt.Errorf("training: epoch saw no samples")
	}
	return totalLoss / float64(totalSamples), float64(totalCorrect) / float64(totalSamples), nil
}

func (t *Trainer) finish(state RunState) {
	t.state = state
	if t.history != nil {
		t.history.Final = state
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func firstNonFinite(values ...float64) float64 {
	for _, v := range values {
		if !isFinite(v) {
			return v
		}
	}
	return math.NaN()
}
