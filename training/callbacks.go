package training

import (
	"fmt"
)

// EarlyStopping observes the validation loss once per epoch and fires
// when no meaningful improvement has been seen for more than Patience
// epochs. It keeps its own counter, independent of any other observer.
type EarlyStopping struct {
	Patience int
	MinDelta float64

	best        float64
	bestEpoch   int
	wait        int
	initialized bool
	fired       bool
}

// NewEarlyStopping creates the observer in its tracking state.
func NewEarlyStopping(patience int, minDelta float64) *EarlyStopping {
	return &EarlyStopping{Patience: patience, MinDelta: minDelta}
}

// Observe records one validation-loss value. It returns whether the
// value improved on the best seen by more than MinDelta, and whether
// the stop condition fired. The first observed epoch initializes the
// best value and never counts as "no improvement".
func (es *EarlyStopping) Observe(epoch int, value float64) (improved, stop bool) {
	if !es.initialized {
		es.initialized = true
		es.best = value
		es.bestEpoch = epoch
		return true, false
	}

	if es.best-value > es.MinDelta {
		es.best = value
		es.bestEpoch = epoch
		es.wait = 0
		return true, false
	}

	es.wait++
	if es.wait > es.Patience {
		es.fired = true
		return false, true
	}
	return false, false
}

// Fired reports whether the stop condition has triggered.
func (es *EarlyStopping) Fired() bool {
	return es.fired
}

// BestEpoch returns the epoch of the best value seen so far.
func (es *EarlyStopping) BestEpoch() int {
	return es.bestEpoch
}

// Best returns the best value seen so far.
func (es *EarlyStopping) Best() float64 {
	return es.best
}

// PlateauReducer lowers the effective learning rate when the monitored
// metric plateaus. It tracks a multiplier applied to the base learning
// rate; training always continues after a reduction.
type PlateauReducer struct {
	Patience int
	Factor   float64
	MinLR    float64
	MinDelta float64

	best        float64
	wait        int
	multiplier  float64
	initialized bool
}

// NewPlateauReducer creates the observer with an identity multiplier.
func NewPlateauReducer(patience int, factor, minLR, minDelta float64) *PlateauReducer {
	return &PlateauReducer{
		Patience:   patience,
		Factor:     factor,
		MinLR:      minLR,
		MinDelta:   minDelta,
		multiplier: 1,
	}
}

// Observe records one validation-loss value, reducing the multiplier
// when more than Patience epochs pass without improvement. Its counter
// is independent of EarlyStopping's.
func (pr *PlateauReducer) Observe(value float64) (reduced bool) {
	if !pr.initialized {
		pr.initialized = true
		pr.best = value
		return false
	}

	if pr.best-value > pr.MinDelta {
		pr.best = value
		pr.wait = 0
		return false
	}

	pr.wait++
	if pr.wait > pr.Patience {
		pr.multiplier *= pr.Factor
		pr.wait = 0
		return true
	}
	return false
}

// EffectiveLR applies the current multiplier to the base learning
// rate, clamped at the configured floor.
func (pr *PlateauReducer) EffectiveLR(baseLR float64) float64 {
	lr := baseLR * pr.multiplier
	if pr.MinLR > 0 && lr < pr.MinLR {
		return pr.MinLR
	}
	return lr
}

// Multiplier returns the current learning-rate multiplier.
func (pr *PlateauReducer) Multiplier() float64 {
	return pr.multiplier
}

// EpochDecision is the composite outcome of one onEpochEnd pass.
type EpochDecision struct {
	Stop      bool
	LRReduced bool
}

// CallbackController drives the two observer state machines. Both run
// every epoch and do not share counters; typically EarlyStopping is
// configured with the larger patience so the rate is lowered before
// the run is aborted.
type CallbackController struct {
	earlyStopping *EarlyStopping
	plateau       *PlateauReducer

	restoreBest  bool
	stepper      Stepper
	bestSnapshot any
}

// NewCallbackController wires the observers enabled by the config. The
// stepper is used to snapshot model state at each new best epoch when
// restore-best-weights is configured.
func NewCallbackController(cfg *Config, stepper Stepper) *CallbackController {
	cc := &CallbackController{stepper: stepper}
	if cfg.EarlyStopping.Enabled {
		cc.earlyStopping = NewEarlyStopping(cfg.EarlyStopping.Patience, cfg.EarlyStopping.MinDelta)
		cc.restoreBest = cfg.EarlyStopping.RestoreBestWeights
	}
	if cfg.ReduceLR.Enabled {
		cc.plateau = NewPlateauReducer(cfg.ReduceLR.Patience, cfg.ReduceLR.Factor, cfg.ReduceLR.MinLR, cfg.ReduceLR.MinDelta)
	}
	return cc
}

// OnEpochEnd feeds the epoch's validation loss to each observer.
func (cc *CallbackController) OnEpochEnd(epoch int, valLoss float64) EpochDecision {
	var decision EpochDecision

	if cc.earlyStopping != nil {
		improved, stop := cc.earlyStopping.Observe(epoch, valLoss)
		if improved && cc.restoreBest && cc.stepper != nil {
			cc.bestSnapshot = cc.stepper.Snapshot()
		}
		decision.Stop = stop
	}

	if cc.plateau != nil {
		decision.LRReduced = cc.plateau.Observe(valLoss)
	}

	return decision
}

// EffectiveLR returns the learning rate after the plateau multiplier.
func (cc *CallbackController) EffectiveLR(baseLR float64) float64 {
	if cc.plateau == nil {
		return baseLR
	}
	return cc.plateau.EffectiveLR(baseLR)
}

// RestoreBestWeights restores the snapshot captured at the best epoch,
// if restore-best-weights is configured and a snapshot exists.
func (cc *CallbackController) RestoreBestWeights() error {
	if !cc.restoreBest || cc.bestSnapshot == nil {
		return nil
	}
	if err := cc.stepper.Restore(cc.bestSnapshot); err != nil {
		return fmt.Errorf("training: failed to restore best weights: %w", err)
	}
	return nil
}

// BestEpoch returns the best epoch seen by early stopping, or -1 when
// early stopping is disabled.
func (cc *CallbackController) BestEpoch() int {
	if cc.earlyStopping == nil {
		return -1
	}
	return cc.earlyStopping.BestEpoch()
}
