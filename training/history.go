package training

import (
	"time"

	"github.com/google/uuid"
)

// EpochRecord holds the metrics of a single completed epoch.
type EpochRecord struct {
	Epoch         int           `json:"epoch"`
	TrainLoss     float64       `json:"train_loss"`
	TrainAccuracy float64       `json:"train_accuracy"`
	ValLoss       float64       `json:"val_loss"`
	ValAccuracy   float64       `json:"val_accuracy"`
	LearningRate  float64       `json:"learning_rate"`
	Duration      time.Duration `json:"duration"`
}

// History is the append-only record of a training run. It is produced
// incrementally, one record per epoch, and is left intact when a run
// aborts so the failure can be diagnosed.
type History struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Records   []EpochRecord `json:"records"`
	Final     RunState      `json:"final_state"`
}

// NewHistory creates an empty history with a fresh run identifier.
func NewHistory() *History {
	return &History{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

func (h *History) append(r EpochRecord) {
	h.Records = append(h.Records, r)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.Records)
}

// Last returns the most recent record, or a zero record when empty.
func (h *History) Last() EpochRecord {
	if len(h.Records) == 0 {
		return EpochRecord{}
	}
	return h.Records[len(h.Records)-1]
}

// BestValLoss returns the lowest validation loss recorded and its
// epoch, or (0, -1) when the history is empty.
func (h *History) BestValLoss() (float64, int) {
	if len(h.Records) == 0 {
		return 0, -1
	}
	best := h.Records[0].ValLoss
	epoch := h.Records[0].Epoch
	for _, r := range h.Records[1:] {
		if r.ValLoss < best {
			best = r.ValLoss
			epoch = r.Epoch
		}
	}
	return best, epoch
}
