package dataset

import (
	"fmt"
	"math/rand"

	"gofit/tensor"
)

// Batch holds one batch of features and matching one-hot labels.
type Batch struct {
	Features *tensor.Tensor
	Labels   *tensor.Tensor
}

// Size returns the number of samples in the batch. The final batch of
// an epoch may be smaller than the configured batch size.
func (b *Batch) Size() int {
	return b.Features.Rows()
}

// Loader provides sequential batched iteration over a dataset with
// optional seeded reshuffling at the start of each epoch.
type Loader struct {
	dataset   *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
}

// NewLoader creates a loader over the dataset. When shuffle is true the
// sample order is re-drawn from the seeded generator on every Reset.
func NewLoader(d *Dataset, batchSize int, shuffle bool, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, d.Len())
	for i := range indices {
		indices[i] = i
	}

	return &Loader{
		dataset:   d,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		indices:   indices,
	}, nil
}

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling if configured.
func (l *Loader) Reset() {
	l.position = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// HasNext reports whether the current epoch has more batches.
func (l *Loader) HasNext() bool {
	return l.position < len(l.indices)
}

// Next returns the next batch, or nil once the epoch is exhausted.
func (l *Loader) Next() *Batch {
	if l.position >= len(l.indices) {
		return nil
	}

	end := l.position + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batchIdx := l.indices[l.position:end]
	l.position = end

	return &Batch{
		Features: Gather(l.dataset.Features, batchIdx),
		Labels:   Gather(l.dataset.Labels, batchIdx),
	}
}
