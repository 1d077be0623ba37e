package dataset

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Batch is one step's worth of samples: one flattened image per row of X.
type Batch struct {
	X      *mat.Dense
	Labels []uint8
}

// Loader serves a Dataset in fixed-size batches. The last batch of a pass may be
// smaller. It is not safe for concurrent use.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewLoader creates a loader. With shuffle set, every Reset draws a new order from rng.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		panic("dataset: batch size must be positive")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		order:     make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l
}

// Reset starts a new pass over the dataset.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next batch, or false when the pass is over.
func (l *Loader) Next() (Batch, bool) {
	if l.pos >= len(l.order) {
		return Batch{}, false
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	idx := l.order[l.pos:end]
	l.pos = end

	dim := len(l.ds.Images[idx[0]])
	x := mat.NewDense(len(idx), dim, nil)
	labels := make([]uint8, len(idx))
	for r, i := range idx {
		row := x.RawRowView(r)
		for j, v := range l.ds.Images[i] {
			row[j] = float64(v)
		}
		labels[r] = l.ds.Labels[i]
	}
	return Batch{X: x, Labels: labels}, true
}

// NumBatches returns the number of batches in one pass.
func (l *Loader) NumBatches() int {
	return (len(l.order) + l.batchSize - 1) / l.batchSize
}
