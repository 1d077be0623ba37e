package net

import (
	"context"
	"fmt"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when a batch does not match the model input width.
var ErrShape = errors.New("shape mismatch")

// Phase is the trainer's position in the epoch loop.
type Phase int

const (
	PhaseEpochStart Phase = iota
	PhaseBatchStep
	PhaseEpochEnd
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseEpochStart:
		return "epoch-start"
	case PhaseBatchStep:
		return "batch-step"
	case PhaseEpochEnd:
		return "epoch-end"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Batches is an in-memory batch iterator. Reset starts a new pass.
type Batches interface {
	Reset()
	Next() (dataset.Batch, bool)
}

// EpochStats holds the running loss totals of one epoch, summed over its batches.
type EpochStats struct {
	Epoch          int // 1-based
	Epochs         int
	Batches        int
	Total          float64
	Reconstruction float64
	Sparsity       float64
}

func (s *EpochStats) add(l StepLoss) {
	s.Batches++
	s.Total += l.Total
	s.Reconstruction += l.Reconstruction
	s.Sparsity += l.Sparsity
}

// String formats the progress line printed at the end of each epoch.
func (s EpochStats) String() string {
	return fmt.Sprintf("Epoch [%d/%d], Total Loss: %.4f, Reconstruction Loss: %.4f, Sparsity Loss: %.4f",
		s.Epoch, s.Epochs, s.Total, s.Reconstruction, s.Sparsity)
}

// Trainer runs the sparsity-regularized training loop over an Autoencoder.
// It is not safe for concurrent use.
type Trainer struct {
	model     *Autoencoder
	opt       opt.Optimizer
	objective Objective
	backend   Backend
	epochs    int
	callbacks []Callback

	phase   Phase
	history []EpochStats
	stop    bool
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithBackend selects how gradients are computed. The default is ManualBackend.
func WithBackend(b Backend) TrainerOption {
	return func(t *Trainer) { t.backend = b }
}

// WithCallbacks registers training callbacks, invoked in order.
func WithCallbacks(cbs ...Callback) TrainerOption {
	return func(t *Trainer) { t.callbacks = append(t.callbacks, cbs...) }
}

// NewTrainer creates a trainer for the given number of epochs.
func NewTrainer(model *Autoencoder, optimizer opt.Optimizer, objective Objective, epochs int, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		model:     model,
		opt:       optimizer,
		objective: objective,
		backend:   ManualBackend{},
		epochs:    epochs,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Model returns the model being trained.
func (t *Trainer) Model() *Autoencoder { return t.model }

// Optimizer returns the optimizer updating the model.
func (t *Trainer) Optimizer() opt.Optimizer { return t.opt }

// Phase returns the current loop phase.
func (t *Trainer) Phase() Phase { return t.phase }

// History returns the stats of every finished epoch.
func (t *Trainer) History() []EpochStats { return t.history }

// Stop asks Fit to finish after the current epoch.
func (t *Trainer) Stop() { t.stop = true }

// Step performs one optimization step on a batch and returns its losses.
// Parameters are left untouched when the loss is not finite.
func (t *Trainer) Step(x *mat.Dense) (StepLoss, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols != t.model.InputDim() {
		return StepLoss{}, errors.Wrapf(ErrShape, "batch is %dx%d, model input is %d", rows, cols, t.model.InputDim())
	}

	l, grads, err := t.backend.Evaluate(t.model, x, t.objective)
	if err != nil {
		return l, err
	}
	if !l.Finite() {
		return l, errors.Wrapf(ErrNonFiniteLoss, "total=%v", l.Total)
	}

	params := t.model.Params()
	t.opt.StepInPlace(params, grads)
	t.model.SetParams(params)
	return l, nil
}

// Fit trains for the configured number of epochs and returns per-epoch totals.
// Any step error aborts the run. ctx is checked between batches.
func (t *Trainer) Fit(ctx context.Context, batches Batches) ([]EpochStats, error) {
	t.history = nil
	t.stop = false

	for _, cb := range t.callbacks {
		cb.OnTrainBegin(t)
	}

	for epoch := 1; epoch <= t.epochs && !t.stop; epoch++ {
		t.phase = PhaseEpochStart
		for _, cb := range t.callbacks {
			cb.OnEpochBegin(epoch, t)
		}
		batches.Reset()
		stats := EpochStats{Epoch: epoch, Epochs: t.epochs}

		t.phase = PhaseBatchStep
		for b, ok := batches.Next(); ok; b, ok = batches.Next() {
			if err := ctx.Err(); err != nil {
				return t.history, errors.Wrapf(err, "epoch %d", epoch)
			}
			l, err := t.Step(b.X)
			if err != nil {
				return t.history, errors.Wrapf(err, "epoch %d batch %d", epoch, stats.Batches+1)
			}
			stats.add(l)
			for _, cb := range t.callbacks {
				cb.OnBatchEnd(stats.Batches, l, t)
			}
		}

		t.phase = PhaseEpochEnd
		t.history = append(t.history, stats)
		for _, cb := range t.callbacks {
			cb.OnEpochEnd(stats, t)
		}
	}

	t.phase = PhaseDone
	for _, cb := range t.callbacks {
		cb.OnTrainEnd(t)
	}
	return t.history, nil
}

// Evaluate sums the losses of one pass over batches without updating the model.
// The returned stats have Epoch set to 0.
func (t *Trainer) Evaluate(ctx context.Context, batches Batches) (EpochStats, error) {
	stats := EpochStats{Epochs: t.epochs}
	batches.Reset()
	for b, ok := batches.Next(); ok; b, ok = batches.Next() {
		if err := ctx.Err(); err != nil {
			return stats, errors.WithStack(err)
		}
		rows, cols := b.X.Dims()
		if rows == 0 || cols != t.model.InputDim() {
			return stats, errors.Wrapf(ErrShape, "batch is %dx%d, model input is %d", rows, cols, t.model.InputDim())
		}
		l := t.objective.Loss(t.model, b.X)
		if !l.Finite() {
			return stats, errors.Wrapf(ErrNonFiniteLoss, "batch %d total=%v", stats.Batches+1, l.Total)
		}
		stats.add(l)
	}
	return stats, nil
}
