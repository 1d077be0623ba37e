package net

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// sliceBatches replays a fixed list of batches every epoch.
type sliceBatches struct {
	batches []*mat.Dense
	pos     int
	resets  int
}

func (s *sliceBatches) Reset() {
	s.pos = 0
	s.resets++
}

func (s *sliceBatches) Next() (dataset.Batch, bool) {
	if s.pos >= len(s.batches) {
		return dataset.Batch{}, false
	}
	b := dataset.Batch{X: s.batches[s.pos]}
	s.pos++
	return b, true
}

func newTestTrainer(seed int64, epochs int, opts ...TrainerOption) *Trainer {
	model := New(10, 3, rand.New(rand.NewSource(seed)))
	return NewTrainer(model, opt.NewAdam(1e-3), NewObjective(0.05, 0.1), epochs, opts...)
}

// TestStepZeroBatchFinite checks a zero batch with a fixed seed yields a finite loss.
func TestStepZeroBatchFinite(t *testing.T) {
	tr := newTestTrainer(42, 1)
	l, err := tr.Step(mat.NewDense(4, 10, nil))
	require.NoError(t, err)
	assert.True(t, l.Finite(), "loss %+v", l)
	assert.GreaterOrEqual(t, l.Sparsity, 0.0)
}

// TestStepReducesLossOnConstantInput checks the second step on the same batch has a lower total.
func TestStepReducesLossOnConstantInput(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tr := newTestTrainer(5, 1)
	x := randomBatch(rng, 4, 10)

	first, err := tr.Step(x)
	require.NoError(t, err)
	second, err := tr.Step(x)
	require.NoError(t, err)
	assert.Less(t, second.Total, first.Total)
}

// TestFitOneEpochTwoBatches runs one epoch over two 4x10 batches with hidden size 3.
func TestFitOneEpochTwoBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	batches := &sliceBatches{batches: []*mat.Dense{randomBatch(rng, 4, 10), randomBatch(rng, 4, 10)}}

	var buf bytes.Buffer
	tr := newTestTrainer(6, 1, WithCallbacks(Logger{Out: &buf}))
	history, err := tr.Fit(context.Background(), batches)
	require.NoError(t, err)

	require.Len(t, history, 1)
	s := history[0]
	assert.Equal(t, 1, s.Epoch)
	assert.Equal(t, 1, s.Epochs)
	assert.Equal(t, 2, s.Batches)
	assert.InDelta(t, s.Reconstruction+0.1*s.Sparsity, s.Total, 1e-9)
	assert.Equal(t, PhaseDone, tr.Phase())
	assert.Equal(t, 1, batches.resets)

	line := regexp.MustCompile(`^Epoch \[1/1\], Total Loss: \d+\.\d{4}, Reconstruction Loss: \d+\.\d{4}, Sparsity Loss: \d+\.\d{4}$`)
	assert.Regexp(t, line, strings.TrimSpace(buf.String()))
}

func TestEpochStatsString(t *testing.T) {
	s := EpochStats{Epoch: 3, Epochs: 10, Total: 1.23456, Reconstruction: 1.2, Sparsity: 0.34567}
	assert.Equal(t, "Epoch [3/10], Total Loss: 1.2346, Reconstruction Loss: 1.2000, Sparsity Loss: 0.3457", s.String())
}

// TestFitAbortsOnNonFiniteLoss checks a NaN input aborts the run and leaves the parameters untouched.
func TestFitAbortsOnNonFiniteLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bad := randomBatch(rng, 4, 10)
	bad.Set(2, 3, math.NaN())
	batches := &sliceBatches{batches: []*mat.Dense{bad, randomBatch(rng, 4, 10)}}

	tr := newTestTrainer(7, 3)
	before := tr.Model().Params()

	history, err := tr.Fit(context.Background(), batches)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFiniteLoss), "got %v", err)
	assert.Contains(t, err.Error(), "epoch 1 batch 1")
	assert.Empty(t, history)
	assert.Equal(t, before, tr.Model().Params())
	assert.Equal(t, PhaseBatchStep, tr.Phase())
}

func TestStepShapeMismatch(t *testing.T) {
	tr := newTestTrainer(8, 1)

	_, err := tr.Step(mat.NewDense(2, 9, nil))
	assert.True(t, errors.Is(err, ErrShape), "got %v", err)
}

func TestFitContextCanceled(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	batches := &sliceBatches{batches: []*mat.Dense{randomBatch(rng, 4, 10)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := newTestTrainer(9, 2).Fit(ctx, batches)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Empty(t, history)
}

// phaseRecorder notes the trainer phase seen by every hook.
type phaseRecorder struct {
	BaseCallback
	seen []string
}

func (r *phaseRecorder) OnEpochBegin(epoch int, t *Trainer) {
	r.seen = append(r.seen, t.Phase().String())
}

func (r *phaseRecorder) OnBatchEnd(batch int, l StepLoss, t *Trainer) {
	r.seen = append(r.seen, t.Phase().String())
}

func (r *phaseRecorder) OnEpochEnd(stats EpochStats, t *Trainer) {
	r.seen = append(r.seen, t.Phase().String())
}

func (r *phaseRecorder) OnTrainEnd(t *Trainer) {
	r.seen = append(r.seen, t.Phase().String())
}

func TestFitPhaseOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	batches := &sliceBatches{batches: []*mat.Dense{randomBatch(rng, 4, 10), randomBatch(rng, 4, 10)}}

	rec := &phaseRecorder{}
	_, err := newTestTrainer(10, 2, WithCallbacks(rec)).Fit(context.Background(), batches)
	require.NoError(t, err)

	want := []string{
		"epoch-start", "batch-step", "batch-step", "epoch-end",
		"epoch-start", "batch-step", "batch-step", "epoch-end",
		"done",
	}
	assert.Equal(t, want, rec.seen)
}

func TestPhaseStringUnknown(t *testing.T) {
	assert.Equal(t, "Phase(9)", Phase(9).String())
}

// TestEvaluateLeavesParams checks evaluation matches the backend losses and never steps.
func TestEvaluateLeavesParams(t *testing.T) {
	rng := rand.New(rand.NewSource(16))
	x1, x2 := randomBatch(rng, 4, 10), randomBatch(rng, 3, 10)
	tr := newTestTrainer(16, 1)
	before := tr.Model().Params()

	stats, err := tr.Evaluate(context.Background(), &sliceBatches{batches: []*mat.Dense{x1, x2}})
	require.NoError(t, err)
	assert.Equal(t, before, tr.Model().Params())
	assert.Equal(t, 2, stats.Batches)

	l1, _, err := ManualBackend{}.Evaluate(tr.Model(), x1, NewObjective(0.05, 0.1))
	require.NoError(t, err)
	l2, _, err := ManualBackend{}.Evaluate(tr.Model(), x2, NewObjective(0.05, 0.1))
	require.NoError(t, err)
	assert.InDelta(t, l1.Total+l2.Total, stats.Total, 1e-12)
	assert.InDelta(t, l1.Sparsity+l2.Sparsity, stats.Sparsity, 1e-12)

	_, err = tr.Evaluate(context.Background(), &sliceBatches{batches: []*mat.Dense{mat.NewDense(1, 3, nil)}})
	assert.True(t, errors.Is(err, ErrShape), "got %v", err)
}
