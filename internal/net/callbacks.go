package net

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(t *Trainer)
	OnTrainEnd(t *Trainer)
	OnEpochBegin(epoch int, t *Trainer)
	OnEpochEnd(stats EpochStats, t *Trainer)
	OnBatchEnd(batch int, l StepLoss, t *Trainer)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(t *Trainer)                      {}
func (c BaseCallback) OnTrainEnd(t *Trainer)                        {}
func (c BaseCallback) OnEpochBegin(epoch int, t *Trainer)           {}
func (c BaseCallback) OnEpochEnd(stats EpochStats, t *Trainer)      {}
func (c BaseCallback) OnBatchEnd(batch int, l StepLoss, t *Trainer) {}

// Logger prints the epoch progress line.
type Logger struct {
	BaseCallback
	Out io.Writer // defaults to os.Stdout

	// BatchInterval > 0 also prints every n-th batch loss.
	BatchInterval int
}

func (c Logger) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c Logger) OnEpochEnd(stats EpochStats, t *Trainer) {
	fmt.Fprintln(c.out(), stats.String())
}

func (c Logger) OnBatchEnd(batch int, l StepLoss, t *Trainer) {
	if c.BatchInterval > 0 && batch%c.BatchInterval == 0 {
		fmt.Fprintf(c.out(), "  batch %d: loss = %.6f\n", batch, l.Total)
	}
}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(stats EpochStats, t *Trainer) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(stats.Total)
}

// EarlyStopping stops training when the epoch total loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnTrainBegin(t *Trainer) {
	c.bestLoss = math.MaxFloat64
	c.numBadEpochs = 0
	c.Stopped = false
}

func (c *EarlyStopping) OnEpochEnd(stats EpochStats, t *Trainer) {
	if stats.Total < c.bestLoss-c.Threshold {
		c.bestLoss = stats.Total
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		log.Printf("early stopping at epoch %d: loss %.6f did not improve for %d epochs", stats.Epoch, stats.Total, c.Patience)
		c.Stopped = true
		t.Stop()
	}
}

// ModelCheckpoint saves the model after every epoch if it's the best so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
	Err      error // last save error, if any
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.MaxFloat64,
	}
}

func (c *ModelCheckpoint) OnEpochEnd(stats EpochStats, t *Trainer) {
	if stats.Total >= c.bestLoss {
		return
	}
	c.bestLoss = stats.Total
	if c.Err = t.Model().Save(c.Filename); c.Err != nil {
		log.Printf("checkpoint: %v", c.Err)
		return
	}
	log.Printf("checkpoint saved: loss %.6f is new best", stats.Total)
}
