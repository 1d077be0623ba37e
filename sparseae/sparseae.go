// Package sparseae exposes the sparse autoencoder, its trainer and the data
// helpers outside this module.
package sparseae

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/autodiff"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/config"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
)

// Re-export common types and functions for easier access
type (
	Model         = net.Autoencoder
	Trainer       = net.Trainer
	TrainerOption = net.TrainerOption
	Objective     = net.Objective
	StepLoss      = net.StepLoss
	EpochStats    = net.EpochStats
	Backend       = net.Backend
	Optimizer     = opt.Optimizer
	Scheduler     = opt.Scheduler
	Callback      = net.Callback
	Config        = config.Config
	Dataset       = dataset.Dataset
	Loader        = dataset.Loader
	Batch         = dataset.Batch
)

var (
	ErrNonFiniteLoss = net.ErrNonFiniteLoss
	ErrShape         = net.ErrShape
	ErrBadFormat     = net.ErrBadFormat
)

// Model creation
func New(inputDim, hiddenDim int, seed int64) *Model {
	return net.New(inputDim, hiddenDim, rand.New(rand.NewSource(seed)))
}

func NewObjective(sparsity, beta float64) Objective {
	return net.NewObjective(sparsity, beta)
}

func NewTrainer(model *Model, optimizer Optimizer, objective Objective, epochs int, opts ...TrainerOption) *Trainer {
	return net.NewTrainer(model, optimizer, objective, epochs, opts...)
}

func WithCallbacks(cbs ...Callback) TrainerOption {
	return net.WithCallbacks(cbs...)
}

// WithGraphBackend computes gradients with a Gorgonia graph. Call the returned
// close function when training is over.
func WithGraphBackend() (TrainerOption, func() error) {
	b := autodiff.New()
	return net.WithBackend(b), b.Close
}

// Optimizers
func Adam(lr float64) *opt.Adam {
	return opt.NewAdam(lr)
}

func SGD(lr float64) *opt.SGD {
	return opt.NewSGD(lr)
}

func StepLR(optimizer Optimizer, stepSize int, gamma float64) Scheduler {
	return opt.NewStepLR(optimizer, stepSize, gamma)
}

// Callbacks
func Logger(batchInterval int) net.Logger {
	return net.Logger{BatchInterval: batchInterval}
}

func CSVLogger(filename string) Callback {
	return net.NewCSVLogger(filename, false)
}

func ModelCheckpoint(filename string) Callback {
	return net.NewModelCheckpoint(filename)
}

func EarlyStopping(patience int, threshold float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, threshold)
}

func SchedulerCallback(scheduler Scheduler) Callback {
	return net.NewSchedulerCallback(scheduler)
}

// Data
func LoadMNIST(dir string, download bool) (*Dataset, error) {
	return dataset.LoadMNIST(dir, download)
}

func NewLoader(ds *Dataset, batchSize int, shuffle bool, seed int64) *Loader {
	return dataset.NewLoader(ds, batchSize, shuffle, rand.New(rand.NewSource(seed)))
}

// DefaultConfig returns the reference MNIST hyperparameters.
func DefaultConfig() Config {
	return config.Default()
}

// Model Persistence
func Load(filename string) (*Model, error) {
	return net.Load(filename)
}
