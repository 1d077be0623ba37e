// Package config holds the hyperparameters and file locations of a training run.
package config

import (
	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/loss"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
	"github.com/pkg/errors"
)

// Backend names accepted by Config.Backend.
const (
	BackendManual   = "manual"
	BackendAutodiff = "autodiff"
)

// Data sources accepted by Config.DataSource.
const (
	SourceMNIST = "mnist"
	SourceCSV   = "csv"
)

// Optimizers accepted by Config.Optimizer.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// Learning rate schedules accepted by Config.LRSchedule.
const (
	ScheduleNone        = "none"
	ScheduleStep        = "step"
	ScheduleExponential = "exponential"
	SchedulePlateau     = "plateau"
)

// Config is a full training run description.
type Config struct {
	InputDim  int
	HiddenDim int

	Sparsity float64 // target mean activation rho
	Beta     float64 // weight of the sparsity term

	Optimizer    string
	LearningRate float64
	Epochs       int
	BatchSize    int
	Shuffle      bool
	Seed         int64

	ClampMin, ClampMax float64
	NormMean, NormStd  float32

	DataSource string
	DataDir    string // MNIST files
	Download   bool

	// CSV source: one flattened ImageRows×ImageCols image per line.
	CSVTrainFile string
	CSVTestFile  string // empty skips evaluation
	CSVLabelCol  int    // -1 when there is no label column
	CSVHeader    bool
	ImageRows    int
	ImageCols    int

	ParamsFile   string
	ImageFile    string
	LossPlotFile string // empty disables
	DotFile      string // empty disables
	NeuronFile   string // per-neuron DOT, empty disables
	FiltersFile  string // encoder weight images, empty disables
	CSVLogFile   string // empty disables

	Backend string
	Samples int // image pairs in the reconstruction grid

	// NeuronEdges is the number of strongest incoming connections drawn per
	// hidden and output neuron in the per-neuron graph.
	NeuronEdges int

	LRSchedule string
	LRStepSize int     // step: epochs between decays
	LRGamma    float64 // step, exponential and plateau decay factor
	LRPatience int     // plateau
	LRCooldown int     // plateau
	LRMin      float64 // plateau
}

// Default returns the configuration of the reference MNIST run.
func Default() Config {
	return Config{
		InputDim:     28 * 28,
		HiddenDim:    128,
		Sparsity:     0.05,
		Beta:         0.1,
		Optimizer:    OptimizerAdam,
		LearningRate: 1e-4,
		Epochs:       10,
		BatchSize:    64,
		Shuffle:      true,
		Seed:         42,
		ClampMin:     loss.DefaultClampMin,
		ClampMax:     loss.DefaultClampMax,
		NormMean:     0.5,
		NormStd:      0.5,
		DataSource:   SourceMNIST,
		DataDir:      "./data",
		Download:     true,
		CSVLabelCol:  -1,
		ImageRows:    28,
		ImageCols:    28,
		ParamsFile:   "sparse_autoencoder.gob",
		ImageFile:    "reconstructions.png",
		LossPlotFile: "loss.png",
		DotFile:      "architecture.dot",
		NeuronFile:   "neurons.dot",
		FiltersFile:  "filters.png",
		CSVLogFile:   "training.csv",
		Backend:      BackendManual,
		Samples:      10,
		NeuronEdges:  3,
		LRSchedule:   ScheduleNone,
		LRStepSize:   5,
		LRGamma:      0.5,
		LRPatience:   2,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.InputDim <= 0:
		return errors.Errorf("config: input dim %d must be positive", c.InputDim)
	case c.HiddenDim <= 0:
		return errors.Errorf("config: hidden dim %d must be positive", c.HiddenDim)
	case !(c.Sparsity > 0 && c.Sparsity < 1):
		return errors.Errorf("config: sparsity target %v must be in (0, 1)", c.Sparsity)
	case c.Beta < 0:
		return errors.Errorf("config: beta %v must not be negative", c.Beta)
	case c.Optimizer != OptimizerAdam && c.Optimizer != OptimizerSGD:
		return errors.Errorf("config: unknown optimizer %q", c.Optimizer)
	case !(c.LearningRate > 0):
		return errors.Errorf("config: learning rate %v must be positive", c.LearningRate)
	case c.Epochs <= 0:
		return errors.Errorf("config: epochs %d must be positive", c.Epochs)
	case c.BatchSize <= 0:
		return errors.Errorf("config: batch size %d must be positive", c.BatchSize)
	case !(c.ClampMin > 0 && c.ClampMin < c.ClampMax && c.ClampMax < 1):
		return errors.Errorf("config: clamp interval [%v, %v] must lie inside (0, 1)", c.ClampMin, c.ClampMax)
	case !(c.NormStd > 0):
		return errors.Errorf("config: normalization std %v must be positive", c.NormStd)
	case c.DataSource != SourceMNIST && c.DataSource != SourceCSV:
		return errors.Errorf("config: unknown data source %q", c.DataSource)
	case c.DataSource == SourceCSV && c.CSVTrainFile == "":
		return errors.New("config: csv source needs a training file")
	case c.DataSource == SourceCSV && c.ImageRows*c.ImageCols != c.InputDim:
		return errors.Errorf("config: %dx%d csv images do not match input dim %d", c.ImageRows, c.ImageCols, c.InputDim)
	case c.ParamsFile == "":
		return errors.New("config: params file is required")
	case c.Backend != BackendManual && c.Backend != BackendAutodiff:
		return errors.Errorf("config: unknown backend %q", c.Backend)
	case c.Samples < 0:
		return errors.Errorf("config: samples %d must not be negative", c.Samples)
	case c.NeuronEdges < 0:
		return errors.Errorf("config: neuron edges %d must not be negative", c.NeuronEdges)
	}
	return c.validateSchedule()
}

func (c Config) validateSchedule() error {
	switch c.LRSchedule {
	case ScheduleNone:
		return nil
	case ScheduleStep:
		if c.LRStepSize <= 0 {
			return errors.Errorf("config: lr step size %d must be positive", c.LRStepSize)
		}
	case ScheduleExponential:
	case SchedulePlateau:
		if c.LRPatience <= 0 || c.LRCooldown < 0 || c.LRMin < 0 {
			return errors.Errorf("config: plateau patience %d, cooldown %d and min lr %v are invalid",
				c.LRPatience, c.LRCooldown, c.LRMin)
		}
	default:
		return errors.Errorf("config: unknown lr schedule %q", c.LRSchedule)
	}
	if !(c.LRGamma > 0 && c.LRGamma <= 1) {
		return errors.Errorf("config: lr gamma %v must be in (0, 1]", c.LRGamma)
	}
	return nil
}

// KLSparsity returns the sparsity penalty configured by c.
func (c Config) KLSparsity() loss.KLSparsity {
	return loss.KLSparsity{Rho: c.Sparsity, Min: c.ClampMin, Max: c.ClampMax}
}

// NewOptimizer returns the configured optimizer.
func (c Config) NewOptimizer() opt.Optimizer {
	if c.Optimizer == OptimizerSGD {
		return opt.NewSGD(c.LearningRate)
	}
	return opt.NewAdam(c.LearningRate)
}

// NewScheduler returns the configured learning rate schedule for o, or nil when
// the learning rate is constant.
func (c Config) NewScheduler(o opt.Optimizer) opt.Scheduler {
	switch c.LRSchedule {
	case ScheduleStep:
		return opt.NewStepLR(o, c.LRStepSize, c.LRGamma)
	case ScheduleExponential:
		return opt.NewExponentialLR(o, c.LRGamma)
	case SchedulePlateau:
		s := opt.NewReduceLROnPlateau(o, c.LRGamma, c.LRPatience, 0, c.LRMin)
		s.Cooldown = c.LRCooldown
		return s
	}
	return nil
}

// LoadTraining loads the training images from the configured source.
func (c Config) LoadTraining() (*dataset.Dataset, error) {
	if c.DataSource == SourceCSV {
		return dataset.LoadCSV(c.CSVTrainFile, c.CSVLabelCol, c.CSVHeader, c.ImageRows, c.ImageCols)
	}
	return dataset.LoadMNIST(c.DataDir, c.Download)
}

// LoadEvaluation loads the held-out images, or returns nil when the source has none.
func (c Config) LoadEvaluation() (*dataset.Dataset, error) {
	if c.DataSource == SourceCSV {
		if c.CSVTestFile == "" {
			return nil, nil
		}
		return dataset.LoadCSV(c.CSVTestFile, c.CSVLabelCol, c.CSVHeader, c.ImageRows, c.ImageCols)
	}
	return dataset.LoadMNISTTest(c.DataDir, c.Download)
}
