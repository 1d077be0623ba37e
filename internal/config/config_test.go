package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/opt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Validate())
	assert.Equal(t, 784, c.InputDim)
	assert.Equal(t, 128, c.HiddenDim)
	assert.Equal(t, 0.05, c.Sparsity)
	assert.Equal(t, 0.1, c.Beta)
	assert.Equal(t, 1e-4, c.LearningRate)
	assert.Equal(t, 10, c.Epochs)
	assert.Equal(t, 64, c.BatchSize)
	assert.Equal(t, "sparse_autoencoder.gob", c.ParamsFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero input", func(c *Config) { c.InputDim = 0 }},
		{"negative hidden", func(c *Config) { c.HiddenDim = -1 }},
		{"sparsity zero", func(c *Config) { c.Sparsity = 0 }},
		{"sparsity one", func(c *Config) { c.Sparsity = 1 }},
		{"negative beta", func(c *Config) { c.Beta = -0.1 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"inverted clamp", func(c *Config) { c.ClampMin, c.ClampMax = 0.5, 0.1 }},
		{"clamp at one", func(c *Config) { c.ClampMax = 1 }},
		{"zero std", func(c *Config) { c.NormStd = 0 }},
		{"no params file", func(c *Config) { c.ParamsFile = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "cuda" }},
		{"negative samples", func(c *Config) { c.Samples = -1 }},
		{"unknown optimizer", func(c *Config) { c.Optimizer = "rmsprop" }},
		{"unknown source", func(c *Config) { c.DataSource = "cifar" }},
		{"csv without file", func(c *Config) { c.DataSource = SourceCSV }},
		{"csv size mismatch", func(c *Config) { c.DataSource, c.CSVTrainFile, c.ImageRows = SourceCSV, "x.csv", 27 }},
		{"negative neuron edges", func(c *Config) { c.NeuronEdges = -1 }},
		{"unknown schedule", func(c *Config) { c.LRSchedule = "cosine" }},
		{"step without size", func(c *Config) { c.LRSchedule, c.LRStepSize = ScheduleStep, 0 }},
		{"bad gamma", func(c *Config) { c.LRSchedule, c.LRGamma = ScheduleExponential, 0 }},
		{"plateau without patience", func(c *Config) { c.LRSchedule, c.LRPatience = SchedulePlateau, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestKLSparsity(t *testing.T) {
	c := Default()
	c.ClampMin = 1e-6
	kl := c.KLSparsity()
	assert.Equal(t, 0.05, kl.Rho)
	assert.Equal(t, 1e-6, kl.Min)
	assert.Equal(t, c.ClampMax, kl.Max)
}

func TestNewOptimizer(t *testing.T) {
	c := Default()
	assert.IsType(t, &opt.Adam{}, c.NewOptimizer())

	c.Optimizer = OptimizerSGD
	o := c.NewOptimizer()
	assert.IsType(t, &opt.SGD{}, o)
	assert.Equal(t, c.LearningRate, o.LearningRate())
}

func TestNewScheduler(t *testing.T) {
	c := Default()
	assert.Nil(t, c.NewScheduler(opt.NewSGD(1)))

	c.LRSchedule = ScheduleStep
	assert.IsType(t, &opt.StepLR{}, c.NewScheduler(opt.NewSGD(1)))

	c.LRSchedule = ScheduleExponential
	assert.IsType(t, &opt.ExponentialLR{}, c.NewScheduler(opt.NewSGD(1)))

	c.LRSchedule, c.LRPatience, c.LRCooldown = SchedulePlateau, 1, 3
	require.NoError(t, c.Validate())
	s, ok := c.NewScheduler(opt.NewSGD(1)).(*opt.ReduceLROnPlateau)
	require.True(t, ok)
	assert.Equal(t, 3, s.Cooldown)

	s.StepWithLoss(1)
	s.StepWithLoss(1)
	assert.InDelta(t, 0.5, s.GetLR(), 1e-12)
}

func TestLoadCSVSource(t *testing.T) {
	dir := t.TempDir()
	train := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(train, []byte("p0,p1,p2,p3\n0,0.5,1,0.25\n1,1,0,0\n"), 0644))

	c := Default()
	c.DataSource, c.CSVTrainFile, c.CSVHeader = SourceCSV, train, true
	c.ImageRows, c.ImageCols, c.InputDim = 2, 2, 4
	require.NoError(t, c.Validate())

	d, err := c.LoadTraining()
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []float32{0, 0.5, 1, 0.25}, d.Images[0])

	eval, err := c.LoadEvaluation()
	assert.NoError(t, err)
	assert.Nil(t, eval)

	c.CSVTestFile = train
	eval, err = c.LoadEvaluation()
	require.NoError(t, err)
	assert.Equal(t, 2, eval.Len())
}
