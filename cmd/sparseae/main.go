package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/autodiff"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/config"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/viz"
	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sparse autoencoder: train, save the parameters, then render reconstructions
// of the first shuffled training batch along with its per-neuron activations.
func main() {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("=== Sparse Autoencoder ===")
	fmt.Printf("CPU: %s (%d cores, %d threads, AVX2=%v)\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.Supports(cpuid.AVX2))

	rng := rand.New(rand.NewSource(cfg.Seed))

	train, err := cfg.LoadTraining()
	if err != nil {
		log.Fatalf("load training data: %v", err)
	}
	train.Normalize(cfg.NormMean, cfg.NormStd)
	if train.Dim() != cfg.InputDim {
		log.Fatalf("training images have %d pixels, model expects %d", train.Dim(), cfg.InputDim)
	}
	lo, hi := train.Range()
	fmt.Printf("Loaded %d %s training images (%dx%d), range [%.2f, %.2f]\n",
		train.Len(), cfg.DataSource, train.Rows, train.Cols, lo, hi)

	loader := dataset.NewLoader(train, cfg.BatchSize, cfg.Shuffle, rng)

	model := net.New(cfg.InputDim, cfg.HiddenDim, rng)
	model.Summary(os.Stdout)

	optimizer := cfg.NewOptimizer()
	objective := net.Objective{Sparsity: cfg.KLSparsity(), Beta: cfg.Beta}

	callbacks := []net.Callback{net.Logger{Out: os.Stdout}}
	if cfg.CSVLogFile != "" {
		callbacks = append(callbacks, net.NewCSVLogger(cfg.CSVLogFile, false))
	}
	if sched := cfg.NewScheduler(optimizer); sched != nil {
		callbacks = append(callbacks, net.NewSchedulerCallback(sched))
	}

	opts := []net.TrainerOption{net.WithCallbacks(callbacks...)}
	if cfg.Backend == config.BackendAutodiff {
		b := autodiff.New()
		defer b.Close()
		opts = append(opts, net.WithBackend(b))
	}

	fmt.Printf("Training for %d epochs, %d batches per epoch (%s backend, %s, lr schedule %s)...\n",
		cfg.Epochs, loader.NumBatches(), cfg.Backend, cfg.Optimizer, cfg.LRSchedule)
	trainer := net.NewTrainer(model, optimizer, objective, cfg.Epochs, opts...)
	history, err := trainer.Fit(context.Background(), loader)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	if err := model.Save(cfg.ParamsFile); err != nil {
		log.Fatalf("save parameters: %v", err)
	}
	fmt.Printf("Model parameters saved to %s\n", cfg.ParamsFile)

	if err := evaluate(cfg, trainer); err != nil {
		log.Printf("evaluation: %v", err)
	}

	if cfg.LossPlotFile != "" {
		if err := viz.SaveLossPlot(history, cfg.LossPlotFile); err != nil {
			log.Printf("loss plot: %v", err)
		}
	}
	if cfg.DotFile != "" {
		if dot, err := viz.ArchitectureDOT(model); err != nil {
			log.Printf("architecture graph: %v", err)
		} else if err := writeFile(cfg.DotFile, dot); err != nil {
			log.Printf("architecture graph: %v", err)
		}
	}
	if cfg.FiltersFile != "" {
		if err := saveFilters(cfg, train, model); err != nil {
			log.Printf("encoder filters: %v", err)
		}
	}

	batch, err := sampleBatch(train, cfg.BatchSize, rng)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Samples > 0 {
		if err := saveGrid(cfg, train, model, batch); err != nil {
			log.Fatalf("visualize: %v", err)
		}
		fmt.Printf("Reconstructions written to %s\n", cfg.ImageFile)
	}
	if err := inspect(cfg, model, batch); err != nil {
		log.Printf("neuron view: %v", err)
	}
}

func evaluate(cfg config.Config, trainer *net.Trainer) error {
	held, err := cfg.LoadEvaluation()
	if err != nil || held == nil {
		return err
	}
	held.Normalize(cfg.NormMean, cfg.NormStd)
	stats, err := trainer.Evaluate(context.Background(), dataset.NewLoader(held, cfg.BatchSize, false, nil))
	if err != nil {
		return err
	}
	if stats.Batches == 0 {
		return errors.New("no held-out images")
	}
	n := float64(stats.Batches)
	fmt.Printf("Held-out loss over %d images: total %.4f, reconstruction %.4f, sparsity %.4f\n",
		held.Len(), stats.Total/n, stats.Reconstruction/n, stats.Sparsity/n)
	return nil
}

// sampleBatch returns the first batch of a freshly shuffled pass over ds.
func sampleBatch(ds *dataset.Dataset, batchSize int, rng *rand.Rand) (dataset.Batch, error) {
	batch, ok := dataset.NewLoader(ds, batchSize, true, rng).Next()
	if !ok {
		return dataset.Batch{}, errors.New("empty training set")
	}
	return batch, nil
}

func saveGrid(cfg config.Config, ds *dataset.Dataset, model *net.Autoencoder, batch dataset.Batch) error {
	reconstructed, _ := model.Forward(batch.X)
	img, err := viz.NewGrid(ds.Cols, ds.Rows).Render(rows(batch.X), rows(reconstructed), cfg.Samples)
	if err != nil {
		return err
	}
	return viz.SavePNG(cfg.ImageFile, img)
}

func saveFilters(cfg config.Config, ds *dataset.Dataset, model *net.Autoencoder) error {
	g := viz.NewGrid(ds.Cols, ds.Rows)
	g.Title = viz.FiltersTitle
	img, err := g.RenderTiles(viz.WeightFilters(model), 16)
	if err != nil {
		return err
	}
	if err := viz.SavePNG(cfg.FiltersFile, img); err != nil {
		return err
	}
	fmt.Printf("Encoder filters written to %s\n", cfg.FiltersFile)
	return nil
}

func inspect(cfg config.Config, model *net.Autoencoder, batch dataset.Batch) error {
	state := viz.Snapshot(model, batch.X)
	info, err := state.Neuron(viz.LayerHidden, floats.MaxIdx(state.Hidden))
	if err != nil {
		return err
	}
	fmt.Printf("Most active hidden unit:\n%s\n", info)
	conns, err := state.Strongest(viz.LayerEncoder, info.Index, 1)
	if err != nil {
		return err
	}
	for _, c := range conns {
		fmt.Printf("Strongest input:\n%s\n", c)
	}

	if cfg.NeuronFile == "" {
		return nil
	}
	dot, err := state.DOT(cfg.NeuronEdges)
	if err != nil {
		return err
	}
	if err := writeFile(cfg.NeuronFile, dot); err != nil {
		return err
	}
	fmt.Printf("Neuron graph written to %s\n", cfg.NeuronFile)
	return nil
}

func writeFile(path, content string) error {
	return errors.Wrapf(os.WriteFile(path, []byte(content), 0644), "write %s", path)
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
