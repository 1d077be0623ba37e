package sparseae

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainSaveLoad(t *testing.T) {
	ds := dataset.Synthetic(32, 4, 4, rand.New(rand.NewSource(1)))
	model := New(16, 6, 1)

	graph, closeGraph := WithGraphBackend()
	defer closeGraph()

	tr := NewTrainer(model, Adam(1e-3), NewObjective(0.05, 0.1), 2, graph, WithCallbacks(EarlyStopping(5, 0)))
	history, err := tr.Fit(context.Background(), NewLoader(ds, 8, true, 2))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].Batches)

	path := filepath.Join(t.TempDir(), "ae.gob")
	require.NoError(t, model.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.Params(), loaded.Params())
}
