// Package net provides comprehensive unit tests for the sparse autoencoder.
package net

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * 3
	}
	return mat.NewDense(rows, cols, data)
}

// TestForwardShapes tests reconstruction and code shapes.
func TestForwardShapes(t *testing.T) {
	model := New(10, 3, rand.New(rand.NewSource(1)))
	recon, code := model.Forward(mat.NewDense(4, 10, nil))

	r, c := recon.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 10, c)
	r, c = code.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)

	assert.Equal(t, 10, model.InputDim())
	assert.Equal(t, 3, model.HiddenDim())
	assert.Equal(t, 10*3+3+3*10+10, model.NumParams())
}

// TestHiddenActivationNonNegative checks the code is non-negative for arbitrary inputs.
func TestHiddenActivationNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 20; trial++ {
		model := New(12, 5, rng)
		_, code := model.Forward(randomBatch(rng, 8, 12))

		r, c := code.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				require.GreaterOrEqual(t, code.At(i, j), 0.0, "trial %d code[%d,%d]", trial, i, j)
			}
		}
	}
}

func TestForwardIsPure(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	model := New(6, 2, rng)
	x := randomBatch(rng, 3, 6)

	r1, c1 := model.Forward(x)
	r2, c2 := model.Forward(x)
	assert.True(t, mat.Equal(r1, r2))
	assert.True(t, mat.Equal(c1, c2))
}

func TestParamsRoundTrip(t *testing.T) {
	model := New(4, 2, rand.New(rand.NewSource(4)))
	params := model.Params()
	for i := range params {
		params[i] = float64(i)
	}
	model.SetParams(params)
	assert.Equal(t, params, model.Params())
	assert.Equal(t, 4.0*2+2, model.Decoder().GetWeight(0, 0))

	assert.Panics(t, func() { model.SetParams(params[1:]) })
}

func TestInputWidthMismatchPanics(t *testing.T) {
	model := New(4, 2, nil)
	assert.Panics(t, func() { model.Forward(mat.NewDense(1, 5, nil)) })
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	New(784, 128, rand.New(rand.NewSource(1))).Summary(&buf)

	out := buf.String()
	assert.Contains(t, out, "encoder (Dense, ReLU)")
	assert.Contains(t, out, "decoder (Dense, Identity)")
	assert.True(t, strings.Contains(out, "Total params: 201616"), out)
}
