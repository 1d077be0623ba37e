// Package loss provides comprehensive unit tests for loss functions.
package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// TestMSEForward tests MSE forward pass.
func TestMSEForward(t *testing.T) {
	mse := MSE{}

	tests := []struct {
		name     string
		yPred    []float64
		yTrue    []float64
		expected float64
	}{
		{"Perfect prediction", []float64{1.0, 2.0, 3.0, 4.0}, []float64{1.0, 2.0, 3.0, 4.0}, 0.0},
		{"Single error", []float64{1.0, 2.0, 0, 0}, []float64{1.5, 2.0, 0, 0}, 0.0625}, // 0.25 / 4
		{"Multiple errors", []float64{1.0, 2.0, 3.0, 4.0}, []float64{0.0, 1.0, 2.0, 3.0}, 1.0},
		{"Large errors", []float64{10.0, 0, 0, 0}, []float64{0.0, 0, 0, 0}, 25.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := mat.NewDense(2, 2, tt.yPred)
			target := mat.NewDense(2, 2, tt.yTrue)
			result := mse.Forward(pred, target)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("MSE.Forward() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestMSEZeroOnlyWhenEqual checks reconstruction loss is zero iff output equals input.
func TestMSEZeroOnlyWhenEqual(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{0.1, -0.2, 0.3, 0.4, 0.5, -0.6})
	assert.Equal(t, 0.0, MSE{}.Forward(x, mat.DenseCopyOf(x)))

	y := mat.DenseCopyOf(x)
	y.Set(1, 2, y.At(1, 2)+1e-9)
	assert.Greater(t, MSE{}.Forward(x, y), 0.0)
}

// TestMSEForwardShapeMismatch tests error handling.
func TestMSEForwardShapeMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for shape mismatch")
		}
	}()
	MSE{}.Forward(mat.NewDense(1, 2, nil), mat.NewDense(2, 1, nil))
}

// TestMSEBackward tests MSE backward pass.
func TestMSEBackward(t *testing.T) {
	pred := mat.NewDense(1, 2, []float64{1.0, 2.0})
	target := mat.NewDense(1, 2, []float64{1.5, 2.0})

	grad := MSE{}.Backward(pred, target)
	// 2*(p-y)/n
	assert.InDelta(t, -0.5, grad.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, grad.At(0, 1), 1e-12)
}

// TestKLSparsityNonNegative covers the divergence over a range of activations.
func TestKLSparsityNonNegative(t *testing.T) {
	kl := NewKLSparsity(0.05)

	tests := []struct {
		name   string
		rhoHat []float64
	}{
		{"Dead units", []float64{0, 0, 0}},
		{"Saturated units", []float64{1, 3.5}},
		{"Mixed", []float64{0.01, 0.05, 0.2, 0.9}},
		{"Near target", []float64{0.0501, 0.0499}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := kl.Forward(tt.rhoHat)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "divergence must be finite, got %v", v)
			assert.GreaterOrEqual(t, v, 0.0)
		})
	}
}

// TestKLSparsityZeroAtTarget checks KL(rho || rho) == 0.
func TestKLSparsityZeroAtTarget(t *testing.T) {
	for _, rho := range []float64{0.01, 0.05, 0.5, 0.9} {
		kl := NewKLSparsity(rho)
		assert.InDelta(t, 0.0, kl.Forward([]float64{rho, rho, rho, rho}), 1e-12, "rho=%v", rho)
	}
}

// TestKLSparsityKnownValue checks a single unit against the closed form.
func TestKLSparsityKnownValue(t *testing.T) {
	kl := NewKLSparsity(0.05)
	want := 0.05*math.Log(0.05/0.2) + 0.95*math.Log(0.95/0.8)
	assert.InDelta(t, want, kl.Forward([]float64{0.2}), 1e-12)
}

// TestKLSparsityClamp checks clamped activations give the same value as the bounds.
func TestKLSparsityClamp(t *testing.T) {
	kl := NewKLSparsity(0.05)
	assert.Equal(t, kl.Forward([]float64{kl.Min}), kl.Forward([]float64{0}))
	assert.Equal(t, kl.Forward([]float64{kl.Max}), kl.Forward([]float64{2}))

	grad := kl.Backward([]float64{0, 2})
	assert.Equal(t, []float64{0, 0}, grad, "gradient must vanish outside the clamp interval")
}

// TestKLSparsityBackwardFiniteDifference compares the analytic gradient with fd.Gradient.
func TestKLSparsityBackwardFiniteDifference(t *testing.T) {
	kl := NewKLSparsity(0.1)
	rhoHat := []float64{0.02, 0.1, 0.3, 0.75}

	want := fd.Gradient(nil, kl.Forward, rhoHat, &fd.Settings{Formula: fd.Central, Step: 1e-7})
	got := kl.Backward(rhoHat)

	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "grad[%d]", i)
	}
}

func TestKLSparsityInvalidTarget(t *testing.T) {
	for _, rho := range []float64{0, 1, -0.5, math.NaN()} {
		assert.Panics(t, func() { NewKLSparsity(rho).Forward([]float64{0.5}) }, "rho=%v", rho)
	}
}

func TestMeanActivation(t *testing.T) {
	h := mat.NewDense(2, 3, []float64{
		0, 1, 2,
		2, 3, 0,
	})
	assert.Equal(t, []float64{1, 2, 1}, MeanActivation(h))

	back := MeanActivationBackward([]float64{4, -2, 0}, 2)
	r, c := back.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 3, c)
	assert.Equal(t, []float64{2, -1, 0}, back.RawRowView(1))
}
