// Package activations provides comprehensive unit tests for activation functions.
package activations

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestReLU tests the ReLU activation and its derivative.
func TestReLU(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		name      string
		input     float64
		expected  float64
		derivWant float64
	}{
		{"Positive", 2.5, 2.5, 1},
		{"Zero", 0, 0, 0},
		{"Negative", -3, 0, 0},
		{"Tiny positive", 1e-12, 1e-12, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relu.Activate(tt.input); got != tt.expected {
				t.Errorf("ReLU.Activate(%v) = %v, want %v", tt.input, got, tt.expected)
			}
			if got := relu.Derivative(tt.input); got != tt.derivWant {
				t.Errorf("ReLU.Derivative(%v) = %v, want %v", tt.input, got, tt.derivWant)
			}
		})
	}
}

// TestIdentity tests the identity activation.
func TestIdentity(t *testing.T) {
	id := Identity{}
	for _, x := range []float64{-1.5, 0, 3} {
		if id.Activate(x) != x {
			t.Errorf("Identity.Activate(%v) = %v", x, id.Activate(x))
		}
		if id.Derivative(x) != 1 {
			t.Errorf("Identity.Derivative(%v) = %v, want 1", x, id.Derivative(x))
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"ReLU", "Identity"} {
		act, ok := ByName(name)
		if !ok || act.Name() != name {
			t.Errorf("ByName(%q) = %v, %v", name, act, ok)
		}
	}
	if _, ok := ByName("Swish"); ok {
		t.Error("ByName should reject unknown activations")
	}
}

// TestApplyNonNegative checks ReLU over a matrix never yields a negative entry.
func TestApplyNonNegative(t *testing.T) {
	src := mat.NewDense(2, 3, []float64{-1, 2, -0.5, 0, math.Inf(-1), 7})
	dst := mat.NewDense(2, 3, nil)
	Apply(ReLU{}, dst, src)

	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if dst.At(i, j) < 0 {
				t.Errorf("dst[%d,%d] = %v, want >= 0", i, j, dst.At(i, j))
			}
		}
	}
	if dst.At(1, 2) != 7 {
		t.Errorf("dst[1,2] = %v, want 7", dst.At(1, 2))
	}
}

func TestMulDerivative(t *testing.T) {
	pre := mat.NewDense(1, 3, []float64{-1, 0.5, 2})
	grad := mat.NewDense(1, 3, []float64{3, 3, 3})
	MulDerivative(ReLU{}, grad, pre)

	want := []float64{0, 3, 3}
	for j, w := range want {
		if grad.At(0, j) != w {
			t.Errorf("grad[%d] = %v, want %v", j, grad.At(0, j), w)
		}
	}

	MulDerivative(Identity{}, grad, pre)
	if grad.At(0, 1) != 3 {
		t.Errorf("Identity derivative changed grad: %v", grad.At(0, 1))
	}
}
