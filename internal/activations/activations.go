// Package activations provides the element-wise non-linearities used by the autoencoder.
package activations

import "gonum.org/v1/gonum/mat"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation value
	Derivative(x float64) float64

	// Name identifies the activation in saved parameter files.
	Name() string
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Name() string { return "ReLU" }

// Identity passes values through unchanged. The decoder uses it so reconstructions
// can cover the normalized [-1, 1] pixel range.
type Identity struct{}

// Activate returns x
func (Identity) Activate(x float64) float64 { return x }

// Derivative returns 1
func (Identity) Derivative(x float64) float64 { return 1 }

func (Identity) Name() string { return "Identity" }

// ByName returns the activation registered under name.
func ByName(name string) (Activation, bool) {
	switch name {
	case "ReLU":
		return ReLU{}, true
	case "Identity", "":
		return Identity{}, true
	}
	return nil, false
}

// Apply writes act(src) into dst element-wise. dst and src may be the same matrix.
func Apply(act Activation, dst, src *mat.Dense) {
	dst.Apply(func(_, _ int, v float64) float64 {
		return act.Activate(v)
	}, src)
}

// MulDerivative multiplies grad in place by act'(preAct) element-wise.
func MulDerivative(act Activation, grad, preAct *mat.Dense) {
	if _, ok := act.(Identity); ok {
		return
	}
	grad.Apply(func(i, j int, g float64) float64 {
		return g * act.Derivative(preAct.At(i, j))
	}, grad)
}
