// Package opt provides optimization algorithms.
package opt

import (
	"fmt"
	"math"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// StepInPlace updates params in-place from their gradients.
	StepInPlace(params, gradients []float64)

	// LearningRate returns the current step size.
	LearningRate() float64

	// SetLearningRate changes the step size, used by schedulers.
	SetLearningRate(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LR float64
}

// NewSGD creates a plain gradient descent optimizer.
func NewSGD(learningRate float64) *SGD {
	return &SGD{LR: learningRate}
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s *SGD) StepInPlace(params, gradients []float64) {
	checkLen("SGD", params, gradients)
	for i := range params {
		params[i] -= s.LR * gradients[i]
	}
}

func (s *SGD) LearningRate() float64      { return s.LR }
func (s *SGD) SetLearningRate(lr float64) { s.LR = lr }

// Adam optimizer with bias-corrected moment estimates.
// PyTorch reference: torch.optim.Adam(betas=(0.9, 0.999), eps=1e-8)
type Adam struct {
	LR      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	m, v []float64
	t    int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LR:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
	}
}

// StepInPlace updates params in-place using Adam.
// Moment buffers are sized on the first call; the parameter vector must keep
// the same length afterwards.
func (a *Adam) StepInPlace(params, gradients []float64) {
	checkLen("Adam", params, gradients)
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	if len(a.m) != len(params) {
		panic(fmt.Sprintf("Adam: parameter count changed from %d to %d", len(a.m), len(params)))
	}

	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, g := range gradients {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		params[i] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

func (a *Adam) LearningRate() float64      { return a.LR }
func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }

// Steps returns how many updates have been applied.
func (a *Adam) Steps() int { return a.t }

// Reset clears the moment estimates.
func (a *Adam) Reset() {
	a.m, a.v, a.t = nil, nil, 0
}

func checkLen(name string, params, gradients []float64) {
	if len(params) != len(gradients) {
		panic(fmt.Sprintf("%s: %d params but %d gradients", name, len(params), len(gradients)))
	}
}
