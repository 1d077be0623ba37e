package net

import (
	"math"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/loss"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNonFiniteLoss is returned when a step produces a NaN or infinite loss.
var ErrNonFiniteLoss = errors.New("non-finite loss")

// Objective is total = reconstruction + Beta * sparsity.
type Objective struct {
	Sparsity loss.KLSparsity
	Beta     float64
}

// NewObjective builds the objective with the default clamp interval.
func NewObjective(rho, beta float64) Objective {
	return Objective{Sparsity: loss.NewKLSparsity(rho), Beta: beta}
}

// Combine builds the step loss from its two terms.
func (o Objective) Combine(reconstruction, sparsity float64) StepLoss {
	return StepLoss{
		Total:          reconstruction + o.Beta*sparsity,
		Reconstruction: reconstruction,
		Sparsity:       sparsity,
	}
}

// Loss evaluates the objective on a batch without computing gradients.
func (o Objective) Loss(m *Autoencoder, x *mat.Dense) StepLoss {
	reconstructed, encoded := m.Forward(x)
	return o.Combine(loss.MSE{}.Forward(reconstructed, x), o.Sparsity.Forward(loss.MeanActivation(encoded)))
}

// StepLoss holds the losses of one batch.
type StepLoss struct {
	Total          float64
	Reconstruction float64
	Sparsity       float64
}

// Finite reports whether every term is a real number.
func (l StepLoss) Finite() bool {
	for _, v := range []float64{l.Total, l.Reconstruction, l.Sparsity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Backend computes the objective and its gradient with respect to the model's
// flattened parameters for one batch. It must not modify the parameters.
type Backend interface {
	Evaluate(m *Autoencoder, x *mat.Dense, obj Objective) (StepLoss, []float64, error)
}

// ManualBackend computes gradients by hand-written backpropagation through
// the two dense layers, the MSE term and the KL term.
type ManualBackend struct{}

// Evaluate implements Backend.
func (ManualBackend) Evaluate(m *Autoencoder, x *mat.Dense, obj Objective) (StepLoss, []float64, error) {
	mse := loss.MSE{}
	reconstructed, encoded := m.Forward(x)

	rhoHat := loss.MeanActivation(encoded)
	l := obj.Combine(mse.Forward(reconstructed, x), obj.Sparsity.Forward(rhoHat))
	if !l.Finite() {
		return l, nil, errors.Wrapf(ErrNonFiniteLoss, "total=%v reconstruction=%v sparsity=%v",
			l.Total, l.Reconstruction, l.Sparsity)
	}

	gradSparsity := obj.Sparsity.Backward(rhoHat)
	floats.Scale(obj.Beta, gradSparsity)
	rows, _ := x.Dims()

	m.Backward(mse.Backward(reconstructed, x), loss.MeanActivationBackward(gradSparsity, rows))
	return l, m.Gradients(), nil
}
