// Package loss provides the reconstruction and sparsity losses of a sparse autoencoder.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default clamp interval for average activations before the logarithms.
const (
	DefaultClampMin = 1e-10
	DefaultClampMax = 1 - 1e-5
)

// MSE (Mean Squared Error) loss over every element of a batch.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue *mat.Dense) float64 {
	n := sameShape("MSE", yPred, yTrue)

	rows, _ := yPred.Dims()
	var sum float64
	for r := 0; r < rows; r++ {
		pred, target := yPred.RawRowView(r), yTrue.RawRowView(r)
		for i := range pred {
			diff := pred[i] - target[i]
			sum += diff * diff
		}
	}
	return sum / float64(n)
}

// Backward computes gradient: dL/dy_pred = (2/n) * (y_pred - y_true)
// Note: Returned matrix is newly allocated.
func (m MSE) Backward(yPred, yTrue *mat.Dense) *mat.Dense {
	n := sameShape("MSE", yPred, yTrue)

	var grad mat.Dense
	grad.Sub(yPred, yTrue)
	grad.Scale(2.0/float64(n), &grad)
	return &grad
}

func sameShape(name string, a, b *mat.Dense) int {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("%s: prediction %dx%d and target %dx%d must have same shape", name, ar, ac, br, bc))
	}
	return ar * ac
}

// KLSparsity is the sum over hidden units of the KL divergence between Bernoulli(Rho)
// and Bernoulli(rho_hat_j), where rho_hat_j is the unit's mean activation.
type KLSparsity struct {
	Rho float64 // target activation, in (0, 1)

	// Clamp interval applied to rho_hat before the logarithms.
	Min, Max float64
}

// NewKLSparsity creates a sparsity penalty with the default clamp interval.
func NewKLSparsity(rho float64) KLSparsity {
	return KLSparsity{Rho: rho, Min: DefaultClampMin, Max: DefaultClampMax}
}

func (k KLSparsity) check() {
	if !(k.Rho > 0 && k.Rho < 1) {
		panic(fmt.Sprintf("KLSparsity: target %v must be in (0, 1)", k.Rho))
	}
	if !(k.Min > 0 && k.Min < k.Max && k.Max < 1) {
		panic(fmt.Sprintf("KLSparsity: clamp interval [%v, %v] must lie inside (0, 1)", k.Min, k.Max))
	}
}

func (k KLSparsity) clamp(v float64) float64 {
	return math.Min(math.Max(v, k.Min), k.Max)
}

// Forward computes sum_j rho*log(rho/c_j) + (1-rho)*log((1-rho)/(1-c_j)) with c = clamp(rho_hat).
func (k KLSparsity) Forward(rhoHat []float64) float64 {
	k.check()
	rho := k.Rho
	var sum float64
	for _, v := range rhoHat {
		c := k.clamp(v)
		sum += rho*math.Log(rho/c) + (1-rho)*math.Log((1-rho)/(1-c))
	}
	return sum
}

// Backward computes dL/d(rho_hat). Outside the clamp interval the gradient is zero.
func (k KLSparsity) Backward(rhoHat []float64) []float64 {
	k.check()
	rho := k.Rho
	grad := make([]float64, len(rhoHat))
	for i, v := range rhoHat {
		if v < k.Min || v > k.Max {
			continue
		}
		grad[i] = -rho/v + (1-rho)/(1-v)
	}
	return grad
}

// MeanActivation returns the column means of h (one entry per hidden unit).
func MeanActivation(h *mat.Dense) []float64 {
	rows, cols := h.Dims()
	mean := make([]float64, cols)
	for r := 0; r < rows; r++ {
		floats.Add(mean, h.RawRowView(r))
	}
	floats.Scale(1/float64(rows), mean)
	return mean
}

// MeanActivationBackward spreads dL/d(rho_hat) back onto each row of the batch:
// dL/dh[r, j] = grad[j] / rows.
func MeanActivationBackward(grad []float64, rows int) *mat.Dense {
	out := mat.NewDense(rows, len(grad), nil)
	scaled := make([]float64, len(grad))
	floats.ScaleTo(scaled, 1/float64(rows), grad)
	for r := 0; r < rows; r++ {
		out.SetRow(r, scaled)
	}
	return out
}
