// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/activations"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Layer is a neural network layer operating on a batch of row vectors.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []float64
	SetParams([]float64)
	Gradients() []float64
}

// Dense is a fully connected layer computing act(x·Wᵀ + b) for every row of x.
type Dense struct {
	// Shape: [out * in] where weight for output i, input j is at weights[i*in + j].
	// w is a gonum view sharing this backing slice.
	weights []float64
	biases  []float64
	w       *mat.Dense
	act     activations.Activation
	outSize int
	inSize  int

	gradW []float64
	gradB []float64
	gw    *mat.Dense

	// Cached from the last Forward for Backward
	input  *mat.Dense
	preAct *mat.Dense
}

// NewDense creates a dense layer initialised like PyTorch nn.Linear:
// weights and biases uniform in ±1/sqrt(in).
// A nil rng falls back to the math/rand global source.
func NewDense(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("Dense: invalid shape %d -> %d", in, out))
	}
	if act == nil {
		act = activations.Identity{}
	}
	float := rand.Float64
	if rng != nil {
		float = rng.Float64
	}

	weights := make([]float64, out*in)
	biases := make([]float64, out)
	bound := 1 / math.Sqrt(float64(in))
	for i := range weights {
		weights[i] = float()*2*bound - bound
	}
	for i := range biases {
		biases[i] = float()*2*bound - bound
	}

	gradW := make([]float64, out*in)
	return &Dense{
		weights: weights,
		biases:  biases,
		w:       mat.NewDense(out, in, weights),
		act:     act,
		outSize: out,
		inSize:  in,
		gradW:   gradW,
		gradB:   make([]float64, out),
		gw:      mat.NewDense(out, in, gradW),
	}
}

// Forward performs a forward pass for a batch (one sample per row).
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != d.inSize {
		panic(fmt.Sprintf("Dense: input width %d, want %d", cols, d.inSize))
	}

	d.input = mat.DenseCopyOf(x)

	preAct := mat.NewDense(rows, d.outSize, nil)
	preAct.Mul(x, d.w.T())
	for r := 0; r < rows; r++ {
		floats.Add(preAct.RawRowView(r), d.biases)
	}
	d.preAct = preAct

	out := mat.NewDense(rows, d.outSize, nil)
	activations.Apply(d.act, out, preAct)
	return out
}

// Backward takes dL/d(output) for the last Forward batch, stores the weight and bias
// gradients and returns dL/d(input).
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	if d.input == nil {
		panic("Dense: Backward called before Forward")
	}
	rows, cols := grad.Dims()
	inRows, _ := d.input.Dims()
	if rows != inRows || cols != d.outSize {
		panic(fmt.Sprintf("Dense: gradient shape %dx%d, want %dx%d", rows, cols, inRows, d.outSize))
	}

	// dz = dL/dy * act'(z)
	dz := mat.DenseCopyOf(grad)
	activations.MulDerivative(d.act, dz, d.preAct)

	// dL/dW = dzᵀ · x
	d.gw.Mul(dz.T(), d.input)

	// dL/db = column sums of dz
	for i := range d.gradB {
		d.gradB[i] = 0
	}
	for r := 0; r < rows; r++ {
		floats.Add(d.gradB, dz.RawRowView(r))
	}

	// dL/dx = dz · W
	gradIn := mat.NewDense(rows, d.inSize, nil)
	gradIn.Mul(dz, d.w)
	return gradIn
}

// Params returns all dense layer parameters flattened.
func (d *Dense) Params() []float64 {
	total := len(d.weights) + len(d.biases)
	params := make([]float64, 0, total)
	params = append(params, d.weights...)
	params = append(params, d.biases...)
	return params
}

// SetParams updates weights and biases from a flattened slice (in-place).
func (d *Dense) SetParams(params []float64) {
	if len(params) != d.NumParams() {
		panic(fmt.Sprintf("Dense: got %d params, want %d", len(params), d.NumParams()))
	}
	copy(d.weights, params[:len(d.weights)])
	copy(d.biases, params[len(d.weights):])
}

// Gradients returns all dense layer gradients flattened.
func (d *Dense) Gradients() []float64 {
	total := len(d.gradW) + len(d.gradB)
	gradients := make([]float64, 0, total)
	gradients = append(gradients, d.gradW...)
	gradients = append(gradients, d.gradB...)
	return gradients
}

// NumParams returns out*in + out.
func (d *Dense) NumParams() int {
	return len(d.weights) + len(d.biases)
}

// Weights returns the out×in weight matrix. It shares memory with the layer.
func (d *Dense) Weights() *mat.Dense {
	return d.w
}

// GetWeight gets a single weight at (row, col).
func (d *Dense) GetWeight(row, col int) float64 {
	return d.weights[row*d.inSize+col]
}

// GetBias gets a single bias.
func (d *Dense) GetBias(idx int) float64 {
	return d.biases[idx]
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}
