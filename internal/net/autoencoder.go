// Package net provides the sparse autoencoder model and its training loop.
package net

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/activations"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/layer"
	"gonum.org/v1/gonum/mat"
)

// Autoencoder is an encoder/decoder pair of dense layers.
// The encoder applies ReLU so the hidden code is never negative; the decoder is affine.
type Autoencoder struct {
	encoder *layer.Dense
	decoder *layer.Dense
}

// New creates an autoencoder mapping inputDim -> hiddenDim -> inputDim.
func New(inputDim, hiddenDim int, rng *rand.Rand) *Autoencoder {
	return &Autoencoder{
		encoder: layer.NewDense(inputDim, hiddenDim, activations.ReLU{}, rng),
		decoder: layer.NewDense(hiddenDim, inputDim, activations.Identity{}, rng),
	}
}

// Forward runs a batch (one flattened image per row) through both layers.
func (a *Autoencoder) Forward(x *mat.Dense) (reconstructed, encoded *mat.Dense) {
	encoded = a.Encode(x)
	reconstructed = a.Decode(encoded)
	return reconstructed, encoded
}

// Encode returns the hidden code for x.
func (a *Autoencoder) Encode(x *mat.Dense) *mat.Dense {
	return a.encoder.Forward(x)
}

// Decode maps hidden codes back to input space.
func (a *Autoencoder) Decode(h *mat.Dense) *mat.Dense {
	return a.decoder.Forward(h)
}

// Backward propagates dL/d(reconstruction) and an optional extra dL/d(encoded)
// (the sparsity term) through the last Forward batch, leaving layer gradients set.
func (a *Autoencoder) Backward(gradRecon, gradEncoded *mat.Dense) {
	gradHidden := a.decoder.Backward(gradRecon)
	if gradEncoded != nil {
		gradHidden.Add(gradHidden, gradEncoded)
	}
	a.encoder.Backward(gradHidden)
}

// Params returns all parameters flattened: encoder W, encoder b, decoder W, decoder b.
func (a *Autoencoder) Params() []float64 {
	params := make([]float64, 0, a.NumParams())
	for _, l := range a.Layers() {
		params = append(params, l.Params()...)
	}
	return params
}

// SetParams loads a flattened parameter vector in Params order.
func (a *Autoencoder) SetParams(params []float64) {
	if len(params) != a.NumParams() {
		panic(fmt.Sprintf("Autoencoder: got %d params, want %d", len(params), a.NumParams()))
	}
	offset := 0
	for _, l := range a.Layers() {
		n := l.NumParams()
		l.SetParams(params[offset : offset+n])
		offset += n
	}
}

// Gradients returns the gradients of the last Backward, flattened in Params order.
func (a *Autoencoder) Gradients() []float64 {
	grads := make([]float64, 0, a.NumParams())
	for _, l := range a.Layers() {
		grads = append(grads, l.Gradients()...)
	}
	return grads
}

// NumParams returns the total parameter count.
func (a *Autoencoder) NumParams() int {
	return a.encoder.NumParams() + a.decoder.NumParams()
}

// Layers returns encoder and decoder in order.
func (a *Autoencoder) Layers() []*layer.Dense {
	return []*layer.Dense{a.encoder, a.decoder}
}

func (a *Autoencoder) Encoder() *layer.Dense { return a.encoder }
func (a *Autoencoder) Decoder() *layer.Dense { return a.decoder }

// InputDim returns the flattened image size.
func (a *Autoencoder) InputDim() int { return a.encoder.InSize() }

// HiddenDim returns the size of the sparse code.
func (a *Autoencoder) HiddenDim() int { return a.encoder.OutSize() }

// Summary prints a summary of the model architecture.
func (a *Autoencoder) Summary(w io.Writer) {
	fmt.Fprintln(w, "Model: SparseAutoencoder")
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, "=================================================================")

	names := []string{"encoder", "decoder"}
	for i, l := range a.Layers() {
		name := fmt.Sprintf("%s (Dense, %s)", names[i], l.Activation().Name())
		fmt.Fprintf(w, "%-25s %-20s %-10d\n", name, fmt.Sprintf("(%d)", l.OutSize()), l.NumParams())
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", a.NumParams())
	fmt.Fprintln(w, "_________________________________________________________________")
}
