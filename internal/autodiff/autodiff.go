// Package autodiff computes the sparse autoencoder objective and its gradients
// with a Gorgonia expression graph instead of hand-written backpropagation.
package autodiff

import (
	"math"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float64

// Backend implements net.Backend. Graphs are compiled once per batch size.
// It is not safe for concurrent use.
type Backend struct {
	graphs map[int]*graph
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{graphs: make(map[int]*graph)}
}

// Evaluate implements net.Backend.
func (b *Backend) Evaluate(m *net.Autoencoder, x *mat.Dense, obj net.Objective) (net.StepLoss, []float64, error) {
	rows, cols := x.Dims()
	if cols != m.InputDim() {
		return net.StepLoss{}, nil, errors.Wrapf(net.ErrShape, "batch width %d, model input %d", cols, m.InputDim())
	}

	gr, ok := b.graphs[rows]
	if !ok || !gr.matches(m, obj) {
		if ok {
			gr.close()
		}
		var err error
		if gr, err = build(rows, m.InputDim(), m.HiddenDim(), obj); err != nil {
			return net.StepLoss{}, nil, err
		}
		b.graphs[rows] = gr
	}
	return gr.run(m, x)
}

// Close releases every compiled graph.
func (b *Backend) Close() error {
	var first error
	for k, gr := range b.graphs {
		if err := gr.close(); err != nil && first == nil {
			first = err
		}
		delete(b.graphs, k)
	}
	return first
}

type graph struct {
	g                 *G.ExprGraph
	vm                G.VM
	batch, in, hidden int
	obj               net.Objective

	x      *G.Node
	xT     *tensor.Dense
	params G.Nodes // encoder w, encoder b, decoder w, decoder b
	values []*tensor.Dense

	total, reconstruction, sparsity G.Value
}

func (gr *graph) matches(m *net.Autoencoder, obj net.Objective) bool {
	return gr.in == m.InputDim() && gr.hidden == m.HiddenDim() && gr.obj == obj
}

// build expresses total = mean((x̂-x)²) + β·Σ KL(ρ‖clamp(mean_b h)) with
// h = relu(x·Weᵀ + 1·be) and x̂ = h·Wdᵀ + 1·bd.
func build(batch, in, hidden int, obj net.Objective) (*graph, error) {
	g := G.NewGraph()
	gr := &graph{g: g, batch: batch, in: in, hidden: hidden, obj: obj}

	gr.xT = tensor.New(tensor.WithShape(batch, in), tensor.Of(tensor.Float64))
	gr.x = G.NewMatrix(g, Float, G.WithShape(batch, in), G.WithName("x"), G.WithValue(gr.xT))

	onesData := make([]float64, batch)
	for i := range onesData {
		onesData[i] = 1
	}
	ones := G.NewMatrix(g, Float, G.WithShape(batch, 1), G.WithName("ones"),
		G.WithValue(tensor.New(tensor.WithShape(batch, 1), tensor.WithBacking(onesData))))

	shapes := [][2]int{{hidden, in}, {1, hidden}, {in, hidden}, {1, in}}
	names := []string{"encoder_w", "encoder_b", "decoder_w", "decoder_b"}
	for i, s := range shapes {
		v := tensor.New(tensor.WithShape(s[0], s[1]), tensor.Of(tensor.Float64))
		gr.values = append(gr.values, v)
		gr.params = append(gr.params, G.NewMatrix(g, Float, G.WithShape(s[0], s[1]), G.WithName(names[i]), G.WithValue(v)))
	}

	var m maebe
	h := m.rectify(m.linear(gr.x, ones, gr.params[0], gr.params[1]))
	recon := m.linear(h, ones, gr.params[2], gr.params[3])

	mse := m.do(func() (*G.Node, error) { return G.Sub(recon, gr.x) })
	mse = m.do(func() (*G.Node, error) { return G.Square(mse) })
	mse = m.do(func() (*G.Node, error) { return G.Mean(mse) })

	kl := m.kl(h, obj)
	beta := G.NewConstant(obj.Beta, G.WithName("beta"))
	weighted := m.do(func() (*G.Node, error) { return G.Mul(beta, kl) })
	total := m.do(func() (*G.Node, error) { return G.Add(mse, weighted) })
	if m.err != nil {
		return nil, errors.Wrap(m.err, "build graph")
	}

	G.Read(total, &gr.total)
	G.Read(mse, &gr.reconstruction)
	G.Read(kl, &gr.sparsity)

	if _, err := G.Grad(total, gr.params...); err != nil {
		return nil, errors.Wrap(err, "differentiate graph")
	}
	gr.vm = G.NewTapeMachine(g, G.BindDualValues(gr.params...))
	return gr, nil
}

func (gr *graph) run(m *net.Autoencoder, x *mat.Dense) (net.StepLoss, []float64, error) {
	params := m.Params()
	offset := 0
	for i, v := range gr.values {
		data := v.Data().([]float64)
		copy(data, params[offset:offset+len(data)])
		offset += len(data)
		if err := G.Let(gr.params[i], v); err != nil {
			return net.StepLoss{}, nil, errors.Wrapf(err, "bind %v", gr.params[i].Name())
		}
	}

	xData := gr.xT.Data().([]float64)
	for r := 0; r < gr.batch; r++ {
		copy(xData[r*gr.in:(r+1)*gr.in], x.RawRowView(r))
	}
	if err := G.Let(gr.x, gr.xT); err != nil {
		return net.StepLoss{}, nil, errors.Wrap(err, "bind input")
	}

	defer gr.vm.Reset()
	if err := gr.vm.RunAll(); err != nil {
		return net.StepLoss{}, nil, errors.Wrap(err, "run graph")
	}

	l := net.StepLoss{
		Total:          scalar(gr.total),
		Reconstruction: scalar(gr.reconstruction),
		Sparsity:       scalar(gr.sparsity),
	}
	if !l.Finite() {
		return l, nil, errors.Wrapf(net.ErrNonFiniteLoss, "total=%v reconstruction=%v sparsity=%v",
			l.Total, l.Reconstruction, l.Sparsity)
	}

	grads := make([]float64, 0, len(params))
	for _, n := range gr.params {
		gv, err := n.Grad()
		if err != nil {
			return l, nil, errors.Wrapf(err, "gradient of %v", n.Name())
		}
		grads = append(grads, gv.Data().([]float64)...)
		if t, ok := gv.(tensor.Tensor); ok {
			t.Zero()
		}
	}
	return l, grads, nil
}

func (gr *graph) close() error {
	if gr.vm == nil {
		return nil
	}
	return gr.vm.Close()
}

func scalar(v G.Value) float64 {
	if v == nil {
		return math.NaN()
	}
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		if len(d) == 1 {
			return d[0]
		}
	}
	return math.NaN()
}
