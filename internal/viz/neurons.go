package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/layer"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/loss"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Neuron layers and connection layers understood by NetworkState.
const (
	LayerInput   = "input"
	LayerHidden  = "hidden"
	LayerOutput  = "output"
	LayerEncoder = "encoder"
	LayerDecoder = "decoder"
)

// NetworkState is the mean activation of every neuron of a model over one batch.
type NetworkState struct {
	Input  []float64
	Hidden []float64
	Output []float64

	model *net.Autoencoder
}

// Snapshot runs x through m and records per-neuron mean activations.
func Snapshot(m *net.Autoencoder, x *mat.Dense) *NetworkState {
	recon, code := m.Forward(x)
	return &NetworkState{
		Input:  loss.MeanActivation(x),
		Hidden: loss.MeanActivation(code),
		Output: loss.MeanActivation(recon),
		model:  m,
	}
}

// NeuronInfo describes one neuron. Input neurons have no bias.
type NeuronInfo struct {
	Layer   string
	Index   int
	Value   float64
	Bias    float64
	HasBias bool
}

func (n NeuronInfo) String() string {
	s := fmt.Sprintf("Neuron Info\nLayer: %s\nIndex: %d\nValue: %.4f", n.Layer, n.Index, n.Value)
	if n.HasBias {
		s += fmt.Sprintf("\nBias: %.4f", n.Bias)
	}
	return s
}

// ConnectionInfo describes one weight between two neurons.
type ConnectionInfo struct {
	Layer  string
	Source int
	Target int
	Weight float64
}

func (c ConnectionInfo) String() string {
	return fmt.Sprintf("Connection Info\nLayer: %s\nSource → Target: %d → %d\nWeight: %.4f",
		c.Layer, c.Source, c.Target, c.Weight)
}

// Neuron returns the recorded activation of neuron index in layer.
func (s *NetworkState) Neuron(layer string, index int) (NeuronInfo, error) {
	values, err := s.values(layer)
	if err != nil {
		return NeuronInfo{}, err
	}
	if index < 0 || index >= len(values) {
		return NeuronInfo{}, errors.Errorf("viz: %s neuron %d out of range [0, %d)", layer, index, len(values))
	}
	info := NeuronInfo{Layer: layer, Index: index, Value: values[index]}
	switch layer {
	case LayerHidden:
		info.Bias, info.HasBias = s.model.Encoder().GetBias(index), true
	case LayerOutput:
		info.Bias, info.HasBias = s.model.Decoder().GetBias(index), true
	}
	return info, nil
}

// Connection returns the weight from source to target in the encoder or decoder.
func (s *NetworkState) Connection(name string, source, target int) (ConnectionInfo, error) {
	var d *layer.Dense
	switch name {
	case LayerEncoder:
		d = s.model.Encoder()
	case LayerDecoder:
		d = s.model.Decoder()
	default:
		return ConnectionInfo{}, errors.Errorf("viz: unknown connection layer %q", name)
	}
	if source < 0 || source >= d.InSize() || target < 0 || target >= d.OutSize() {
		return ConnectionInfo{}, errors.Errorf("viz: %s connection %d → %d out of range %d→%d",
			name, source, target, d.InSize(), d.OutSize())
	}
	return ConnectionInfo{Layer: name, Source: source, Target: target, Weight: d.GetWeight(target, source)}, nil
}

// Strongest returns the k incoming connections of target with the largest |weight|,
// strongest first.
func (s *NetworkState) Strongest(layer string, target, k int) ([]ConnectionInfo, error) {
	var in int
	switch layer {
	case LayerEncoder:
		in = s.model.InputDim()
	case LayerDecoder:
		in = s.model.HiddenDim()
	default:
		return nil, errors.Errorf("viz: unknown connection layer %q", layer)
	}

	conns := make([]ConnectionInfo, 0, in)
	for src := 0; src < in; src++ {
		c, err := s.Connection(layer, src, target)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	sort.SliceStable(conns, func(i, j int) bool {
		return math.Abs(conns[i].Weight) > math.Abs(conns[j].Weight)
	})
	if k < len(conns) {
		conns = conns[:k]
	}
	return conns, nil
}

func (s *NetworkState) values(layer string) ([]float64, error) {
	switch layer {
	case LayerInput:
		return s.Input, nil
	case LayerHidden:
		return s.Hidden, nil
	case LayerOutput:
		return s.Output, nil
	}
	return nil, errors.Errorf("viz: unknown neuron layer %q", layer)
}

// DOT draws one node per neuron, shaded by its activation, and the edgesPerNeuron
// strongest incoming connections of every hidden and output neuron. Edge width
// follows |weight|; positive weights are blue and negative ones red.
func (s *NetworkState) DOT(edgesPerNeuron int) (string, error) {
	const name = "Neurons"
	g := gographviz.NewGraph()
	if err := g.SetName(name); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.AddAttr(name, "rankdir", "LR"); err != nil {
		return "", errors.WithStack(err)
	}

	layers := []struct {
		layer, prefix string
	}{
		{LayerInput, "in"},
		{LayerHidden, "h"},
		{LayerOutput, "out"},
	}
	for _, l := range layers {
		cluster := "cluster_" + l.layer
		if err := g.AddSubGraph(name, cluster, map[string]string{
			"label": `"` + l.layer + `"`,
			"rank":  "same",
		}); err != nil {
			return "", errors.WithStack(err)
		}
		values, _ := s.values(l.layer)
		lo, hi := floats.Min(values), floats.Max(values)
		for i, v := range values {
			info, _ := s.Neuron(l.layer, i)
			attrs := map[string]string{
				"shape":     "circle",
				"style":     "filled",
				"fillcolor": `"` + shade(v, lo, hi) + `"`,
				"label":     fmt.Sprintf(`"%s%d\n%.4f"`, l.prefix, i, v),
				"tooltip":   `"` + strings.ReplaceAll(info.String(), "\n", `\n`) + `"`,
			}
			if err := g.AddNode(cluster, fmt.Sprintf("%s%d", l.prefix, i), attrs); err != nil {
				return "", errors.WithStack(err)
			}
		}
	}

	edges := []struct {
		layer                string
		targets              int
		srcPrefix, dstPrefix string
	}{
		{LayerEncoder, s.model.HiddenDim(), "in", "h"},
		{LayerDecoder, s.model.InputDim(), "h", "out"},
	}
	for _, e := range edges {
		var conns []ConnectionInfo
		for target := 0; target < e.targets; target++ {
			strongest, err := s.Strongest(e.layer, target, edgesPerNeuron)
			if err != nil {
				return "", err
			}
			conns = append(conns, strongest...)
		}
		var maxW float64
		for _, c := range conns {
			maxW = math.Max(maxW, math.Abs(c.Weight))
		}
		for _, c := range conns {
			color := "blue"
			if c.Weight < 0 {
				color = "red"
			}
			width := 0.5
			if maxW > 0 {
				width += 2.5 * math.Abs(c.Weight) / maxW
			}
			attrs := map[string]string{
				"color":    color,
				"penwidth": fmt.Sprintf("%.2f", width),
				"tooltip":  `"` + strings.ReplaceAll(c.String(), "\n", `\n`) + `"`,
			}
			src := fmt.Sprintf("%s%d", e.srcPrefix, c.Source)
			dst := fmt.Sprintf("%s%d", e.dstPrefix, c.Target)
			if err := g.AddEdge(src, dst, true, attrs); err != nil {
				return "", errors.WithStack(err)
			}
		}
	}
	return g.String(), nil
}

// shade maps v in [lo, hi] to a blue of increasing lightness.
func shade(v, lo, hi float64) string {
	t := 0.0
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	light := 0.3 + 0.7*t
	return fmt.Sprintf("#%02x%02x%02x", uint8(255*light*0.4), uint8(255*light*0.7), uint8(255*light))
}

// WeightFilters returns one image per hidden unit: the unit's encoder weight row.
func WeightFilters(m *net.Autoencoder) [][]float64 {
	w := m.Encoder().Weights()
	filters := make([][]float64, m.HiddenDim())
	for j := range filters {
		filters[j] = mat.Row(nil, j, w)
	}
	return filters
}
