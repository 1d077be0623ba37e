package viz

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// ArchitectureDOT describes the autoencoder as a Graphviz digraph:
// input -> encoder -> ReLU -> code -> decoder -> reconstruction.
func ArchitectureDOT(m *net.Autoencoder) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("SparseAutoencoder"); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.AddAttr("SparseAutoencoder", "rankdir", "LR"); err != nil {
		return "", errors.WithStack(err)
	}

	enc, dec := m.Encoder(), m.Decoder()
	nodes := []struct {
		id, label, shape string
	}{
		{"input", fmt.Sprintf("input\\n%d", m.InputDim()), "box"},
		{"encoder", fmt.Sprintf("encoder\\nDense %d→%d\\n%d params", enc.InSize(), enc.OutSize(), enc.NumParams()), "box"},
		{"relu", enc.Activation().Name(), "ellipse"},
		{"code", fmt.Sprintf("code\\n%d", m.HiddenDim()), "box"},
		{"decoder", fmt.Sprintf("decoder\\nDense %d→%d\\n%d params", dec.InSize(), dec.OutSize(), dec.NumParams()), "box"},
		{"output", fmt.Sprintf("reconstruction\\n%d", m.InputDim()), "box"},
	}

	for i, n := range nodes {
		attrs := map[string]string{
			"shape":    n.shape,
			"fontname": "Monaco",
			"label":    `"` + n.label + `"`,
		}
		if err := g.AddNode("SparseAutoencoder", n.id, attrs); err != nil {
			return "", errors.WithStack(err)
		}
		if i == 0 {
			continue
		}
		if err := g.AddEdge(nodes[i-1].id, n.id, true, nil); err != nil {
			return "", errors.WithStack(err)
		}
	}
	return g.String(), nil
}
