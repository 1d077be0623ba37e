package viz

import (
	"image/color"
	"io"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var lossColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

// LossPlot builds a line chart of the total, reconstruction and sparsity loss per epoch.
func LossPlot(history []net.EpochStats) (*plot.Plot, error) {
	if len(history) == 0 {
		return nil, errors.New("viz: empty training history")
	}

	series := []struct {
		name string
		pick func(net.EpochStats) float64
	}{
		{"Total", func(s net.EpochStats) float64 { return s.Total }},
		{"Reconstruction", func(s net.EpochStats) float64 { return s.Reconstruction }},
		{"Sparsity", func(s net.EpochStats) float64 { return s.Sparsity }},
	}

	p := plot.New()
	p.Title.Text = "Training Loss"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		points := make(plotter.XYs, len(history))
		for j, h := range history {
			points[j] = plotter.XY{X: float64(h.Epoch), Y: s.pick(h)}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, errors.Wrapf(err, "viz: %s loss line", s.name)
		}
		line.LineStyle.Color = lossColors[i]
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// SaveLossPlot renders the loss chart to path; the format follows the file extension.
func SaveLossPlot(history []net.EpochStats, path string) error {
	p, err := LossPlot(history)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(8*vg.Inch, 5*vg.Inch, path), "viz: save loss plot")
}

// WriteLossPlot renders the loss chart as PNG to w.
func WriteLossPlot(history []net.EpochStats, w io.Writer) error {
	p, err := LossPlot(history)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.Wrap(err, "viz: loss plot writer")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "viz: write loss plot")
}
