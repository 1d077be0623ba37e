// Package dataset loads labeled image datasets into memory and serves them in batches.
package dataset

import (
	"math/rand"

	"github.com/chewxy/math32"
	"gorgonia.org/vecf32"
)

// Dataset is an in-memory set of flattened images. Labels are kept for
// completeness; training ignores them.
type Dataset struct {
	Images [][]float32
	Labels []uint8

	// Image geometry, used to un-flatten images for display.
	Rows, Cols int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Images)
}

// Dim returns the flattened image size.
func (d *Dataset) Dim() int {
	return d.Rows * d.Cols
}

// Normalize maps every pixel to (x - mean) / std in place, the same transform as
// torchvision's Normalize((mean,), (std,)).
func (d *Dataset) Normalize(mean, std float32) {
	for _, img := range d.Images {
		vecf32.TransInv(img, mean)
		vecf32.ScaleInv(img, std)
	}
}

// Range returns the smallest and largest pixel value in the dataset.
func (d *Dataset) Range() (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, img := range d.Images {
		for _, v := range img {
			lo = math32.Min(lo, v)
			hi = math32.Max(hi, v)
		}
	}
	return lo, hi
}

// Subset returns the first n samples (or all of them) sharing the same backing images.
func (d *Dataset) Subset(n int) *Dataset {
	if n > d.Len() || n < 0 {
		n = d.Len()
	}
	return &Dataset{
		Images: d.Images[:n],
		Labels: d.Labels[:n],
		Rows:   d.Rows,
		Cols:   d.Cols,
	}
}

// Synthetic builds n rows×cols images in [0, 1]: each is a soft horizontal or
// vertical stripe pattern with a little noise, labeled by its orientation.
func Synthetic(n, rows, cols int, rng *rand.Rand) *Dataset {
	d := &Dataset{
		Images: make([][]float32, n),
		Labels: make([]uint8, n),
		Rows:   rows,
		Cols:   cols,
	}
	for i := 0; i < n; i++ {
		label := uint8(rng.Intn(2))
		phase := rng.Float32() * 2 * math32.Pi
		freq := 1 + rng.Float32()*2
		img := make([]float32, rows*cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				pos := float32(c) / float32(cols)
				if label == 1 {
					pos = float32(r) / float32(rows)
				}
				v := 0.5 + 0.5*math32.Sin(2*math32.Pi*freq*pos+phase) + (rng.Float32()-0.5)*0.05
				img[r*cols+c] = math32.Min(math32.Max(v, 0), 1)
			}
		}
		d.Images[i] = img
		d.Labels[i] = label
	}
	return d
}
