// Package viz renders reconstructions, loss curves and the model architecture.
package viz

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

// Captions drawn above the image grids.
const (
	GridTitle    = "Original Images (Top) vs Reconstructed Images (Bottom)"
	FiltersTitle = "Encoder Weights (one tile per hidden unit)"
)

const (
	dpi      = 72.0
	fontsize = 14.0
	pad      = 4
	titleH   = 28
)

var regular *truetype.Font

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// Grid lays out equally sized images in rows under a caption.
type Grid struct {
	W, H  int // size of one image in pixels
	Scale int // each pixel is drawn as a Scale×Scale block
	Title string
}

// NewGrid returns a grid for w×h images with the default caption.
func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Scale: 2, Title: GridTitle}
}

// Render draws up to n pairs. Each image is min-max scaled to the gray range on its own.
func (g *Grid) Render(originals, reconstructions [][]float64, n int) (*image.Gray, error) {
	if n > len(originals) {
		n = len(originals)
	}
	if n > len(reconstructions) {
		n = len(reconstructions)
	}
	if n <= 0 {
		return nil, errors.New("viz: no images to render")
	}
	return g.renderRows([][][]float64{originals[:n], reconstructions[:n]})
}

// RenderTiles draws images perRow to a line, in order.
func (g *Grid) RenderTiles(images [][]float64, perRow int) (*image.Gray, error) {
	if len(images) == 0 {
		return nil, errors.New("viz: no images to render")
	}
	if perRow <= 0 {
		return nil, errors.Errorf("viz: %d tiles per row", perRow)
	}
	var rows [][][]float64
	for start := 0; start < len(images); start += perRow {
		end := start + perRow
		if end > len(images) {
			end = len(images)
		}
		rows = append(rows, images[start:end])
	}
	return g.renderRows(rows)
}

func (g *Grid) renderRows(rows [][][]float64) (*image.Gray, error) {
	scale := g.Scale
	if scale <= 0 {
		scale = 1
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	cellW, cellH := g.W*scale, g.H*scale
	width := cols*(cellW+pad) + pad
	height := titleH + len(rows)*(cellH+pad) + pad
	if tw := g.titleWidth() + 2*pad; tw > width {
		width = tw
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	g.drawTitle(img)

	for r, row := range rows {
		y := titleH + pad + r*(cellH+pad)
		for i, src := range row {
			if len(src) != g.W*g.H {
				return nil, errors.Errorf("viz: image %d of row %d has %d pixels, want %d", i, r, len(src), g.W*g.H)
			}
			g.drawCell(img, src, pad+i*(cellW+pad), y, scale)
		}
	}
	return img, nil
}

func (g *Grid) drawCell(img *image.Gray, src []float64, x0, y0, scale int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range src {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	for py := 0; py < g.H; py++ {
		for px := 0; px < g.W; px++ {
			var level uint8
			if span > 0 {
				level = uint8(math.Round(255 * (src[py*g.W+px] - lo) / span))
			}
			c := color.Gray{Y: level}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(x0+px*scale+dx, y0+py*scale+dy, c)
				}
			}
		}
	}
}

func (g *Grid) face() font.Face {
	return truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}

func (g *Grid) titleWidth() int {
	if g.Title == "" {
		return 0
	}
	return font.MeasureString(g.face(), g.Title).Ceil()
}

func (g *Grid) drawTitle(img *image.Gray) {
	if g.Title == "" {
		return
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: g.face(),
	}
	w := d.MeasureString(g.Title).Ceil()
	x := (img.Bounds().Dx() - w) / 2
	d.Dot = fixed.P(x, titleH-8)
	d.DrawString(g.Title)
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "viz: create image file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "viz: encode png")
	}
	return errors.Wrap(f.Close(), "viz: close image file")
}
