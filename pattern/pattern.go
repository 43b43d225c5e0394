// Package pattern generates the decorative colour grids shown next to
// tickets and on the site. The same seed always yields the same grid. Grids
// carry no data and cannot be decoded.
package pattern

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math/rand/v2"
	"strings"
)

const (
	DefaultSize = 8
	MaxSize     = 64
)

var ErrInvalidSize = errors.New("pattern size out of range")

// DefaultPalette is the event's brand palette.
var DefaultPalette = []color.RGBA{
	{R: 0x0b, G: 0x3d, B: 0x91, A: 0xff},
	{R: 0x1f, G: 0x8a, B: 0x70, A: 0xff},
	{R: 0xf2, G: 0xa9, B: 0x00, A: 0xff},
	{R: 0xe4, G: 0x57, B: 0x2e, A: 0xff},
	{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff},
}

// Grid is a square of palette indices.
type Grid struct {
	Size    int
	Cells   []int
	Palette []color.RGBA
}

func (g Grid) At(x, y int) color.RGBA {
	return g.Palette[g.Cells[y*g.Size+x]]
}

// Generate builds a size×size grid from seed. The left half is random and the
// right half mirrors it.
func Generate(seed string, size int, palette []color.RGBA) (Grid, error) {
	if size < 1 || size > MaxSize {
		return Grid{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if len(palette) == 0 {
		palette = DefaultPalette
	}

	h := fnv.New64a()
	h.Write([]byte(seed))
	sum := h.Sum64()
	rng := rand.New(rand.NewPCG(sum, sum>>1|1))

	g := Grid{Size: size, Cells: make([]int, size*size), Palette: palette}
	half := (size + 1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < half; x++ {
			idx := rng.IntN(len(palette))
			g.Cells[y*size+x] = idx
			g.Cells[y*size+(size-1-x)] = idx
		}
	}
	return g, nil
}

// SVG renders the grid with cell pixels per cell.
func (g Grid) SVG(cell int) string {
	if cell < 1 {
		cell = 1
	}
	side := g.Size * cell

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, side, side, side, side)
	for y := 0; y < g.Size; y++ {
		for x := 0; x < g.Size; x++ {
			c := g.At(x, y)
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="#%02x%02x%02x"/>`, x*cell, y*cell, cell, cell, c.R, c.G, c.B)
		}
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// Image renders the grid as an RGBA image for PNG encoding.
func (g Grid) Image(cell int) *image.RGBA {
	if cell < 1 {
		cell = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, g.Size*cell, g.Size*cell))
	for py := 0; py < g.Size*cell; py++ {
		for px := 0; px < g.Size*cell; px++ {
			img.SetRGBA(px, py, g.At(px/cell, py/cell))
		}
	}
	return img
}
