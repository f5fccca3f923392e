package collect

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Synthetic image defaults.
const (
	SyntheticSize            = 224
	DefaultSyntheticPerState = 20
	SourceSynthetic          = "synthetic_images"
)

// DefaultSyntheticProduce is the produce painted when none is named.
var DefaultSyntheticProduce = []string{"apple", "banana", "orange", "tomato", "strawberry"}

// rgbRange bounds a base colour; each channel is drawn from [lo, hi).
type rgbRange struct{ lo, hi [3]int }

var palettes = map[string]map[string]rgbRange{
	"apple": {
		types.StateFresh:  {[3]int{180, 20, 20}, [3]int{255, 60, 60}},
		types.StateRotten: {[3]int{120, 40, 20}, [3]int{160, 80, 40}},
	},
	"banana": {
		types.StateFresh:  {[3]int{220, 200, 60}, [3]int{255, 240, 120}},
		types.StateRotten: {[3]int{80, 60, 20}, [3]int{120, 100, 40}},
	},
	"orange": {
		types.StateFresh:  {[3]int{220, 120, 20}, [3]int{255, 160, 60}},
		types.StateRotten: {[3]int{100, 60, 20}, [3]int{140, 100, 40}},
	},
	"tomato": {
		types.StateFresh:  {[3]int{200, 40, 40}, [3]int{255, 80, 80}},
		types.StateRotten: {[3]int{80, 40, 20}, [3]int{120, 80, 40}},
	},
	"strawberry": {
		types.StateFresh:  {[3]int{180, 20, 40}, [3]int{255, 60, 100}},
		types.StateRotten: {[3]int{60, 20, 20}, [3]int{100, 60, 40}},
	},
}

// Produce without a palette get a green body when fresh and brown when rotten.
var fallbackPalette = map[string]rgbRange{
	types.StateFresh:  {[3]int{60, 150, 40}, [3]int{120, 220, 90}},
	types.StateRotten: {[3]int{70, 50, 20}, [3]int{110, 80, 40}},
}

// Painter renders synthetic produce photos into an organized tree
// <Root>/<state>/<produce>/<produce>_<state>_<NN>.jpg that train reads
// directly.
type Painter struct {
	Root     string
	PerState int
	Quality  int
	Seed     uint64
	Index    Indexer // optional
	Logger   *slog.Logger
}

// Paint renders PerState images per produce and state and registers them in
// one batch.
func (p *Painter) Paint(produce []string) ([]*types.ImageEntry, error) {
	if len(produce) == 0 {
		produce = DefaultSyntheticProduce
	}
	perState := p.PerState
	if perState <= 0 {
		perState = DefaultSyntheticPerState
	}
	quality := p.Quality
	if quality <= 0 {
		quality = imageproc.DefaultQuality
	}

	var entries []*types.ImageEntry
	for _, name := range produce {
		for _, state := range types.States {
			for i := 0; i < perState; i++ {
				img := RenderProduce(name, state, p.rng(name, state, i))
				path := filepath.Join(p.Root, state, name, fmt.Sprintf("%s_%s_%02d.jpg", name, state, i))
				if err := imageproc.SaveJPEG(path, img, quality); err != nil {
					return entries, err
				}
				entries = append(entries, &types.ImageEntry{
					Produce: name, State: state, Path: path, Source: SourceSynthetic,
				})
			}
		}
		p.logger().Debug("painted produce", "produce", name, "per_state", perState)
	}
	if err := register(p.Index, entries); err != nil {
		return entries, err
	}
	p.logger().Info("painted synthetic images", "produce", len(produce), "images", len(entries))
	return entries, nil
}

// rng seeds one image from the painter seed and its produce, state and index
// so reruns reproduce the same pixels.
func (p *Painter) rng(name, state string, i int) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s_%s_%d", name, state, i)
	return rand.New(rand.NewPCG(p.Seed, h.Sum64()))
}

func (p *Painter) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// RenderProduce draws one SyntheticSize square image: a tinted disc on a
// light background. Fresh produce gets a highlight and colour noise; rotten
// produce gets dark spots and is dimmed to 70%.
func RenderProduce(produce, state string, r *rand.Rand) *image.RGBA {
	pal, ok := palettes[produce]
	if !ok {
		pal = fallbackPalette
	}
	body := pal[state]
	base := color.RGBA{
		R: uint8(between(r, body.lo[0], body.hi[0])),
		G: uint8(between(r, body.lo[1], body.hi[1])),
		B: uint8(between(r, body.lo[2], body.hi[2])),
		A: 255,
	}
	bg := color.RGBA{R: uint8(between(r, 200, 255)), G: uint8(between(r, 200, 255)), B: uint8(between(r, 200, 255)), A: 255}

	bounds := image.Rect(0, 0, SyntheticSize, SyntheticSize)
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.NewUniform(bg), image.Point{}, draw.Src)

	fruit := disc{c: image.Pt(SyntheticSize/2, SyntheticSize/2), r: between(r, 60, 90)}
	draw.DrawMask(img, bounds, image.NewUniform(base), image.Point{}, fruit, image.Point{}, draw.Over)

	if state == types.StateFresh {
		shine := disc{c: fruit.c.Add(image.Pt(-20, 20)), r: fruit.r * 3 / 10}
		eachInside(fruit, func(x, y int) {
			px := img.RGBAAt(x, y)
			d := between(r, -20, 20)
			if shine.inside(x, y) {
				d += 40
			}
			img.SetRGBA(x, y, color.RGBA{R: clamp(int(px.R) + d), G: clamp(int(px.G) + d), B: clamp(int(px.B) + d), A: 255})
		})
		return img
	}

	spots := between(r, 3, 8)
	for range spots {
		spot := disc{
			c: image.Pt(between(r, fruit.c.X-fruit.r/2, fruit.c.X+fruit.r/2), between(r, fruit.c.Y-fruit.r/2, fruit.c.Y+fruit.r/2)),
			r: between(r, 8, 20),
		}
		dark := color.RGBA{R: uint8(between(r, 20, 60)), G: uint8(between(r, 20, 60)), B: uint8(between(r, 20, 60)), A: 255}
		eachInside(spot, func(x, y int) {
			if fruit.inside(x, y) {
				img.SetRGBA(x, y, dark)
			}
		})
	}
	eachInside(fruit, func(x, y int) {
		px := img.RGBAAt(x, y)
		img.SetRGBA(x, y, color.RGBA{R: uint8(int(px.R) * 7 / 10), G: uint8(int(px.G) * 7 / 10), B: uint8(int(px.B) * 7 / 10), A: 255})
	})
	return img
}

// disc is an alpha mask that is opaque inside a circle.
type disc struct {
	c image.Point
	r int
}

func (d disc) inside(x, y int) bool {
	dx, dy := x-d.c.X, y-d.c.Y
	return dx*dx+dy*dy <= d.r*d.r
}

func (d disc) ColorModel() color.Model { return color.AlphaModel }

func (d disc) Bounds() image.Rectangle {
	return image.Rect(d.c.X-d.r, d.c.Y-d.r, d.c.X+d.r+1, d.c.Y+d.r+1)
}

func (d disc) At(x, y int) color.Color {
	if d.inside(x, y) {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// eachInside calls fn for every canvas pixel inside d.
func eachInside(d disc, fn func(x, y int)) {
	b := d.Bounds().Intersect(image.Rect(0, 0, SyntheticSize, SyntheticSize))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if d.inside(x, y) {
				fn(x, y)
			}
		}
	}
}

// between returns a value in [lo, hi).
func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo)
}

func clamp(v int) uint8 {
	return uint8(max(0, min(255, v)))
}
