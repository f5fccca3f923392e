package train

import (
	"image"
	"math"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
)

// Feature extractor geometry.
const (
	InputSize = 32

	hueBins = 8
	satBins = 3
	valBins = 3

	// darkThreshold is the HSV value under which a pixel counts as dark.
	darkThreshold = 0.2
)

// FeatureSize is the length of the vector returned by Features.
const FeatureSize = hueBins*satBins*valBins + 6 + 1

// Features resizes img to InputSize x InputSize and returns a normalized
// HSV histogram, the per-channel RGB mean and standard deviation, and the
// share of dark pixels.
func Features(img image.Image) []float64 {
	small := imageproc.Resize(img, InputSize, InputSize)
	out := make([]float64, FeatureSize)
	hist := out[:hueBins*satBins*valBins]
	rgb := out[len(hist) : len(hist)+6]

	var sum, sumSq [3]float64
	var dark float64
	n := float64(InputSize * InputSize)

	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			off := small.PixOffset(x, y)
			px := small.Pix[off : off+3 : off+3]
			r, g, b := float64(px[0])/255, float64(px[1])/255, float64(px[2])/255
			for c, v := range [3]float64{r, g, b} {
				sum[c] += v
				sumSq[c] += v * v
			}

			h, s, v := hsv(r, g, b)
			if v < darkThreshold {
				dark++
			}
			hi := min(int(h/360*hueBins), hueBins-1)
			si := min(int(s*satBins), satBins-1)
			vi := min(int(v*valBins), valBins-1)
			hist[(hi*satBins+si)*valBins+vi]++
		}
	}

	for i := range hist {
		hist[i] /= n
	}
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		rgb[c] = mean
		rgb[3+c] = math.Sqrt(math.Max(sumSq[c]/n-mean*mean, 0))
	}
	out[FeatureSize-1] = dark / n
	return out
}

// hsv converts RGB in [0,1] to hue in degrees and saturation and value in
// [0,1].
func hsv(r, g, b float64) (h, s, v float64) {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	v = hi
	d := hi - lo
	if hi > 0 {
		s = d / hi
	}
	if d == 0 {
		return 0, s, v
	}
	switch hi {
	case r:
		h = 60 * math.Mod((g-b)/d, 6)
	case g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
