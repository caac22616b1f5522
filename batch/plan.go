package batch

import (
	"math"
	"math/rand"

	"github.com/pixfeed/pixfeed/api"
	"github.com/pixfeed/pixfeed/reader"
)

// Plan is the precomputed transform for one item: output dimensions, the
// crop rectangle inside the input image, the flip bit and the sampled
// color-augmentation parameters.
type Plan struct {
	OutH, OutW, OutC int

	CropH, CropW int
	CropX, CropY int

	Flip bool

	Brightness [3]float32
	Contrast   float32
	Saturation float32
}

func roundDim(v float64) int {
	return max(1, int(math.Round(v)))
}

func clampDim(v, limit int) int {
	return max(1, min(v, limit))
}

// outputSize applies the resize mode: unchanged, shortest side scaled to S
// with the longer side rounded to nearest, or fixed (H, W).
func outputSize(opts *api.Options, shape reader.Shape) (h, w int) {
	switch len(opts.Resize) {
	case 1:
		s := opts.Resize[0]
		scale := math.Max(float64(s)/float64(shape.Width), float64(s)/float64(shape.Height))
		if shape.Width <= shape.Height {
			return roundDim(float64(shape.Height) * scale), s
		}
		return s, roundDim(float64(shape.Width) * scale)
	case 2:
		return opts.Resize[0], opts.Resize[1]
	}
	return shape.Height, shape.Width
}

func uniform(rng *rand.Rand, lo, hi float32) float32 {
	return lo + (hi-lo)*rng.Float32()
}

// derivePlan computes an item's transform plan. Draw order is fixed:
// anisotropy (when the bounds are not both zero), crop size, crop dx, crop
// dy (random placement only), flip bit (when flip is enabled), saturation,
// contrast, then the three brightness normals. All randomness comes from
// rng, nothing else.
func derivePlan(opts *api.Options, bright [9]float32, shape reader.Shape, packed bool, rng *rand.Rand) Plan {
	var p Plan

	p.OutH, p.OutW = outputSize(opts, shape)
	p.OutC = shape.Channels
	if packed {
		p.OutC = 3
	}

	var aniso float64
	if opts.CropAnisotropy[0] == 0 && opts.CropAnisotropy[1] == 0 {
		// stretch the crop aspect to the input aspect, so a full-size
		// crop covers the whole image
		aniso = (float64(p.OutW) / float64(p.OutH)) / (float64(shape.Width) / float64(shape.Height))
	} else {
		aniso = float64(uniform(rng, opts.CropAnisotropy[0], opts.CropAnisotropy[1]))
	}

	cropW := float64(p.OutW) * aniso
	cropH := float64(p.OutH) / aniso

	scale := math.Min(float64(shape.Width)/cropW, float64(shape.Height)/cropH)
	size := float64(uniform(rng, opts.CropSize[0], opts.CropSize[1]))

	p.CropW = clampDim(int(math.Round(cropW*scale*size)), shape.Width)
	p.CropH = clampDim(int(math.Round(cropH*scale*size)), shape.Height)

	dx := shape.Width - p.CropW
	dy := shape.Height - p.CropH
	if opts.CropLocation == api.CropRandom {
		p.CropX = rng.Intn(dx + 1)
		p.CropY = rng.Intn(dy + 1)
	} else {
		p.CropX = (dx + 1) / 2
		p.CropY = (dy + 1) / 2
	}

	if opts.Flip {
		p.Flip = rng.Intn(2) == 1
	}

	p.Saturation = 1 + opts.Saturation*uniform(rng, -1, 1)
	p.Contrast = 1 + opts.Contrast*uniform(rng, -1, 1)

	// one normal draw per channel; each scales the row sum of the
	// deviation matrix
	for i := range 3 {
		w := float32(rng.NormFloat64())
		p.Brightness[i] = (bright[i] + bright[i+3] + bright[i+6]) * w
	}

	return p
}
