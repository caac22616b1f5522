package imageproc

// sample computes the two source indices and blend weight for linearly
// resampling output position i of n from a window of size span starting at
// offset. Indices clamp to [0, limit).
func sample(i, n, span, offset, limit int) (lo, hi int, frac float32) {
	pos := float32(offset) + (float32(i)+0.5)*float32(span)/float32(n) - 0.5

	base := int(pos)
	if pos < 0 {
		base = -1
	}
	frac = pos - float32(base)

	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v >= limit {
			return limit - 1
		}
		return v
	}

	return clamp(base), clamp(base + 1), frac
}

// ResizeVertical produces dstH rows from src by linearly resampling the
// vertical slab [cropY, cropY+cropH) across all w columns and c planes.
// Sampling clamps to the image edge.
func ResizeVertical(dst, src []float32, dstH, srcH, w, c, cropH, cropY int) {
	for k := range c {
		splane := src[k*srcH*w : (k+1)*srcH*w]
		dplane := dst[k*dstH*w : (k+1)*dstH*w]

		for yd := range dstH {
			lo, hi, frac := sample(yd, dstH, cropH, cropY, srcH)
			rowLo := splane[lo*w : lo*w+w]
			rowHi := splane[hi*w : hi*w+w]
			out := dplane[yd*w : yd*w+w]

			for x := range w {
				a := rowLo[x]
				out[x] = a + frac*(rowHi[x]-a)
			}
		}
	}
}

// ResizeHorizontal produces dstW columns from src by linearly resampling the
// horizontal slab [cropX, cropX+cropW) across all h rows and c planes,
// mirroring the output when flip is set.
func ResizeHorizontal(dst, src []float32, dstW, srcW, h, c, cropW, cropX int, flip bool) {
	for k := range c {
		splane := src[k*h*srcW : (k+1)*h*srcW]
		dplane := dst[k*h*dstW : (k+1)*h*dstW]

		for xd := range dstW {
			lo, hi, frac := sample(xd, dstW, cropW, cropX, srcW)

			xo := xd
			if flip {
				xo = dstW - 1 - xd
			}

			for y := range h {
				a := splane[y*srcW+lo]
				dplane[y*dstW+xo] = a + frac*(splane[y*srcW+hi]-a)
			}
		}
	}
}
