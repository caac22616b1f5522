package imageproc

// Augment applies the sampled color augmentation in place on a planar
// output buffer of outC planes, h by w each. srcC is the decoded channel
// count; with outC 3 and srcC 1 the single gray plane is broadcast into all
// three output planes. avg is the per-channel mean to subtract, brightness
// the sampled per-channel shift, contrast and saturation the sampled shift
// factors (1 means unchanged).
func Augment(buf []float32, h, w, outC, srcC int, avg, brightness [3]float32, contrast, saturation float32) {
	n := h * w

	var dv [3]float32
	for k := range outC {
		dv[k] = (1 - 2*contrast) * (avg[k] + brightness[k])
	}

	if contrast != 1 {
		for k := range outC {
			src := k
			if srcC == 1 {
				src = 0
			}
			plane := buf[src*n : src*n+n]

			var sum float64
			for _, v := range plane {
				sum += float64(v)
			}
			dv[k] -= (1 - contrast) * float32(sum/float64(n))
		}
	}

	switch {
	case outC == 3 && srcC == 3:
		a := contrast * saturation
		b := contrast * (1 - saturation) / 3
		p0, p1, p2 := buf[:n], buf[n:2*n], buf[2*n:3*n]
		for i := range n {
			v0 := p0[i] + dv[0]
			v1 := p1[i] + dv[1]
			v2 := p2[i] + dv[2]
			mu := v0 + v1 + v2
			p0[i] = a*v0 + b*mu
			p1[i] = a*v1 + b*mu
			p2[i] = a*v2 + b*mu
		}
	case outC == 3 && srcC == 1:
		a := contrast * saturation
		b := contrast * (1 - saturation) / 3
		p0, p1, p2 := buf[:n], buf[n:2*n], buf[2*n:3*n]
		for i := range n {
			v0 := p0[i] + dv[0]
			v1 := p0[i] + dv[1]
			v2 := p0[i] + dv[2]
			mu := v0 + v1 + v2
			p0[i] = a*v0 + b*mu
			p1[i] = a*v1 + b*mu
			p2[i] = a*v2 + b*mu
		}
	default:
		plane := buf[:n]
		for i := range n {
			plane[i] = contrast * (plane[i] + dv[0])
		}
	}
}
