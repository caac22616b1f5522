// Package imageproc implements the pixel transforms used by the ingest
// pipeline: planar extraction, fused crop+resize and color augmentation.
// Pixels are planar float32 in [0, 255], laid out channel-major: the value
// of channel k at (x, y) in an h by w plane lives at (k*h+y)*w + x.
package imageproc

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Composite returns an image with the alpha channel removed by drawing over
// a white background.
func Composite(img image.Image) image.Image {
	white := color.RGBA{255, 255, 255, 255}

	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// Channels returns the plane count an image decodes to: 1 for grayscale
// color models, 3 otherwise.
func Channels(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	}
	return 3
}

// Planar writes img into dst as c planes of float32 in [0, 255]. dst must
// hold h*w*c values. With c 1 a color image collapses to luminance.
func Planar(img image.Image, dst []float32, c int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if c == 1 {
		plane := dst[:h*w]
		for y := range h {
			for x := range w {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				plane[y*w+x] = float32(g.Y)
			}
		}
		return
	}

	n := h * w
	rp, gp, bp := dst[:n], dst[n:2*n], dst[2*n:3*n]
	for y := range h {
		for x := range w {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rp[y*w+x] = float32(r >> 8)
			gp[y*w+x] = float32(g >> 8)
			bp[y*w+x] = float32(b >> 8)
		}
	}
}
