package imageproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannels(t *testing.T) {
	assert.Equal(t, 1, Channels(color.GrayModel))
	assert.Equal(t, 1, Channels(color.Gray16Model))
	assert.Equal(t, 3, Channels(color.RGBAModel))
	assert.Equal(t, 3, Channels(color.NRGBAModel))
}

func TestPlanarColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	dst := make([]float32, 6)
	Planar(img, dst, 3)
	assert.Equal(t, []float32{10, 40, 20, 50, 30, 60}, dst)
}

func TestPlanarGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 11})
	img.SetGray(1, 0, color.Gray{Y: 22})
	img.SetGray(0, 1, color.Gray{Y: 33})
	img.SetGray(1, 1, color.Gray{Y: 44})

	dst := make([]float32, 4)
	Planar(img, dst, 1)
	assert.Equal(t, []float32{11, 22, 33, 44}, dst)
}

func TestCompositeRemovesAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	out := Composite(img)
	r, g, b, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}
