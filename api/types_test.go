package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	assert.Equal(t, 1, opts.NumThreads)
	assert.Equal(t, PrecisionFloat32, opts.Precision)
	assert.Equal(t, [2]float32{0, 0}, opts.CropAnisotropy)
	assert.Equal(t, [2]float32{1, 1}, opts.CropSize)
	assert.Equal(t, CropCenter, opts.CropLocation)
	assert.Empty(t, opts.Resize)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mut    func(*Options)
		errMsg string
	}{
		{"pack without resize", func(o *Options) { o.Pack = true }, "pack requires"},
		{"pack with shortest side", func(o *Options) { o.Pack = true; o.Resize = []int{256} }, "pack requires"},
		{"negative resize", func(o *Options) { o.Resize = []int{-1} }, "positive"},
		{"too many resize dims", func(o *Options) { o.Resize = []int{1, 2, 3} }, "resize takes"},
		{"contrast too large", func(o *Options) { o.Contrast = 1.5 }, "contrast"},
		{"negative saturation", func(o *Options) { o.Saturation = -0.1 }, "saturation"},
		{"anisotropy min above max", func(o *Options) { o.CropAnisotropy = [2]float32{2, 1} }, "crop_anisotropy"},
		{"crop size above one", func(o *Options) { o.CropSize = [2]float32{0.5, 1.5} }, "crop_size"},
		{"unknown precision", func(o *Options) { o.Precision = "int8" }, "precision"},
		{"unknown crop location", func(o *Options) { o.CropLocation = "corner" }, "crop_location"},
		{"bad brightness length", func(o *Options) { o.Brightness = []float32{1, 2} }, "brightness"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mut(&opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOption)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestValidateCoercesThreads(t *testing.T) {
	opts := DefaultOptions()
	opts.NumThreads = 0
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1, opts.NumThreads)

	opts.NumThreads = -4
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1, opts.NumThreads)
}

func TestValidateAcceptsPackedFixedResize(t *testing.T) {
	opts := DefaultOptions()
	opts.Pack = true
	opts.Resize = []int{16, 16}
	require.NoError(t, opts.Validate())

	h, w, ok := opts.FixedResize()
	assert.True(t, ok)
	assert.Equal(t, 16, h)
	assert.Equal(t, 16, w)
}

func TestFromMap(t *testing.T) {
	opts := DefaultOptions()
	err := opts.FromMap(map[string]any{
		"num_threads":   4,
		"resize":        []any{16, 16},
		"pack":          true,
		"flip":          true,
		"crop_location": "random",
		"contrast":      0.25,
	})
	require.NoError(t, err)
	require.NoError(t, opts.Validate())

	assert.Equal(t, 4, opts.NumThreads)
	assert.Equal(t, []int{16, 16}, opts.Resize)
	assert.True(t, opts.Pack)
	assert.True(t, opts.Flip)
	assert.Equal(t, CropRandom, opts.CropLocation)
	assert.InDelta(t, 0.25, opts.Contrast, 1e-6)
}

func TestFromMapRejectsUnknownKeys(t *testing.T) {
	opts := DefaultOptions()
	err := opts.FromMap(map[string]any{"resise": []any{16, 16}})
	assert.Error(t, err)
}

func TestBrightnessMatrix(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, [9]float32{}, opts.BrightnessMatrix())

	opts.Brightness = []float32{2}
	assert.Equal(t, [9]float32{2, 0, 0, 0, 2, 0, 0, 0, 2}, opts.BrightnessMatrix())

	opts.Brightness = []float32{1, 2, 3}
	assert.Equal(t, [9]float32{1, 0, 0, 0, 2, 0, 0, 0, 3}, opts.BrightnessMatrix())

	opts.Brightness = []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, [9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, opts.BrightnessMatrix())
}
