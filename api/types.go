package api

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Precision names accepted for device transfers.
const (
	PrecisionFloat32  = "float32"
	PrecisionFloat16  = "float16"
	PrecisionBFloat16 = "bfloat16"
)

// Crop placement policies.
const (
	CropCenter = "center"
	CropRandom = "random"
)

// Options controls how a batch of images is decoded, augmented and packed.
// All fields apply to the whole batch and are frozen once files are
// registered.
type Options struct {
	// NumThreads is the decode worker pool size. Values below 1 are
	// coerced to 1.
	NumThreads int `json:"num_threads"`

	// Prefetch returns after kicking off background work instead of
	// waiting for the batch to complete.
	Prefetch bool `json:"prefetch"`

	// Resize is empty for no resizing, [S] for shortest-side resizing
	// to S, or [H, W] for a fixed output size.
	Resize []int `json:"resize,omitempty"`

	// Pack emits a single (H, W, 3, N) tensor instead of one tensor per
	// image. Requires a fixed [H, W] resize.
	Pack bool `json:"pack"`

	GPU       bool   `json:"gpu"`
	Precision string `json:"precision,omitempty"`

	SubtractAverage [3]float32 `json:"subtract_average"`

	// Brightness is the brightness deviation: a single value, a
	// 3-vector of per-channel deviations, or a full 3x3 column-major
	// matrix.
	Brightness []float32 `json:"brightness,omitempty"`

	Contrast   float32 `json:"contrast"`
	Saturation float32 `json:"saturation"`

	// CropAnisotropy is the aspect sampling range. Both bounds zero (the
	// default) stretches the crop aspect to the input image, so a
	// full-size crop covers the whole image.
	CropAnisotropy [2]float32 `json:"crop_anisotropy"`
	CropSize       [2]float32 `json:"crop_size"`
	CropLocation   string     `json:"crop_location"`
	Flip           bool       `json:"flip"`

	// Seed feeds the augmentation RNG; 0 seeds from the clock.
	Seed int64 `json:"seed"`

	Verbose int `json:"verbose"`
}

func DefaultOptions() Options {
	return Options{
		NumThreads:   1,
		Precision:    PrecisionFloat32,
		CropSize:     [2]float32{1, 1},
		CropLocation: CropCenter,
	}
}

// FromMap merges option values decoded from JSON into o. Unknown keys are
// rejected so typos surface instead of silently keeping defaults.
func (o *Options) FromMap(m map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           o,
	})
	if err != nil {
		return err
	}

	return dec.Decode(m)
}

var ErrInvalidOption = errors.New("invalid option")

// FixedResize reports whether the resize mode is a fixed (H, W) output and
// returns it.
func (o *Options) FixedResize() (h, w int, ok bool) {
	if len(o.Resize) == 2 {
		return o.Resize[0], o.Resize[1], true
	}
	return 0, 0, false
}

func (o *Options) Validate() error {
	if o.NumThreads < 1 {
		o.NumThreads = 1
	}

	switch len(o.Resize) {
	case 0, 1, 2:
		for _, d := range o.Resize {
			if d < 1 {
				return fmt.Errorf("%w: resize dimensions must be positive", ErrInvalidOption)
			}
		}
	default:
		return fmt.Errorf("%w: resize takes [S] or [H, W]", ErrInvalidOption)
	}

	if o.Pack {
		if _, _, ok := o.FixedResize(); !ok {
			return fmt.Errorf("%w: pack requires a fixed [H, W] resize", ErrInvalidOption)
		}
	}

	switch o.Precision {
	case "", PrecisionFloat32, PrecisionFloat16, PrecisionBFloat16:
	default:
		return fmt.Errorf("%w: unknown precision %q", ErrInvalidOption, o.Precision)
	}
	if o.Precision == "" {
		o.Precision = PrecisionFloat32
	}

	switch l := len(o.Brightness); l {
	case 0, 1, 3, 9:
	default:
		return fmt.Errorf("%w: brightness takes a scalar, 3-vector or 3x3 matrix, got %d values", ErrInvalidOption, l)
	}

	if o.Contrast < 0 || o.Contrast > 1 {
		return fmt.Errorf("%w: contrast must be in [0, 1]", ErrInvalidOption)
	}
	if o.Saturation < 0 || o.Saturation > 1 {
		return fmt.Errorf("%w: saturation must be in [0, 1]", ErrInvalidOption)
	}

	if o.CropAnisotropy[0] < 0 || o.CropAnisotropy[0] > o.CropAnisotropy[1] {
		return fmt.Errorf("%w: crop_anisotropy bounds must satisfy 0 <= min <= max", ErrInvalidOption)
	}
	if o.CropSize[0] < 0 || o.CropSize[0] > o.CropSize[1] || o.CropSize[1] > 1 {
		return fmt.Errorf("%w: crop_size bounds must satisfy 0 <= min <= max <= 1", ErrInvalidOption)
	}

	switch o.CropLocation {
	case "", CropCenter, CropRandom:
	default:
		return fmt.Errorf("%w: unknown crop_location %q", ErrInvalidOption, o.CropLocation)
	}
	if o.CropLocation == "" {
		o.CropLocation = CropCenter
	}

	return nil
}

// BrightnessMatrix expands the configured brightness deviation into a full
// 3x3 column-major matrix: a scalar scales the identity, a 3-vector fills
// the diagonal.
func (o *Options) BrightnessMatrix() [9]float32 {
	var b [9]float32
	switch len(o.Brightness) {
	case 1:
		b[0], b[4], b[8] = o.Brightness[0], o.Brightness[0], o.Brightness[0]
	case 3:
		b[0], b[4], b[8] = o.Brightness[0], o.Brightness[1], o.Brightness[2]
	case 9:
		copy(b[:], o.Brightness)
	}
	return b
}

// FetchRequest asks the pipeline for one batch of decoded images.
type FetchRequest struct {
	Filenames []string `json:"filenames"`

	// Options overrides the default option values for this batch.
	Options map[string]any `json:"options"`
}

// Tensor is one decoded output. Data is float32 little-endian; it is empty
// for failed items and for prefetch-only responses.
type Tensor struct {
	// Shape is (height, width, channels, count).
	Shape  [4]int `json:"shape"`
	Dtype  string `json:"dtype"`
	Data   []byte `json:"data,omitempty"`
	Device bool   `json:"device,omitempty"`
	Error  string `json:"error,omitempty"`
}

type FetchResponse struct {
	BatchID string `json:"batch_id"`

	// Tensors holds one entry in packed mode, one entry per filename
	// otherwise.
	Tensors []Tensor `json:"tensors,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}
