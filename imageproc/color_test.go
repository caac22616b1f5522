package imageproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAugmentIdentity(t *testing.T) {
	buf := []float32{
		1, 2,
		3, 4,
		5, 6,
	}
	want := append([]float32(nil), buf...)

	Augment(buf, 1, 2, 3, 3, [3]float32{}, [3]float32{}, 1, 1)
	assert.Equal(t, want, buf)
}

func TestAugmentSubtractsAverage(t *testing.T) {
	buf := []float32{
		10, 20,
		30, 40,
		50, 60,
	}

	Augment(buf, 1, 2, 3, 3, [3]float32{1, 2, 3}, [3]float32{}, 1, 1)
	assert.Equal(t, []float32{
		9, 19,
		28, 38,
		47, 57,
	}, buf)
}

func TestAugmentBrightnessShift(t *testing.T) {
	buf := []float32{100, 100, 100}

	Augment(buf, 1, 1, 3, 3, [3]float32{}, [3]float32{5, -5, 0}, 1, 1)
	assert.Equal(t, []float32{95, 105, 100}, buf)
}

func TestAugmentZeroSaturationGraysOut(t *testing.T) {
	buf := []float32{30, 60, 90}

	// saturation 0 replaces every channel with the channel mean
	Augment(buf, 1, 1, 3, 3, [3]float32{}, [3]float32{}, 1, 0)
	assert.InDeltaSlice(t, []float32{60, 60, 60}, buf, 1e-4)
}

func TestAugmentGrayscaleBroadcast(t *testing.T) {
	buf := []float32{
		7, 9,
		0, 0,
		0, 0,
	}

	Augment(buf, 1, 2, 3, 1, [3]float32{}, [3]float32{}, 1, 1)
	assert.Equal(t, []float32{
		7, 9,
		7, 9,
		7, 9,
	}, buf)
}

func TestAugmentSingleChannelContrast(t *testing.T) {
	buf := []float32{10, 20, 30, 40}

	// contrast shift 0.5: dv = -(1-0.5)*mean = -12.5, then 0.5*(v + dv)
	Augment(buf, 2, 2, 1, 1, [3]float32{}, [3]float32{}, 0.5, 1)
	assert.InDeltaSlice(t, []float32{-1.25, 3.75, 8.75, 13.75}, buf, 1e-4)
}
