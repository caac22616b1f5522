// Package reader decodes image files into planar float32 pixels. Each
// pipeline worker owns its own Reader; implementations do not need to be
// safe for concurrent use.
package reader

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pixfeed/pixfeed/imageproc"
)

// Shape describes a decoded image: height, width and plane count.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

func (s Shape) Pixels() int {
	return s.Height * s.Width * s.Channels
}

type Reader interface {
	// ProbeShape reads enough of the file to report its decoded shape.
	ProbeShape(path string) (Shape, error)

	// DecodePixels decodes the file into dst as planar float32 in
	// [0, 255]. dst must hold shape.Pixels() values and shape must come
	// from a prior ProbeShape of the same file.
	DecodePixels(path string, dst []float32, shape Shape) error
}

type fileReader struct{}

func New() Reader {
	return &fileReader{}
}

func (fileReader) ProbeShape(path string) (Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return Shape{}, err
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return Shape{}, fmt.Errorf("probe %s: %w", path, err)
	}

	return Shape{
		Height:   config.Height,
		Width:    config.Width,
		Channels: imageproc.Channels(config.ColorModel),
	}, nil
}

func (fileReader) DecodePixels(path string, dst []float32, shape Shape) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dy() != shape.Height || bounds.Dx() != shape.Width {
		return fmt.Errorf("decode %s: size changed from %dx%d to %dx%d", path,
			shape.Height, shape.Width, bounds.Dy(), bounds.Dx())
	}

	if shape.Channels == 3 {
		img = imageproc.Composite(img)
	}

	imageproc.Planar(img, dst, shape.Channels)
	return nil
}
