package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/sunshineplan/imgconv"
)

var ErrInvalidImage = errors.New("invalid image")

// DecodeImage decodes an uploaded photo and reports its format name.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrInvalidImage)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}

	return img, format, nil
}
