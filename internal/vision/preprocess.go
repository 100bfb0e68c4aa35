package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"placa-service/internal/domain/plate"
)

var ErrEmptyRegion = errors.New("empty crop region")

const (
	upscaleFactor    = 2.0
	polarityMidpoint = 127.0
)

var blurKernel = image.Pt(3, 3)

// Prepared is a binarized plate crop ready for text recognition.
type Prepared struct {
	Image     *image.Gray
	Threshold float64
	Mean      float64
	Inverted  bool
}

// Preprocessor turns a plate crop into a high-contrast single channel image.
// It holds no state and is safe for concurrent use.
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

func (p *Preprocessor) Prepare(img image.Image, region plate.PixelRegion) (*Prepared, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	return PrepareMat(src, region)
}

// PrepareMat runs crop, grayscale, 2x cubic upscale, 3x3 gaussian blur,
// Otsu threshold and polarity normalization on a BGR mat.
func PrepareMat(src gocv.Mat, region plate.PixelRegion) (*Prepared, error) {
	if src.Empty() {
		return nil, ErrEmptyRegion
	}

	rect := image.Rect(region.X1, region.Y1, region.X2, region.Y2).
		Intersect(image.Rect(0, 0, src.Cols(), src.Rows()))
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}

	crop := src.Region(rect)
	defer crop.Close()
	if crop.Empty() || crop.Total() == 0 {
		return nil, ErrEmptyRegion
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if crop.Channels() == 1 {
		crop.CopyTo(&gray)
	} else {
		gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)
	}

	upscaled := gocv.NewMat()
	defer upscaled.Close()
	gocv.Resize(gray, &upscaled, image.Point{}, upscaleFactor, upscaleFactor, gocv.InterpolationCubic)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(upscaled, &blurred, blurKernel, 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	threshold := gocv.Threshold(blurred, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	mean := binary.Mean().Val1
	result := &Prepared{
		Threshold: float64(threshold),
		Mean:      mean,
	}

	out := binary
	if mean > polarityMidpoint {
		inverted := gocv.NewMat()
		defer inverted.Close()
		gocv.BitwiseNot(binary, &inverted)
		out = inverted
		result.Inverted = true
	}

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert processed mat: %w", err)
	}
	result.Image = toGray(img)

	return result, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g
}
