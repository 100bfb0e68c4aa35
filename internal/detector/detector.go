package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
)

var (
	ErrModelUnavailable = errors.New("detection model unavailable")
	ErrInference        = errors.New("inference failed")
)

const defaultImageSize = 640

// Detector locates plates and reports normalized boxes.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]plate.Detection, error)
	Loaded() bool
	Name() string
	Close() error
}

// New builds the backend selected in configuration. A missing model is not an
// error here: the detector reports Loaded() == false and every Detect call
// fails with ErrModelUnavailable.
func New(cfg config.DetectorConfig, log zerolog.Logger) (Detector, error) {
	switch cfg.Backend {
	case config.DetectorBackendONNX:
		return NewONNXDetector(cfg, log), nil
	case config.DetectorBackendRemote:
		return NewRemoteDetector(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

func inputSize(cfg config.DetectorConfig) int {
	if cfg.ImageSize > 0 {
		return cfg.ImageSize
	}
	return defaultImageSize
}

// fromCorners converts a pixel-space box on a size×size canvas into a
// normalized detection, clipping the box to the canvas first.
func fromCorners(x1, y1, x2, y2, size, confidence float64) plate.Detection {
	x1 = clamp(x1, 0, size)
	y1 = clamp(y1, 0, size)
	x2 = clamp(x2, 0, size)
	y2 = clamp(y2, 0, size)
	return plate.Detection{
		XCenter:    ((x1 + x2) / 2) / size,
		YCenter:    ((y1 + y2) / 2) / size,
		Width:      (x2 - x1) / size,
		Height:     (y2 - y1) / size,
		Confidence: clamp(confidence, 0, 1),
	}
}

// sanitize clips an externally produced normalized box to the unit square.
// Boxes with non-finite values or no area left after clipping are rejected.
func sanitize(det plate.Detection) (plate.Detection, bool) {
	for _, v := range []float64{det.XCenter, det.YCenter, det.Width, det.Height, det.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return plate.Detection{}, false
		}
	}
	hw, hh := det.Width/2, det.Height/2
	out := fromCorners(det.XCenter-hw, det.YCenter-hh, det.XCenter+hw, det.YCenter+hh, 1, det.Confidence)
	if out.Width <= 0 || out.Height <= 0 {
		return plate.Detection{}, false
	}
	return out, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
