package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"github.com/sunshineplan/imgconv"

	"placa-service/internal/config"
)

var ErrEngineUnavailable = errors.New("recognition engine unavailable")

const plateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Recognizer reads a single line of text from a binarized plate crop.
type Recognizer interface {
	Recognize(ctx context.Context, img *image.Gray) (string, error)
	Available() bool
	Name() string
}

func New(ctx context.Context, cfg config.OCRConfig, log zerolog.Logger) (Recognizer, error) {
	switch cfg.Engine {
	case config.OCREngineTesseract:
		return NewTesseract(cfg, log), nil
	case config.OCREngineRekognition:
		return NewRekognition(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
