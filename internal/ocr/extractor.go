package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/rs/zerolog"

	"placa-service/internal/utils"
)

type Result struct {
	Engine    string
	Available bool
	RawText   string
	Text      string
	Err       error
}

// Extractor wraps a Recognizer and never fails the caller: an unavailable or
// failing engine yields empty text.
type Extractor struct {
	recognizer Recognizer
	log        zerolog.Logger
}

func NewExtractor(recognizer Recognizer, log zerolog.Logger) *Extractor {
	return &Extractor{
		recognizer: recognizer,
		log:        log,
	}
}

func (e *Extractor) Available() bool {
	return e.recognizer != nil && e.recognizer.Available()
}

func (e *Extractor) Extract(ctx context.Context, img *image.Gray) Result {
	if e.recognizer == nil {
		e.log.Warn().Msg("no recognition engine configured")
		return Result{Err: ErrEngineUnavailable}
	}

	res := Result{
		Engine:    e.recognizer.Name(),
		Available: e.recognizer.Available(),
	}
	if !res.Available {
		e.log.Warn().Str("engine", res.Engine).Msg("recognition engine unavailable, returning empty plate text")
		res.Err = ErrEngineUnavailable
		return res
	}
	if img == nil {
		return res
	}

	raw, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		if errors.Is(err, ErrEngineUnavailable) {
			res.Available = false
		}
		e.log.Warn().
			Err(err).
			Str("engine", res.Engine).
			Msg("plate text recognition failed")
		res.Err = err
		return res
	}

	res.RawText = raw
	res.Text = utils.NormalizePlate(raw)
	e.log.Debug().
		Str("engine", res.Engine).
		Str("raw_text", raw).
		Str("text", res.Text).
		Msg("plate text recognized")

	return res
}
