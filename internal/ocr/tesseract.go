package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"placa-service/internal/config"
)

// Tesseract shells out to the tesseract CLI in single-line mode.
type Tesseract struct {
	binary  string
	lang    string
	timeout time.Duration
	log     zerolog.Logger
}

func NewTesseract(cfg config.OCRConfig, log zerolog.Logger) *Tesseract {
	t := &Tesseract{
		lang:    cfg.TesseractLang,
		timeout: cfg.CommandTimeout,
		log:     log,
	}
	if t.lang == "" {
		t.lang = "eng"
	}

	path, err := exec.LookPath(cfg.TesseractPath)
	if err != nil {
		log.Warn().
			Err(err).
			Str("binary", cfg.TesseractPath).
			Msg("tesseract not found, plate text extraction disabled")
		return t
	}
	t.binary = path
	return t
}

func (t *Tesseract) Name() string { return config.OCREngineTesseract }

func (t *Tesseract) Available() bool { return t.binary != "" }

func (t *Tesseract) Recognize(ctx context.Context, img *image.Gray) (string, error) {
	if !t.Available() {
		return "", ErrEngineUnavailable
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.binary,
		"stdin", "stdout",
		"-l", t.lang,
		"--psm", "7",
		"-c", "tessedit_char_whitelist="+plateAlphabet,
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrEngineUnavailable
		}
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
