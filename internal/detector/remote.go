package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sunshineplan/imgconv"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
)

// RemoteDetector forwards images to an HTTP inference sidecar that hosts the
// model and answers with normalized detections.
type RemoteDetector struct {
	endpoint   string
	client     *http.Client
	confidence float64
	size       int
	device     string
	log        zerolog.Logger
}

type remoteResponse struct {
	Detections []plate.Detection `json:"detections"`
}

func NewRemoteDetector(cfg config.DetectorConfig, log zerolog.Logger) *RemoteDetector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteDetector{
		endpoint:   cfg.InferenceURL,
		client:     &http.Client{Timeout: timeout},
		confidence: cfg.ConfidenceThreshold,
		size:       inputSize(cfg),
		device:     cfg.Device,
		log:        log,
	}
}

func (d *RemoteDetector) Name() string { return config.DetectorBackendRemote }

func (d *RemoteDetector) Loaded() bool { return d.endpoint != "" }

func (d *RemoteDetector) Close() error { return nil }

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]plate.Detection, error) {
	if !d.Loaded() {
		return nil, ErrModelUnavailable
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imgconv.Write(part, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return nil, fmt.Errorf("%w: encode image: %v", ErrInference, err)
	}
	fields := map[string]string{
		"conf":   strconv.FormatFloat(d.confidence, 'f', -1, 64),
		"imgsz":  strconv.Itoa(d.size),
		"device": d.device,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: send request: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: inference service reports model not loaded", ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: inference service returned status %d", ErrInference, resp.StatusCode)
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInference, err)
	}

	detections := make([]plate.Detection, 0, len(result.Detections))
	for _, raw := range result.Detections {
		det, ok := sanitize(raw)
		if !ok {
			d.log.Warn().
				Float64("x_center", raw.XCenter).
				Float64("y_center", raw.YCenter).
				Float64("width", raw.Width).
				Float64("height", raw.Height).
				Float64("confidence", raw.Confidence).
				Msg("dropping malformed detection from inference service")
			continue
		}
		if det.Confidence < d.confidence {
			continue
		}
		detections = append(detections, det)
	}

	return detections, nil
}

// CheckHealth probes GET /health on the sidecar host.
func (d *RemoteDetector) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return fmt.Errorf("parse inference url: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
