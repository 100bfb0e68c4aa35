package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
)

// nmsIoU matches the ultralytics predict default.
const nmsIoU = 0.7

// ONNXDetector runs a YOLO ONNX export through OpenCV's DNN module.
type ONNXDetector struct {
	mu            sync.Mutex
	net           *gocv.Net
	modelPath     string
	device        string
	size          int
	confThreshold float32
	log           zerolog.Logger
}

func NewONNXDetector(cfg config.DetectorConfig, log zerolog.Logger) *ONNXDetector {
	d := &ONNXDetector{
		modelPath:     cfg.ModelPath,
		device:        cfg.Device,
		size:          inputSize(cfg),
		confThreshold: float32(cfg.ConfidenceThreshold),
		log:           log,
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		log.Warn().
			Err(err).
			Str("model_path", cfg.ModelPath).
			Msg("detection model file not found, detector disabled")
		return d
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		net.Close()
		log.Warn().
			Str("model_path", cfg.ModelPath).
			Msg("failed to load detection model, detector disabled")
		return d
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if cfg.Device == config.DeviceCUDA {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		log.Warn().Err(err).Str("device", cfg.Device).Msg("failed to set dnn backend")
	}
	if err := net.SetPreferableTarget(target); err != nil {
		log.Warn().Err(err).Str("device", cfg.Device).Msg("failed to set dnn target")
	}

	d.net = &net
	log.Info().
		Str("model_path", cfg.ModelPath).
		Str("device", cfg.Device).
		Int("image_size", d.size).
		Float64("confidence_threshold", cfg.ConfidenceThreshold).
		Msg("detection model loaded")

	return d
}

func (d *ONNXDetector) Name() string { return config.DetectorBackendONNX }

func (d *ONNXDetector) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net != nil
}

func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]plate.Detection, error) {
	if !d.Loaded() {
		return nil, d.unavailable()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: convert image: %v", ErrInference, err)
	}
	defer src.Close()

	blob := gocv.BlobFromImage(src, 1.0/255.0, image.Pt(d.size, d.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	// Close may have released the net since the check above.
	d.mu.Lock()
	if d.net == nil {
		d.mu.Unlock()
		return nil, d.unavailable()
	}
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	if out.Empty() {
		return nil, fmt.Errorf("%w: empty output tensor", ErrInference)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: read output tensor: %v", ErrInference, err)
	}

	candidates, err := decodeYOLO(data, out.Size(), d.confThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	return d.suppress(candidates), nil
}

func (d *ONNXDetector) suppress(candidates []rawBox) []plate.Detection {
	if len(candidates) == 0 {
		return []plate.Detection{}
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = image.Rect(int(c.x1), int(c.y1), int(c.x2), int(c.y2))
		scores[i] = c.score
	}

	keep := gocv.NMSBoxes(boxes, scores, d.confThreshold, nmsIoU)

	size := float64(d.size)
	detections := make([]plate.Detection, 0, len(keep))
	for _, idx := range keep {
		c := candidates[idx]
		detections = append(detections, fromCorners(
			float64(c.x1), float64(c.y1), float64(c.x2), float64(c.y2), size, float64(c.score),
		))
	}
	return detections
}

func (d *ONNXDetector) unavailable() error {
	return fmt.Errorf("%w: load a valid model from %s", ErrModelUnavailable, d.modelPath)
}

func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.net == nil {
		return nil
	}
	err := d.net.Close()
	d.net = nil
	return err
}

type rawBox struct {
	x1, y1, x2, y2 float32
	score          float32
}

// decodeYOLO reads a YOLOv8-style head. Both [1, 4+nc, N] and the transposed
// [1, N, 4+nc] layouts are accepted; rows are (cx, cy, w, h, class scores...).
func decodeYOLO(data []float32, dims []int, threshold float32) ([]rawBox, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	attrs, count := dims[1], dims[2]
	transposed := false
	if attrs > count {
		attrs, count = count, attrs
		transposed = true
	}
	if attrs < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	if len(data) < attrs*count {
		return nil, fmt.Errorf("output tensor has %d values, want %d", len(data), attrs*count)
	}

	at := func(i, k int) float32 {
		if transposed {
			return data[i*attrs+k]
		}
		return data[k*count+i]
	}

	boxes := make([]rawBox, 0)
	for i := 0; i < count; i++ {
		var score float32
		for k := 4; k < attrs; k++ {
			if s := at(i, k); s > score {
				score = s
			}
		}
		if score < threshold {
			continue
		}
		cx, cy, w, h := at(i, 0), at(i, 1), at(i, 2), at(i, 3)
		boxes = append(boxes, rawBox{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: score,
		})
	}

	return boxes, nil
}
