package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"placa-service/internal/detector"
	"placa-service/internal/domain/plate"
	"placa-service/internal/ocr"
	"placa-service/internal/registry"
	"placa-service/internal/utils"
	"placa-service/internal/vision"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidImage     = vision.ErrInvalidImage
	ErrModelUnavailable = detector.ErrModelUnavailable
	ErrInference        = detector.ErrInference
)

const persistTimeout = 10 * time.Second

type PlateDetector interface {
	Detect(ctx context.Context, img image.Image) ([]plate.Detection, error)
	Loaded() bool
	Name() string
}

// healthChecker is implemented by detectors backed by a separate process.
type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

type CropPreparer interface {
	Prepare(img image.Image, region plate.PixelRegion) (*vision.Prepared, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, img *image.Gray) ocr.Result
	Available() bool
}

type VehicleRegistry interface {
	Fetch(ctx context.Context, placa, tipo string, homolog bool) (plate.VehicleRecord, *plate.RegistryDiagnostics)
	Configured() bool
}

type RecognitionRecorder interface {
	CreateRecognition(ctx context.Context, rec *plate.Recognition) error
}

type SnapshotStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Dependencies wires the pipeline stages. History and Snapshots are optional.
type Dependencies struct {
	Detector  PlateDetector
	Preparer  CropPreparer
	Extractor TextExtractor
	Registry  VehicleRegistry
	History   RecognitionRecorder
	Snapshots SnapshotStore
}

type Options struct {
	Debug          bool
	MaxConcurrency int
}

type PlateService struct {
	detector  PlateDetector
	preparer  CropPreparer
	extractor TextExtractor
	registry  VehicleRegistry
	history   RecognitionRecorder
	snapshots SnapshotStore
	cpu       *semaphore.Weighted
	debug     bool
	log       zerolog.Logger
}

func NewPlateService(deps Dependencies, opts Options, log zerolog.Logger) *PlateService {
	workers := opts.MaxConcurrency
	if workers <= 0 {
		workers = 1
	}
	return &PlateService{
		detector:  deps.Detector,
		preparer:  deps.Preparer,
		extractor: deps.Extractor,
		registry:  deps.Registry,
		history:   deps.History,
		snapshots: deps.Snapshots,
		cpu:       semaphore.NewWeighted(int64(workers)),
		debug:     opts.Debug,
		log:       log,
	}
}

func (s *PlateService) ModelLoaded() bool {
	return s.detector != nil && s.detector.Loaded()
}

// DetectorHealth fails when the model is not loaded or a remote backend does
// not answer its health probe.
func (s *PlateService) DetectorHealth(ctx context.Context) error {
	if !s.ModelLoaded() {
		return ErrModelUnavailable
	}
	hc, ok := s.detector.(healthChecker)
	if !ok {
		return nil
	}
	if err := hc.CheckHealth(ctx); err != nil {
		return fmt.Errorf("%w: %s health check: %v", ErrModelUnavailable, s.detector.Name(), err)
	}
	return nil
}

func (s *PlateService) RegistryConfigured() bool {
	return s.registry != nil && s.registry.Configured()
}

func (s *PlateService) OCRAvailable() bool {
	return s.extractor != nil && s.extractor.Available()
}

// Detect runs the full pipeline for one uploaded photo. Only a missing model,
// an undecodable image or an inference failure abort the request; every other
// stage degrades to its empty value.
func (s *PlateService) Detect(ctx context.Context, req plate.DetectRequest) (*plate.DetectionResponse, error) {
	started := time.Now()

	diag := &plate.Diagnostics{
		RequestID: uuid.NewString(),
		Image: plate.ImageInfo{
			Filename:  req.Filename,
			SizeBytes: len(req.ImageData),
		},
	}

	tipo := strings.TrimSpace(req.Tipo)
	if tipo == "" {
		tipo = plate.DefaultQueryType
	}

	if !s.ModelLoaded() {
		return nil, fmt.Errorf("%w: load a valid model via PLACAOCR_MODEL_PATH", ErrModelUnavailable)
	}

	img, format, err := vision.DecodeImage(req.ImageData)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("request_id", diag.RequestID).
			Str("filename", req.Filename).
			Int("size_bytes", len(req.ImageData)).
			Msg("rejected upload that is not a valid image")
		return nil, err
	}
	bounds := img.Bounds()
	diag.Image.Format = format
	diag.Image.Width = bounds.Dx()
	diag.Image.Height = bounds.Dy()

	if err := s.cpu.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	detections, extracted, err := s.recognize(ctx, img, diag)
	s.cpu.Release(1)
	if err != nil {
		return nil, err
	}

	placa, source := resolvePlate(req.ManualPlate, extracted, req.Homolog)
	diag.Plate = plate.PlateDiagnostics{
		Source:    source,
		Manual:    utils.NormalizeManualPlate(req.ManualPlate),
		Extracted: extracted,
		Homolog:   req.Homolog,
		Value:     placa,
	}

	var record plate.VehicleRecord
	if placa != "" && s.registry != nil {
		var regDiag *plate.RegistryDiagnostics
		record, regDiag = s.registry.Fetch(ctx, placa, tipo, req.Homolog)
		diag.Registry = regDiag
	}

	summary := registry.Summarize(record)
	resp := plate.NewDetectionResponse(placa, detections, summary)

	s.persist(ctx, req, format, tipo, source, resp, detections, summary, diag)

	diag.ElapsedMS = float64(time.Since(started).Microseconds()) / 1000
	if s.debug {
		resp.Debug = diag
	}

	s.log.Info().
		Str("request_id", diag.RequestID).
		Str("placa", placa).
		Str("source", string(source)).
		Int("detections", len(detections)).
		Bool("vehicle_found", record != nil).
		Float64("elapsed_ms", diag.ElapsedMS).
		Msg("plate detection completed")

	return resp, nil
}

// recognize runs the CPU-bound stages: detection, candidate selection, crop
// mapping, preprocessing and text extraction.
func (s *PlateService) recognize(ctx context.Context, img image.Image, diag *plate.Diagnostics) ([]plate.Detection, string, error) {
	detections, err := s.detector.Detect(ctx, img)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		s.log.Error().
			Err(err).
			Str("request_id", diag.RequestID).
			Str("detector", s.detector.Name()).
			Msg("plate detection failed")
		if errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrInference) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	if detections == nil {
		detections = []plate.Detection{}
	}
	diag.Detection.Count = len(detections)

	if s.extractor != nil {
		diag.OCR.Available = s.extractor.Available()
	}

	candidate, ok := vision.SelectCandidate(detections)
	if !ok {
		s.log.Debug().Str("request_id", diag.RequestID).Msg("no plate detected")
		return detections, "", nil
	}
	diag.Detection.Candidate = &candidate

	bounds := img.Bounds()
	region, valid := vision.MapRegion(candidate, bounds.Dx(), bounds.Dy())
	diag.Detection.Region = &region
	diag.Detection.RegionValid = valid
	if !valid {
		s.log.Warn().
			Str("request_id", diag.RequestID).
			Float64("x_center", candidate.XCenter).
			Float64("y_center", candidate.YCenter).
			Float64("width", candidate.Width).
			Float64("height", candidate.Height).
			Float64("confidence", candidate.Confidence).
			Msg("degenerate crop region, skipping text extraction")
		return detections, "", nil
	}

	if s.preparer == nil || s.extractor == nil {
		return detections, "", nil
	}

	prepared, err := s.preparer.Prepare(img, region)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("request_id", diag.RequestID).
			Int("x1", region.X1).
			Int("y1", region.Y1).
			Int("x2", region.X2).
			Int("y2", region.Y2).
			Msg("plate crop preprocessing failed")
		return detections, "", nil
	}

	res := s.extractor.Extract(ctx, prepared.Image)
	diag.OCR = plate.OCRDiagnostics{
		Engine:    res.Engine,
		Available: res.Available,
		Attempted: true,
		RawText:   res.RawText,
		Text:      res.Text,
	}
	if res.Err != nil {
		diag.OCR.Error = res.Err.Error()
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.log.Debug().
		Str("request_id", diag.RequestID).
		Str("raw_text", res.RawText).
		Str("text", res.Text).
		Float64("confidence", candidate.Confidence).
		Msg("plate text extracted")

	return detections, res.Text, nil
}

// resolvePlate applies manual > extracted > homolog placeholder precedence.
func resolvePlate(manual, extracted string, homolog bool) (string, plate.PlateSource) {
	if m := utils.NormalizeManualPlate(manual); m != "" {
		return m, plate.PlateSourceManual
	}
	if extracted != "" {
		return extracted, plate.PlateSourceExtracted
	}
	if homolog {
		return plate.HomologPlate, plate.PlateSourceHomolog
	}
	return "", plate.PlateSourceNone
}

// persist stores the snapshot and the history entry. Failures are logged and
// never reach the caller; a disconnected client does not cancel the writes.
func (s *PlateService) persist(
	ctx context.Context,
	req plate.DetectRequest,
	format, tipo string,
	source plate.PlateSource,
	resp *plate.DetectionResponse,
	detections []plate.Detection,
	summary plate.VehicleSummary,
	diag *plate.Diagnostics,
) {
	if s.snapshots == nil && s.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if s.snapshots != nil {
		key := snapshotKey(diag.RequestID, format, time.Now().UTC())
		url, err := s.snapshots.Upload(ctx, key, bytes.NewReader(req.ImageData), int64(len(req.ImageData)), snapshotContentType(req.ContentType, format))
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("request_id", diag.RequestID).
				Str("key", key).
				Msg("failed to upload snapshot")
		} else {
			diag.Snapshot = url
		}
	}

	if s.history == nil {
		return
	}

	rec := &plate.Recognition{
		ID:             uuid.New(),
		Plate:          resp.Placa,
		PlateKey:       utils.NormalizePlate(resp.Placa),
		Source:         source,
		Tipo:           tipo,
		Homolog:        req.Homolog,
		DetectionCount: len(detections),
		VehicleBrand:   summary.Marca,
		VehicleModel:   summary.Modelo,
		VehicleRecord:  summary.Detalhes,
		Detections:     detections,
		SnapshotURL:    diag.Snapshot,
		CreatedAt:      time.Now(),
	}
	if diag.Detection.Candidate != nil {
		confidence := diag.Detection.Candidate.Confidence
		rec.Confidence = &confidence
	}

	if err := s.history.CreateRecognition(ctx, rec); err != nil {
		s.log.Warn().
			Err(err).
			Str("request_id", diag.RequestID).
			Str("placa", resp.Placa).
			Msg("failed to record recognition history")
		return
	}

	s.log.Debug().
		Str("request_id", diag.RequestID).
		Str("recognition_id", rec.ID.String()).
		Msg("recognition recorded")
}

func snapshotKey(requestID, format string, now time.Time) string {
	ext := format
	switch ext {
	case "":
		ext = "bin"
	case "jpeg":
		ext = "jpg"
	}
	return fmt.Sprintf("plates/%s/%s.%s", now.Format("2006/01/02"), requestID, ext)
}

func snapshotContentType(declared, format string) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if format == "" {
		return "application/octet-stream"
	}
	return "image/" + format
}
