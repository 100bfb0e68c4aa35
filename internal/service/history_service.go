package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"placa-service/internal/domain/plate"
	"placa-service/internal/utils"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	maxExportRows       = 10000
)

type HistoryRepository interface {
	FindRecognitions(ctx context.Context, filter plate.HistoryFilter) ([]plate.Recognition, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type HistoryService struct {
	repo HistoryRepository
	log  zerolog.Logger
}

func NewHistoryService(repo HistoryRepository, log zerolog.Logger) *HistoryService {
	return &HistoryService{
		repo: repo,
		log:  log,
	}
}

func (s *HistoryService) FindRecognitions(ctx context.Context, plateQuery, from, to *string, limit, offset int) ([]RecognitionInfo, error) {
	filter, err := buildFilter(plateQuery, from, to)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	recs, err := s.repo.FindRecognitions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find recognitions: %w", err)
	}

	result := make([]RecognitionInfo, 0, len(recs))
	for _, r := range recs {
		result = append(result, toRecognitionInfo(r))
	}
	return result, nil
}

// ExportRecognitions returns every matching entry up to maxExportRows, newest first.
func (s *HistoryService) ExportRecognitions(ctx context.Context, plateQuery, from, to *string) ([]RecognitionInfo, error) {
	filter, err := buildFilter(plateQuery, from, to)
	if err != nil {
		return nil, err
	}
	filter.Limit = maxExportRows

	recs, err := s.repo.FindRecognitions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to export recognitions: %w", err)
	}

	result := make([]RecognitionInfo, 0, len(recs))
	for _, r := range recs {
		result = append(result, toRecognitionInfo(r))
	}
	return result, nil
}

// CleanupOldRecognitions deletes history entries older than days.
func (s *HistoryService) CleanupOldRecognitions(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old recognitions")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old recognitions")
	}
	return deleted, nil
}

func buildFilter(plateQuery, from, to *string) (plate.HistoryFilter, error) {
	var filter plate.HistoryFilter

	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			filter.Plate = &normalized
		}
	}
	if from != nil && strings.TrimSpace(*from) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*from))
		if err != nil {
			return filter, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		filter.From = &t
	}
	if to != nil && strings.TrimSpace(*to) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*to))
		if err != nil {
			return filter, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		filter.To = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fmt.Errorf("%w: to must not be before from", ErrInvalidInput)
	}
	return filter, nil
}

func toRecognitionInfo(r plate.Recognition) RecognitionInfo {
	info := RecognitionInfo{
		ID:             r.ID.String(),
		Plate:          r.Plate,
		Source:         string(r.Source),
		Tipo:           r.Tipo,
		Homolog:        r.Homolog,
		DetectionCount: r.DetectionCount,
		Confidence:     r.Confidence,
		Detections:     r.Detections,
		CreatedAt:      r.CreatedAt,
	}
	if r.VehicleBrand != "" {
		info.VehicleBrand = &r.VehicleBrand
	}
	if r.VehicleModel != "" {
		info.VehicleModel = &r.VehicleModel
	}
	if r.SnapshotURL != "" {
		info.SnapshotURL = &r.SnapshotURL
	}
	if info.Detections == nil {
		info.Detections = []plate.Detection{}
	}
	return info
}

// VehicleLabel joins brand and model for reports, collapsing whitespace.
func (r RecognitionInfo) VehicleLabel() string {
	return formatVehicleInfo(r.VehicleBrand, r.VehicleModel)
}

func formatVehicleInfo(brand, model *string) string {
	parts := make([]string, 0, 2)
	if brand != nil {
		if b := strings.Join(strings.Fields(*brand), " "); b != "" {
			parts = append(parts, b)
		}
	}
	if model != nil {
		if m := strings.Join(strings.Fields(*model), " "); m != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, " ")
}

type RecognitionInfo struct {
	ID             string            `json:"id"`
	Plate          string            `json:"placa"`
	Source         string            `json:"source"`
	Tipo           string            `json:"tipo"`
	Homolog        bool              `json:"homolog"`
	DetectionCount int               `json:"detection_count"`
	Confidence     *float64          `json:"confidence,omitempty"`
	VehicleBrand   *string           `json:"marca,omitempty"`
	VehicleModel   *string           `json:"modelo,omitempty"`
	SnapshotURL    *string           `json:"snapshot_url,omitempty"`
	Detections     []plate.Detection `json:"detections"`
	CreatedAt      time.Time         `json:"created_at"`
}
