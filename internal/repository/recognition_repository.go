package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"placa-service/internal/domain/plate"
	"placa-service/internal/utils"
)

type RecognitionRepository struct {
	db *gorm.DB
}

func NewRecognitionRepository(db *gorm.DB) *RecognitionRepository {
	return &RecognitionRepository{db: db}
}

func (Recognition) TableName() string {
	return "placa_recognitions"
}

type Recognition struct {
	ID             uuid.UUID `gorm:"primaryKey"`
	Plate          string    `gorm:"not null"`
	PlateKey       string    `gorm:"not null"`
	Source         string    `gorm:"not null"`
	Tipo           string    `gorm:"not null"`
	Homolog        bool
	DetectionCount int
	Confidence     *float64
	VehicleBrand   *string
	VehicleModel   *string
	VehicleRecord  datatypes.JSON
	Detections     datatypes.JSON
	SnapshotURL    *string
	CreatedAt      time.Time
}

func (r *RecognitionRepository) CreateRecognition(ctx context.Context, rec *plate.Recognition) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create recognition in database: %w", err)
	}
	rec.ID = row.ID
	return nil
}

func (r *RecognitionRepository) FindRecognitions(ctx context.Context, filter plate.HistoryFilter) ([]plate.Recognition, error) {
	query := r.db.WithContext(ctx).Model(&Recognition{})

	if filter.Plate != nil {
		query = query.Where("plate_key = ?", *filter.Plate)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []Recognition
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]plate.Recognition, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (r *RecognitionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&Recognition{})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func toRow(rec *plate.Recognition) (*Recognition, error) {
	row := &Recognition{
		ID:             rec.ID,
		Plate:          rec.Plate,
		PlateKey:       rec.PlateKey,
		Source:         string(rec.Source),
		Tipo:           rec.Tipo,
		Homolog:        rec.Homolog,
		DetectionCount: rec.DetectionCount,
		Confidence:     rec.Confidence,
		CreatedAt:      rec.CreatedAt,
	}
	if row.PlateKey == "" {
		row.PlateKey = utils.NormalizePlate(rec.Plate)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if rec.VehicleBrand != "" {
		row.VehicleBrand = &rec.VehicleBrand
	}
	if rec.VehicleModel != "" {
		row.VehicleModel = &rec.VehicleModel
	}
	if rec.SnapshotURL != "" {
		row.SnapshotURL = &rec.SnapshotURL
	}
	if len(rec.VehicleRecord) > 0 {
		raw, err := json.Marshal(rec.VehicleRecord)
		if err != nil {
			return nil, fmt.Errorf("marshal vehicle record: %w", err)
		}
		row.VehicleRecord = datatypes.JSON(raw)
	}
	if len(rec.Detections) > 0 {
		raw, err := json.Marshal(rec.Detections)
		if err != nil {
			return nil, fmt.Errorf("marshal detections: %w", err)
		}
		row.Detections = datatypes.JSON(raw)
	}
	return row, nil
}

func fromRow(row Recognition) (plate.Recognition, error) {
	rec := plate.Recognition{
		ID:             row.ID,
		Plate:          row.Plate,
		PlateKey:       row.PlateKey,
		Source:         plate.PlateSource(row.Source),
		Tipo:           row.Tipo,
		Homolog:        row.Homolog,
		DetectionCount: row.DetectionCount,
		Confidence:     row.Confidence,
		CreatedAt:      row.CreatedAt,
	}
	if row.VehicleBrand != nil {
		rec.VehicleBrand = *row.VehicleBrand
	}
	if row.VehicleModel != nil {
		rec.VehicleModel = *row.VehicleModel
	}
	if row.SnapshotURL != nil {
		rec.SnapshotURL = *row.SnapshotURL
	}
	if len(row.VehicleRecord) > 0 {
		if err := json.Unmarshal(row.VehicleRecord, &rec.VehicleRecord); err != nil {
			return rec, fmt.Errorf("decode vehicle record %s: %w", row.ID, err)
		}
	}
	if len(row.Detections) > 0 {
		if err := json.Unmarshal(row.Detections, &rec.Detections); err != nil {
			return rec, fmt.Errorf("decode detections %s: %w", row.ID, err)
		}
	}
	return rec, nil
}
