package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"placa-service/internal/domain/plate"
)

func TestRowConversion(t *testing.T) {
	confidence := 0.91
	rec := &plate.Recognition{
		ID:             uuid.New(),
		Plate:          "BRA2E19",
		Source:         plate.PlateSourceExtracted,
		Tipo:           plate.DefaultQueryType,
		DetectionCount: 1,
		Confidence:     &confidence,
		VehicleBrand:   "FIAT",
		VehicleRecord:  plate.VehicleRecord{"marca": "FIAT"},
		Detections:     []plate.Detection{{XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.1, Confidence: 0.91}},
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	row, err := toRow(rec)
	if err != nil {
		t.Fatalf("toRow() error = %v", err)
	}
	if row.VehicleModel != nil {
		t.Errorf("VehicleModel = %v, want nil for empty model", *row.VehicleModel)
	}
	if row.SnapshotURL != nil {
		t.Error("SnapshotURL set for empty url")
	}

	back, err := fromRow(*row)
	if err != nil {
		t.Fatalf("fromRow() error = %v", err)
	}
	if back.Plate != rec.Plate || back.Source != rec.Source || back.VehicleBrand != "FIAT" {
		t.Errorf("fromRow() = %+v", back)
	}
	if back.VehicleRecord["marca"] != "FIAT" {
		t.Errorf("VehicleRecord = %v", back.VehicleRecord)
	}
	if len(back.Detections) != 1 || back.Detections[0].Confidence != 0.91 {
		t.Errorf("Detections = %+v", back.Detections)
	}
}

func TestToRowFillsIDAndTimestamp(t *testing.T) {
	row, err := toRow(&plate.Recognition{Source: plate.PlateSourceNone})
	if err != nil {
		t.Fatalf("toRow() error = %v", err)
	}
	if row.ID == uuid.Nil {
		t.Error("ID not generated")
	}
	if row.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if row.VehicleRecord != nil || row.Detections != nil {
		t.Error("empty payloads should stay NULL")
	}
}

func TestFromRowRejectsCorruptJSON(t *testing.T) {
	_, err := fromRow(Recognition{ID: uuid.New(), Detections: []byte("{not json")})
	if err == nil {
		t.Error("fromRow() error = nil, want decode error")
	}
}

func TestToRowPlateKey(t *testing.T) {
	tests := []struct {
		name string
		rec  plate.Recognition
		want string
	}{
		{name: "derived from manual plate", rec: plate.Recognition{Plate: "ABC-1234"}, want: "ABC1234"},
		{name: "derived from lowercase", rec: plate.Recognition{Plate: "bra 2e19"}, want: "BRA2E19"},
		{name: "explicit key kept", rec: plate.Recognition{Plate: "ABC-1234", PlateKey: "ABC1234"}, want: "ABC1234"},
		{name: "no plate", rec: plate.Recognition{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := toRow(&tt.rec)
			if err != nil {
				t.Fatalf("toRow() error = %v", err)
			}
			if row.PlateKey != tt.want {
				t.Errorf("PlateKey = %q, want %q", row.PlateKey, tt.want)
			}
			if row.Plate != tt.rec.Plate {
				t.Errorf("Plate = %q, want %q unchanged", row.Plate, tt.rec.Plate)
			}
		})
	}
}
