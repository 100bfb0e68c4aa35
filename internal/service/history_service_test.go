package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"placa-service/internal/domain/plate"
)

var fixedTime = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type fakeHistoryRepo struct {
	filter plate.HistoryFilter
	recs   []plate.Recognition
	cutoff time.Time
	err    error
}

func (f *fakeHistoryRepo) FindRecognitions(ctx context.Context, filter plate.HistoryFilter) ([]plate.Recognition, error) {
	f.filter = filter
	return f.recs, f.err
}

func (f *fakeHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestFormatVehicleInfo(t *testing.T) {
	tests := []struct {
		name     string
		brand    *string
		model    *string
		expected string
	}{
		{name: "both brand and model", brand: stringPtr("FIAT"), model: stringPtr("UNO"), expected: "FIAT UNO"},
		{name: "only brand", brand: stringPtr("FIAT"), expected: "FIAT"},
		{name: "only model", model: stringPtr("UNO"), expected: "UNO"},
		{name: "both empty", expected: ""},
		{name: "brand with spaces", brand: stringPtr("  FIAT  "), model: stringPtr("  UNO  "), expected: "FIAT UNO"},
		{name: "brand with double spaces", brand: stringPtr("VW   GOL"), model: stringPtr("1.0"), expected: "VW GOL 1.0"},
		{name: "empty strings", brand: stringPtr(""), model: stringPtr(""), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatVehicleInfo(tt.brand, tt.model); got != tt.expected {
				t.Errorf("formatVehicleInfo() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFindRecognitions(t *testing.T) {
	tests := []struct {
		name       string
		plate      *string
		from, to   *string
		limit      int
		offset     int
		wantErr    error
		wantLimit  int
		wantOffset int
		wantPlate  string
	}{
		{name: "defaults", wantLimit: 50},
		{name: "limit capped", limit: 500, wantLimit: 100},
		{name: "negative offset", limit: 10, offset: -4, wantLimit: 10},
		{name: "plate normalized", plate: stringPtr("abc-1234"), wantLimit: 50, wantPlate: "ABC1234"},
		{name: "offset kept", offset: 20, wantLimit: 50, wantOffset: 20},
		{name: "bad from", from: stringPtr("yesterday"), wantErr: ErrInvalidInput},
		{name: "bad to", to: stringPtr("2026-13-01"), wantErr: ErrInvalidInput},
		{
			name:    "inverted range",
			from:    stringPtr("2026-03-04T00:00:00Z"),
			to:      stringPtr("2026-03-01T00:00:00Z"),
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeHistoryRepo{recs: []plate.Recognition{{ID: uuid.New(), Plate: "ABC1234", CreatedAt: fixedTime}}}
			svc := NewHistoryService(repo, zerolog.Nop())

			got, err := svc.FindRecognitions(context.Background(), tt.plate, tt.from, tt.to, tt.limit, tt.offset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindRecognitions() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindRecognitions() error = %v", err)
			}
			if len(got) != 1 || got[0].Detections == nil {
				t.Errorf("FindRecognitions() = %+v", got)
			}
			if repo.filter.Limit != tt.wantLimit || repo.filter.Offset != tt.wantOffset {
				t.Errorf("limit/offset = %d/%d, want %d/%d", repo.filter.Limit, repo.filter.Offset, tt.wantLimit, tt.wantOffset)
			}
			if tt.wantPlate != "" && (repo.filter.Plate == nil || *repo.filter.Plate != tt.wantPlate) {
				t.Errorf("plate filter = %v, want %q", repo.filter.Plate, tt.wantPlate)
			}
		})
	}
}

func TestExportRecognitionsUsesExportCap(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := NewHistoryService(repo, zerolog.Nop())

	if _, err := svc.ExportRecognitions(context.Background(), nil, nil, nil); err != nil {
		t.Fatalf("ExportRecognitions() error = %v", err)
	}
	if repo.filter.Limit != maxExportRows {
		t.Errorf("limit = %d, want %d", repo.filter.Limit, maxExportRows)
	}
}

func TestCleanupOldRecognitions(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := NewHistoryService(repo, zerolog.Nop())

	deleted, err := svc.CleanupOldRecognitions(context.Background(), 30)
	if err != nil {
		t.Fatalf("CleanupOldRecognitions() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	age := time.Since(repo.cutoff)
	if age < 29*24*time.Hour || age > 31*24*time.Hour {
		t.Errorf("cutoff %v is not about 30 days ago", repo.cutoff)
	}

	if _, err := svc.CleanupOldRecognitions(context.Background(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("CleanupOldRecognitions(0) error = %v, want ErrInvalidInput", err)
	}
}

func stringPtr(s string) *string {
	return &s
}

// memoryHistory records like the pipeline does and filters like the gorm
// repository: exact match on the plate key.
type memoryHistory struct {
	recs []plate.Recognition
}

func (m *memoryHistory) CreateRecognition(ctx context.Context, rec *plate.Recognition) error {
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memoryHistory) FindRecognitions(ctx context.Context, filter plate.HistoryFilter) ([]plate.Recognition, error) {
	var out []plate.Recognition
	for _, r := range m.recs {
		if filter.Plate != nil && r.PlateKey != *filter.Plate {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryHistory) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestHistoryFindsManualPlateWithSeparator(t *testing.T) {
	store := &memoryHistory{}
	f := newFixture()
	deps := Dependencies{
		Detector:  f.detector,
		Preparer:  f.preparer,
		Extractor: f.extractor,
		Registry:  f.registry,
		History:   store,
	}
	plates := NewPlateService(deps, Options{MaxConcurrency: 1}, zerolog.Nop())

	resp, err := plates.Detect(context.Background(), plate.DetectRequest{
		ImageData:   pngBytes(t, 100, 100),
		ManualPlate: " abc-1234 ",
	})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if resp.Placa != "ABC-1234" {
		t.Fatalf("Placa = %q, want ABC-1234", resp.Placa)
	}
	if len(store.recs) != 1 || store.recs[0].PlateKey != "ABC1234" {
		t.Fatalf("stored = %+v, want one entry keyed ABC1234", store.recs)
	}

	history := NewHistoryService(store, zerolog.Nop())
	for _, query := range []string{"ABC-1234", "abc1234", "ABC 1234"} {
		t.Run(query, func(t *testing.T) {
			got, err := history.FindRecognitions(context.Background(), stringPtr(query), nil, nil, 0, 0)
			if err != nil {
				t.Fatalf("FindRecognitions() error = %v", err)
			}
			if len(got) != 1 || got[0].Plate != "ABC-1234" {
				t.Errorf("FindRecognitions(%q) = %+v, want the manual entry", query, got)
			}
		})
	}
}
