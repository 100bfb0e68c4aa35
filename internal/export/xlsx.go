package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"placa-service/internal/service"
)

const (
	historySheet = "Recognitions"
	batchSheet   = "Batch"
	timeLayout   = "2006-01-02 15:04:05"
)

var historyHeader = []interface{}{
	"ID", "Placa", "Source", "Tipo", "Homolog", "Detections", "Confidence", "Vehicle", "Snapshot", "Created at (UTC)",
}

var batchHeader = []interface{}{
	"File", "HTTP status", "Placa", "Detections", "Best confidence", "Marca", "Modelo", "Elapsed (ms)", "Error",
}

// BatchRow is one image processed by the batch tool.
type BatchRow struct {
	File           string
	Status         int
	Placa          string
	Detections     int
	BestConfidence float64
	Marca          string
	Modelo         string
	ElapsedMS      int64
	Error          string
}

// WriteRecognitions renders history entries as a single-sheet workbook.
func WriteRecognitions(w io.Writer, items []service.RecognitionInfo) error {
	rows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		confidence := ""
		if it.Confidence != nil {
			confidence = strconv.FormatFloat(*it.Confidence, 'f', 4, 64)
		}
		snapshot := ""
		if it.SnapshotURL != nil {
			snapshot = *it.SnapshotURL
		}
		rows = append(rows, []interface{}{
			it.ID,
			it.Plate,
			it.Source,
			it.Tipo,
			it.Homolog,
			it.DetectionCount,
			confidence,
			it.VehicleLabel(),
			snapshot,
			it.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return writeSheet(w, historySheet, historyHeader, rows)
}

// WriteBatchReport renders batch results, one row per file.
func WriteBatchReport(w io.Writer, results []BatchRow) error {
	rows := make([][]interface{}, 0, len(results))
	for _, r := range results {
		rows = append(rows, []interface{}{
			r.File,
			r.Status,
			r.Placa,
			r.Detections,
			r.BestConfidence,
			r.Marca,
			r.Modelo,
			r.ElapsedMS,
			r.Error,
		})
	}
	return writeSheet(w, batchSheet, batchHeader, rows)
}

func writeSheet(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename builds a timestamped download name such as recognitions-20260102-150405.xlsx.
func Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", prefix, now.UTC().Format("20060102-150405"))
}
