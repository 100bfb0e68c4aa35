package plate

import (
	"time"

	"github.com/google/uuid"
)

// HomologPlate is returned for homologation requests when no other source produced text.
const HomologPlate = "ABC1234"

// DefaultQueryType is the registry query category used when the client omits tipo.
const DefaultQueryType = "agregados-basica"

type Detection struct {
	XCenter    float64 `json:"x_center"`
	YCenter    float64 `json:"y_center"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

type PixelRegion struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r PixelRegion) Width() int  { return r.X2 - r.X1 }
func (r PixelRegion) Height() int { return r.Y2 - r.Y1 }

// Valid reports whether the region has a positive area.
func (r PixelRegion) Valid() bool {
	return r.X2 > r.X1 && r.Y2 > r.Y1
}

// VehicleRecord is the registry payload as decoded from JSON.
type VehicleRecord map[string]interface{}

type VehicleSummary struct {
	Marca    string        `json:"marca"`
	Modelo   string        `json:"modelo"`
	Detalhes VehicleRecord `json:"detalhes"`
}

type DetectionData struct {
	Resumo  Detection      `json:"resumo"`
	Veiculo VehicleSummary `json:"veiculo"`
}

type DetectionResponse struct {
	Placa string          `json:"placa"`
	Data  []DetectionData `json:"data"`
	Debug *Diagnostics    `json:"debug,omitempty"`
}

// NewDetectionResponse attaches the same vehicle summary to every detection.
func NewDetectionResponse(placa string, detections []Detection, vehicle VehicleSummary) *DetectionResponse {
	items := make([]DetectionData, 0, len(detections))
	for _, d := range detections {
		items = append(items, DetectionData{Resumo: d, Veiculo: vehicle})
	}
	return &DetectionResponse{
		Placa: placa,
		Data:  items,
	}
}

type DetectRequest struct {
	ImageData   []byte
	Filename    string
	ContentType string
	Tipo        string
	Homolog     bool
	ManualPlate string
}

type PlateSource string

const (
	PlateSourceNone      PlateSource = "none"
	PlateSourceManual    PlateSource = "manual"
	PlateSourceExtracted PlateSource = "extracted"
	PlateSourceHomolog   PlateSource = "homolog"
)

type ImageInfo struct {
	Filename  string `json:"filename,omitempty"`
	Format    string `json:"format,omitempty"`
	SizeBytes int    `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type DetectionDiagnostics struct {
	Count       int          `json:"count"`
	Candidate   *Detection   `json:"candidate,omitempty"`
	Region      *PixelRegion `json:"region,omitempty"`
	RegionValid bool         `json:"region_valid"`
}

type OCRDiagnostics struct {
	Engine    string `json:"engine,omitempty"`
	Available bool   `json:"available"`
	Attempted bool   `json:"attempted"`
	RawText   string `json:"raw_text,omitempty"`
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
}

type PlateDiagnostics struct {
	Source    PlateSource `json:"source"`
	Manual    string      `json:"manual,omitempty"`
	Extracted string      `json:"extracted,omitempty"`
	Homolog   bool        `json:"homolog"`
	Value     string      `json:"value"`
}

type RegistryDiagnostics struct {
	Configured      bool                   `json:"configured"`
	Skipped         string                 `json:"skipped,omitempty"`
	URL             string                 `json:"url,omitempty"`
	Request         map[string]interface{} `json:"request,omitempty"`
	StatusCode      int                    `json:"status_code,omitempty"`
	ElapsedMS       float64                `json:"elapsed_ms"`
	ResponsePreview string                 `json:"response_preview,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// Diagnostics is built for every request and serialized only in debug mode.
type Diagnostics struct {
	RequestID string               `json:"request_id"`
	Image     ImageInfo            `json:"image"`
	Detection DetectionDiagnostics `json:"detection"`
	OCR       OCRDiagnostics       `json:"ocr"`
	Plate     PlateDiagnostics     `json:"plate"`
	Registry  *RegistryDiagnostics `json:"registry,omitempty"`
	Snapshot  string               `json:"snapshot_url,omitempty"`
	ElapsedMS float64              `json:"elapsed_ms"`
}

// Recognition is the write-only history entry produced for each request.
type Recognition struct {
	ID             uuid.UUID
	Plate          string
	PlateKey       string // Plate reduced to [A-Z0-9]; history lookups match on it
	Source         PlateSource
	Tipo           string
	Homolog        bool
	DetectionCount int
	Confidence     *float64
	VehicleBrand   string
	VehicleModel   string
	VehicleRecord  VehicleRecord
	Detections     []Detection
	SnapshotURL    string
	CreatedAt      time.Time
}

// HistoryFilter narrows a history listing. Nil bounds are open.
type HistoryFilter struct {
	Plate  *string // sanitized key, compared against Recognition.PlateKey
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
