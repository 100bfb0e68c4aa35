package config

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DetectorBackendONNX   = "onnx"
	DetectorBackendRemote = "remote"

	OCREngineTesseract   = "tesseract"
	OCREngineRekognition = "rekognition"

	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"

	DBDriverPostgres = "postgres"
	DBDriverMySQL    = "mysql"
)

type HTTPConfig struct {
	Host        string
	Port        int
	MaxUploadMB int
}

type DetectorConfig struct {
	Backend             string
	ModelPath           string
	InferenceURL        string
	ConfidenceThreshold float64
	Device              string
	ImageSize           int
	Timeout             time.Duration
}

type OCRConfig struct {
	Engine         string
	TesseractPath  string
	TesseractLang  string
	AWSRegion      string
	CommandTimeout time.Duration
}

type RegistryConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetentionDays   int
}

type AuthConfig struct {
	AccessSecret string
}

// StorageConfig points at an S3-compatible bucket (Cloudflare R2) for snapshots.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

type Config struct {
	Environment    string
	Debug          bool
	MaxConcurrency int
	HTTP           HTTPConfig
	Detector       DetectorConfig
	OCR            OCRConfig
	Registry       RegistryConfig
	DB             DBConfig
	Auth           AuthConfig
	Storage        StorageConfig
}

// HistoryEnabled reports whether recognitions are written to a database.
func (c *Config) HistoryEnabled() bool {
	return c.DB.DSN != ""
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("PLACAOCR_MAX_UPLOAD_MB", 10)
	v.SetDefault("PLACAOCR_MAX_CONCURRENCY", runtime.NumCPU())

	v.SetDefault("PLACAOCR_DETECTOR_BACKEND", DetectorBackendONNX)
	v.SetDefault("PLACAOCR_MODEL_PATH", "artifacts/license-plate.onnx")
	v.SetDefault("PLACAOCR_CONFIDENCE_THRESHOLD", 0.25)
	v.SetDefault("PLACAOCR_DEVICE", DeviceCPU)
	v.SetDefault("PLACAOCR_IMAGE_SIZE", 0)
	v.SetDefault("PLACAOCR_INFERENCE_TIMEOUT", "30s")

	v.SetDefault("PLACAOCR_OCR_ENGINE", OCREngineTesseract)
	v.SetDefault("PLACAOCR_TESSERACT_PATH", "tesseract")
	v.SetDefault("PLACAOCR_TESSERACT_LANG", "eng")
	v.SetDefault("PLACAOCR_OCR_TIMEOUT", "10s")
	v.SetDefault("AWS_REGION", "us-east-1")

	v.SetDefault("PLACAOCR_APIBRASIL_BASE_URL", "https://gateway.apibrasil.io/api/v2/vehicles/base/001/consulta")
	v.SetDefault("PLACAOCR_APIBRASIL_TIMEOUT", "15s")
	v.SetDefault("PLACAOCR_DEBUG", false)

	v.SetDefault("DB_DRIVER", DBDriverPostgres)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("HISTORY_RETENTION_DAYS", 0)
	v.SetDefault("R2_REGION", "auto")
}

func fromViper(v *viper.Viper) (*Config, error) {
	registryTimeout, err := parseSeconds(v.GetString("PLACAOCR_APIBRASIL_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("PLACAOCR_APIBRASIL_TIMEOUT: %w", err)
	}
	inferenceTimeout, err := parseSeconds(v.GetString("PLACAOCR_INFERENCE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("PLACAOCR_INFERENCE_TIMEOUT: %w", err)
	}
	ocrTimeout, err := parseSeconds(v.GetString("PLACAOCR_OCR_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("PLACAOCR_OCR_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Environment:    v.GetString("APP_ENV"),
		Debug:          v.GetBool("PLACAOCR_DEBUG"),
		MaxConcurrency: v.GetInt("PLACAOCR_MAX_CONCURRENCY"),
		HTTP: HTTPConfig{
			Host:        v.GetString("HTTP_HOST"),
			Port:        v.GetInt("HTTP_PORT"),
			MaxUploadMB: v.GetInt("PLACAOCR_MAX_UPLOAD_MB"),
		},
		Detector: DetectorConfig{
			Backend:             strings.ToLower(strings.TrimSpace(v.GetString("PLACAOCR_DETECTOR_BACKEND"))),
			ModelPath:           v.GetString("PLACAOCR_MODEL_PATH"),
			InferenceURL:        strings.TrimSpace(v.GetString("PLACAOCR_INFERENCE_URL")),
			ConfidenceThreshold: v.GetFloat64("PLACAOCR_CONFIDENCE_THRESHOLD"),
			Device:              strings.ToLower(strings.TrimSpace(v.GetString("PLACAOCR_DEVICE"))),
			ImageSize:           v.GetInt("PLACAOCR_IMAGE_SIZE"),
			Timeout:             inferenceTimeout,
		},
		OCR: OCRConfig{
			Engine:         strings.ToLower(strings.TrimSpace(v.GetString("PLACAOCR_OCR_ENGINE"))),
			TesseractPath:  v.GetString("PLACAOCR_TESSERACT_PATH"),
			TesseractLang:  v.GetString("PLACAOCR_TESSERACT_LANG"),
			AWSRegion:      v.GetString("AWS_REGION"),
			CommandTimeout: ocrTimeout,
		},
		Registry: RegistryConfig{
			BaseURL: strings.TrimSpace(v.GetString("PLACAOCR_APIBRASIL_BASE_URL")),
			Token:   strings.TrimSpace(v.GetString("PLACAOCR_APIBRASIL_TOKEN")),
			Timeout: registryTimeout,
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			RetentionDays:   v.GetInt("HISTORY_RETENTION_DAYS"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:      strings.TrimSpace(v.GetString("R2_ENDPOINT")),
			AccessKey:     strings.TrimSpace(v.GetString("R2_ACCESS_KEY_ID")),
			SecretKey:     strings.TrimSpace(v.GetString("R2_SECRET_ACCESS_KEY")),
			Bucket:        strings.TrimSpace(v.GetString("R2_BUCKET")),
			Region:        strings.TrimSpace(v.GetString("R2_REGION")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("R2_PUBLIC_BASE_URL")), "/"),
		},
	}

	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = runtime.NumCPU()
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 10
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseSeconds accepts both a bare number of seconds ("15") and a duration ("15s").
func parseSeconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(seconds >= 0) || seconds > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func validate(cfg *Config) error {
	switch cfg.Detector.Backend {
	case DetectorBackendONNX:
	case DetectorBackendRemote:
		if cfg.Detector.InferenceURL == "" {
			return fmt.Errorf("PLACAOCR_INFERENCE_URL is required for the remote detector")
		}
	default:
		return fmt.Errorf("unknown PLACAOCR_DETECTOR_BACKEND %q", cfg.Detector.Backend)
	}
	if cfg.Detector.Device != DeviceCPU && cfg.Detector.Device != DeviceCUDA {
		return fmt.Errorf("unknown PLACAOCR_DEVICE %q", cfg.Detector.Device)
	}
	if cfg.Detector.ConfidenceThreshold < 0 || cfg.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("PLACAOCR_CONFIDENCE_THRESHOLD must be within [0,1]")
	}
	if cfg.OCR.Engine != OCREngineTesseract && cfg.OCR.Engine != OCREngineRekognition {
		return fmt.Errorf("unknown PLACAOCR_OCR_ENGINE %q", cfg.OCR.Engine)
	}
	if cfg.HistoryEnabled() {
		if cfg.DB.Driver != DBDriverPostgres && cfg.DB.Driver != DBDriverMySQL {
			return fmt.Errorf("unknown DB_DRIVER %q", cfg.DB.Driver)
		}
		if cfg.Auth.AccessSecret == "" {
			return fmt.Errorf("JWT_ACCESS_SECRET is required when DB_DSN is set")
		}
	}
	return nil
}
