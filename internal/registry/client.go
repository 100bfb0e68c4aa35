package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
)

const (
	defaultTimeout  = 10 * time.Second
	previewLimit    = 500
	maxResponseBody = 4 << 20
)

// Client queries the API Brasil vehicle endpoint. A single attempt is made per
// lookup; every failure is reported through diagnostics instead of an error.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.RegistryConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSpace(cfg.BaseURL),
		token:   strings.TrimSpace(cfg.Token),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

type lookupRequest struct {
	Tipo    string `json:"tipo"`
	Placa   string `json:"placa"`
	Homolog bool   `json:"homolog"`
}

// Fetch looks up the vehicle registered under placa. The record is nil on any
// failure; the diagnostics fragment is always returned.
func (c *Client) Fetch(ctx context.Context, placa, tipo string, homolog bool) (plate.VehicleRecord, *plate.RegistryDiagnostics) {
	diag := &plate.RegistryDiagnostics{Configured: c.Configured()}

	if !c.Configured() {
		diag.Skipped = "registry base url not configured"
		c.log.Debug().Msg("registry client not configured, skipping lookup")
		return nil, diag
	}
	if placa == "" {
		diag.Skipped = "empty plate"
		return nil, diag
	}

	payload := lookupRequest{
		Tipo:    tipo,
		Placa:   strings.ToUpper(placa),
		Homolog: homolog,
	}
	diag.URL = c.baseURL
	diag.Request = map[string]interface{}{
		"tipo":    payload.Tipo,
		"placa":   payload.Placa,
		"homolog": payload.Homolog,
	}

	started := time.Now()
	defer func() {
		diag.ElapsedMS = float64(time.Since(started).Microseconds()) / 1000
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		diag.Error = fmt.Sprintf("encode request: %v", err)
		return nil, diag
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		diag.Error = fmt.Sprintf("create request: %v", err)
		return nil, diag
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		diag.Error = fmt.Sprintf("send request: %v", err)
		c.log.Warn().Err(err).Str("placa", payload.Placa).Msg("registry lookup failed")
		return nil, diag
	}
	defer resp.Body.Close()

	diag.StatusCode = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		diag.Error = fmt.Sprintf("read response: %v", err)
		c.log.Warn().Err(err).Str("placa", payload.Placa).Msg("registry response could not be read")
		return nil, diag
	}
	diag.ResponsePreview = preview(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("placa", payload.Placa).
			Msg("registry lookup returned non-success status")
		return nil, diag
	}

	var record plate.VehicleRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		diag.Error = fmt.Sprintf("decode response: %v", err)
		c.log.Warn().Err(err).Str("placa", payload.Placa).Msg("registry response is not a JSON object")
		return nil, diag
	}
	if record == nil {
		diag.Error = "decode response: null body"
		return nil, diag
	}

	c.log.Debug().
		Str("placa", payload.Placa).
		Int("status", resp.StatusCode).
		Int("fields", len(record)).
		Msg("registry lookup succeeded")

	return record, diag
}

func preview(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
