package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
)

func TestExtractField(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{}
		keys    []string
		want    string
	}{
		{
			name:    "top level",
			payload: map[string]interface{}{"marca": "FIAT", "modelo": "UNO"},
			keys:    brandKeys,
			want:    "FIAT",
		},
		{
			name: "nested inside data",
			payload: map[string]interface{}{
				"status": "ok",
				"data":   map[string]interface{}{"veiculo": map[string]interface{}{"modelo": "GOL 1.0"}},
			},
			keys: modelKeys,
			want: "GOL 1.0",
		},
		{
			name: "inside a list",
			payload: map[string]interface{}{
				"results": []interface{}{
					map[string]interface{}{"other": 1},
					map[string]interface{}{"brand": "VW"},
				},
			},
			keys: brandKeys,
			want: "VW",
		},
		{
			name: "alias priority beats depth",
			payload: map[string]interface{}{
				"make": "TOP",
				"deep": map[string]interface{}{"marca": "DEEP"},
			},
			keys: brandKeys,
			want: "DEEP",
		},
		{
			name:    "empty value is skipped",
			payload: map[string]interface{}{"marca": "", "info": map[string]interface{}{"marca": "HONDA"}},
			keys:    brandKeys,
			want:    "HONDA",
		},
		{
			name:    "null value is skipped",
			payload: map[string]interface{}{"marca": nil, "brand": "KIA"},
			keys:    brandKeys,
			want:    "KIA",
		},
		{
			name:    "case insensitive key",
			payload: map[string]interface{}{"MARCA": "FORD"},
			keys:    brandKeys,
			want:    "FORD",
		},
		{
			name:    "numeric value",
			payload: map[string]interface{}{"modelo": float64(2012)},
			keys:    modelKeys,
			want:    "2012",
		},
		{
			name:    "no match",
			payload: map[string]interface{}{"cor": "PRATA"},
			keys:    brandKeys,
			want:    "",
		},
		{
			name:    "scalar payload",
			payload: "just text",
			keys:    brandKeys,
			want:    "",
		},
		{
			name:    "nil payload",
			payload: nil,
			keys:    brandKeys,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractField(tt.payload, tt.keys); got != tt.want {
				t.Errorf("ExtractField() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFieldIsDeterministic(t *testing.T) {
	payload := map[string]interface{}{
		"b": map[string]interface{}{"marca": "SECOND"},
		"a": map[string]interface{}{"marca": "FIRST"},
	}
	for i := 0; i < 20; i++ {
		if got := ExtractField(payload, brandKeys); got != "FIRST" {
			t.Fatalf("ExtractField() = %q on run %d, want FIRST", got, i)
		}
	}
}

func TestSummarize(t *testing.T) {
	record := plate.VehicleRecord{
		"response": map[string]interface{}{"marca": "CHEVROLET", "modelo": "ONIX"},
	}
	got := Summarize(record)
	if got.Marca != "CHEVROLET" || got.Modelo != "ONIX" {
		t.Errorf("Summarize() = %+v", got)
	}
	if got.Detalhes == nil {
		t.Error("Summarize() dropped the raw record")
	}

	empty := Summarize(nil)
	if empty.Marca != "" || empty.Modelo != "" || empty.Detalhes != nil {
		t.Errorf("Summarize(nil) = %+v, want zero value", empty)
	}
}

func TestClientFetch(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantRecord  bool
		wantErrText string
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       `{"marca":"FIAT","modelo":"UNO"}`,
			wantRecord: true,
		},
		{
			name:        "non success status",
			status:      http.StatusUnauthorized,
			body:        `{"error":"invalid token"}`,
			wantErrText: "unexpected status code: 401",
		},
		{
			name:        "non json body",
			status:      http.StatusOK,
			body:        `<html>oops</html>`,
			wantErrText: "decode response",
		},
		{
			name:        "json array body",
			status:      http.StatusOK,
			body:        `[1,2,3]`,
			wantErrText: "decode response",
		},
		{
			name:        "json null body",
			status:      http.StatusOK,
			body:        `null`,
			wantErrText: "null body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("Authorization = %q", got)
				}
				var req lookupRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Placa != "ABC1D23" || req.Tipo != "agregados-basica" || !req.Homolog {
					t.Errorf("request = %+v", req)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(config.RegistryConfig{BaseURL: srv.URL, Token: "secret", Timeout: time.Second}, zerolog.Nop())
			record, diag := c.Fetch(context.Background(), "abc1d23", "agregados-basica", true)

			if diag == nil {
				t.Fatal("Fetch() returned nil diagnostics")
			}
			if diag.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", diag.StatusCode, tt.status)
			}
			if diag.Request["placa"] != "ABC1D23" {
				t.Errorf("diagnostic request = %v", diag.Request)
			}
			if tt.wantRecord {
				if record == nil || record["marca"] != "FIAT" {
					t.Errorf("record = %v", record)
				}
				if diag.Error != "" {
					t.Errorf("Error = %q, want empty", diag.Error)
				}
				return
			}
			if record != nil {
				t.Errorf("record = %v, want nil", record)
			}
			if !strings.Contains(diag.Error, tt.wantErrText) {
				t.Errorf("Error = %q, want it to contain %q", diag.Error, tt.wantErrText)
			}
			if diag.ResponsePreview == "" {
				t.Error("ResponsePreview is empty")
			}
		})
	}
}

func TestClientFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(config.RegistryConfig{BaseURL: url, Timeout: time.Second}, zerolog.Nop())
	record, diag := c.Fetch(context.Background(), "ABC1234", "agregados-basica", false)

	if record != nil {
		t.Errorf("record = %v, want nil", record)
	}
	if diag == nil || !strings.Contains(diag.Error, "send request") {
		t.Errorf("diagnostics = %+v, want a send error", diag)
	}
}

func TestClientFetchOmitsAuthorizationWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(config.RegistryConfig{BaseURL: srv.URL}, zerolog.Nop())
	record, _ := c.Fetch(context.Background(), "ABC1234", "agregados-basica", false)
	if record == nil {
		t.Error("record = nil, want empty object")
	}
}

func TestClientFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(config.RegistryConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zerolog.Nop())
	record, diag := c.Fetch(context.Background(), "ABC1234", "agregados-basica", false)
	if record != nil || diag.Error == "" {
		t.Errorf("Fetch() = (%v, %+v), want timeout failure", record, diag)
	}
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(config.RegistryConfig{}, zerolog.Nop())
	if c.Configured() {
		t.Fatal("Configured() = true without base url")
	}
	record, diag := c.Fetch(context.Background(), "ABC1234", "agregados-basica", false)
	if record != nil {
		t.Errorf("record = %v, want nil", record)
	}
	if diag.Skipped == "" || diag.Configured {
		t.Errorf("diagnostics = %+v, want skipped", diag)
	}
}
