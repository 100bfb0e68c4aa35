package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"placa-service/internal/config"
)

func TestNewR2ClientNotConfigured(t *testing.T) {
	_, err := NewR2Client(config.StorageConfig{Endpoint: "http://localhost", Bucket: "b"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewR2Client() error = %v, want ErrNotConfigured", err)
	}

	var nilClient *R2Client
	if _, err := nilClient.Upload(context.Background(), "k", bytes.NewReader([]byte("x")), 1, "image/png"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Upload() on nil client error = %v, want ErrNotConfigured", err)
	}
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name   string
		public string
		key    string
		want   string
	}{
		{name: "endpoint", key: "plates/a.jpg", want: "https://r2.example.com/snaps/plates/a.jpg"},
		{name: "public base", public: "https://cdn.example.com/", key: "/plates/a.jpg", want: "https://cdn.example.com/snaps/plates/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewR2Client(config.StorageConfig{
				Endpoint:      "https://r2.example.com/",
				AccessKey:     "key",
				SecretKey:     "secret",
				Bucket:        "snaps",
				PublicBaseURL: tt.public,
			})
			if err != nil {
				t.Fatalf("NewR2Client() error = %v", err)
			}
			if got := c.ObjectURL(tt.key); got != tt.want {
				t.Errorf("ObjectURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewR2Client(config.StorageConfig{
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "snaps",
	})
	if err != nil {
		t.Fatalf("NewR2Client() error = %v", err)
	}

	payload := []byte("fake jpeg bytes")
	url, err := c.Upload(context.Background(), "plates/2026/01/02/req.jpg", bytes.NewReader(payload), int64(len(payload)), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/snaps/plates/2026/01/02/req.jpg" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotType != "image/jpeg" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if !bytes.Equal(gotBody, payload) {
		t.Errorf("body = %q", gotBody)
	}
	if url != srv.URL+"/snaps/plates/2026/01/02/req.jpg" {
		t.Errorf("url = %q", url)
	}

	if _, err := c.Upload(context.Background(), "empty", bytes.NewReader(nil), 0, "image/jpeg"); err == nil {
		t.Error("Upload() of empty body error = nil")
	}
}
