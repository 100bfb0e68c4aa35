package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"placa-service/internal/domain/plate"
	"placa-service/internal/export"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true, ".webp": true,
}

type options struct {
	endpoint string
	dir      string
	out      string
	tipo     string
	homolog  bool
	workers  int
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "url", "http://localhost:8080/plates/detect", "detect endpoint")
	flag.StringVar(&opts.dir, "dir", ".", "directory with vehicle photos")
	flag.StringVar(&opts.out, "out", "", "report path (default batch-<timestamp>.xlsx)")
	flag.StringVar(&opts.tipo, "tipo", plate.DefaultQueryType, "registry query type")
	flag.BoolVar(&opts.homolog, "homolog", false, "send homolog=true")
	flag.IntVar(&opts.workers, "workers", 4, "parallel uploads")
	flag.DurationVar(&opts.timeout, "timeout", 60*time.Second, "per-request timeout")
	flag.Parse()

	if opts.out == "" {
		opts.out = export.Filename("batch", time.Now())
	}

	files, err := listImages(opts.dir)
	if err != nil {
		fmt.Printf("Error reading directory: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No images found in %s\n", opts.dir)
		os.Exit(1)
	}
	fmt.Printf("Found %d images in %s\n", len(files), opts.dir)

	results := run(context.Background(), opts, files)

	out, err := os.Create(opts.out)
	if err != nil {
		fmt.Printf("Error creating report: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := export.WriteBatchReport(out, results); err != nil {
		fmt.Printf("Error writing report: %v\n", err)
		os.Exit(1)
	}

	recognized, failed := 0, 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		} else if r.Placa != "" {
			recognized++
		}
	}
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Images:      %d\n", len(results))
	fmt.Printf("  With plate:  %d\n", recognized)
	fmt.Printf("  Failed:      %d\n", failed)
	fmt.Printf("  Report:      %s\n", opts.out)
	fmt.Println(strings.Repeat("=", 60))
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func run(ctx context.Context, opts options, files []string) []export.BatchRow {
	client := &http.Client{Timeout: opts.timeout}
	results := make([]export.BatchRow, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))

	for i, path := range files {
		g.Go(func() error {
			results[i] = process(ctx, client, opts, path)
			status := "ok"
			if results[i].Error != "" {
				status = results[i].Error
			}
			fmt.Printf("[%d/%d] %-40s %-8s %s\n", i+1, len(files), filepath.Base(path), results[i].Placa, status)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func process(ctx context.Context, client *http.Client, opts options, path string) (row export.BatchRow) {
	row.File = filepath.Base(path)
	started := time.Now()
	defer func() { row.ElapsedMS = time.Since(started).Milliseconds() }()

	body, contentType, err := buildRequest(path, opts)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.endpoint, body)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		row.Error = fmt.Sprintf("request failed: %v", err)
		return row
	}
	defer resp.Body.Close()
	row.Status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		row.Error = fmt.Sprintf("read response: %v", err)
		return row
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			row.Error = apiErr.Error
		} else {
			row.Error = "status " + strconv.Itoa(resp.StatusCode)
		}
		return row
	}

	var result plate.DetectionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		row.Error = fmt.Sprintf("decode response: %v", err)
		return row
	}
	fillRow(&row, &result)
	return row
}

func fillRow(row *export.BatchRow, result *plate.DetectionResponse) {
	row.Placa = result.Placa
	row.Detections = len(result.Data)
	for _, d := range result.Data {
		if d.Resumo.Confidence > row.BestConfidence {
			row.BestConfidence = d.Resumo.Confidence
		}
	}
	if len(result.Data) > 0 {
		row.Marca = result.Data[0].Veiculo.Marca
		row.Modelo = result.Data[0].Veiculo.Modelo
	}
}

func buildRequest(path string, opts options) (io.Reader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("tipo", opts.tipo); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("homolog", strconv.FormatBool(opts.homolog)); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
