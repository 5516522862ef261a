package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/klauspost/compress/gzip"
)

// DetectionsPath is the collector's ingestion route.
const DetectionsPath = "/api/detections"

// HTTPExporter posts a batch as a JSON array to {BaseURL}/api/detections.
type HTTPExporter struct {
	BaseURL string
	Gzip    bool
	Client  *http.Client
}

func NewHTTPExporter(baseURL string, gz bool) *HTTPExporter {
	return &HTTPExporter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Gzip:    gz,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Export sends batch and decodes the echoed records. Anything but a 200 is
// reported as types.ErrExportFailed.
func (e *HTTPExporter) Export(ctx context.Context, batch []types.DetectionEvent) ([]types.DetectionRecord, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	var body io.Reader = bytes.NewReader(payload)
	if e.Gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress batch: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+DetectionsPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExportFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", types.ErrExportFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var records []types.DetectionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode echo: %v", types.ErrExportFailed, err)
	}
	return records, nil
}
