package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// maxBody caps a single batch, compressed or not.
const maxBody = 10 << 20

// Handler serves the ingestion routes.
type Handler struct {
	logger   *slog.Logger
	received atomic.Int64
}

// PostDetections accepts a JSON array of detection events, assigns each an id
// and echoes the records back with 200.
func (h *Handler) PostDetections(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxBody)
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(body)
		if err != nil {
			http.Error(w, "invalid gzip body", http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = io.LimitReader(zr, maxBody)
	}

	var batch []types.DetectionEvent
	if err := json.NewDecoder(body).Decode(&batch); err != nil {
		http.Error(w, "invalid batch: "+err.Error(), http.StatusBadRequest)
		return
	}

	records := make([]types.DetectionRecord, 0, len(batch))
	for i, ev := range batch {
		if err := validate(ev); err != nil {
			http.Error(w, fmt.Sprintf("event %d: %v", i, err), http.StatusUnprocessableEntity)
			return
		}
		records = append(records, types.DetectionRecord{ID: uuid.New().String(), DetectionEvent: ev})
	}

	total := h.received.Add(int64(len(records)))
	h.logger.Info("detections received", "batch", len(records), "total", total)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(records)
}

func validate(ev types.DetectionEvent) error {
	switch {
	case ev.Age < 0:
		return fmt.Errorf("age must be >= 0, got %d", ev.Age)
	case !ev.Gender.Valid():
		return fmt.Errorf("invalid gender %q", ev.Gender)
	case ev.Emotion == "":
		return fmt.Errorf("emotion is required")
	case ev.Timestamp.IsZero():
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
