// Package collector is a development stand-in for the detection ingestion service.
// It validates and echoes batches; nothing is persisted.
package collector

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// DetectionsPath is the ingestion route exporters post to.
const DetectionsPath = "/api/detections"

func NewRouter(logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc(DetectionsPath, h.PostDetections).Methods("POST")
	return r
}
