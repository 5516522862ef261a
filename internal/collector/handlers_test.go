package collector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestPostDetections(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	body := `[{"age":31,"gender":"female","emotion":"happy","timestamp":"2024-05-01T09:30:00Z"},
	          {"age":0,"gender":"other","emotion":"unknown","timestamp":"2024-05-01T09:30:01Z"}]`

	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detections", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var records []types.DetectionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, "happy", records[0].Emotion)
	assert.True(t, ts.Equal(records[0].Timestamp))
	assert.Equal(t, types.GenderOther, records[1].Gender)
}

func TestPostDetectionsGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`[{"age":40,"gender":"male","emotion":"sad","timestamp":"2024-05-01T09:30:00Z"}]`))
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detections", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"emotion":"sad"`)
}

func TestPostDetectionsRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `{{`, http.StatusBadRequest},
		{"object not array", `{"age":1}`, http.StatusBadRequest},
		{"bad gender", `[{"age":1,"gender":"robot","emotion":"happy","timestamp":"2024-05-01T09:30:00Z"}]`, http.StatusBadRequest},
		{"negative age", `[{"age":-1,"gender":"male","emotion":"happy","timestamp":"2024-05-01T09:30:00Z"}]`, http.StatusUnprocessableEntity},
		{"missing emotion", `[{"age":1,"gender":"male","timestamp":"2024-05-01T09:30:00Z"}]`, http.StatusUnprocessableEntity},
		{"missing timestamp", `[{"age":1,"gender":"male","emotion":"happy"}]`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detections", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestWrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
