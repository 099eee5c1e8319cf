package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"object-detection-sensor/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct{}

func (fakeSensor) Name() string  { return "Object Detection" }
func (fakeSensor) State() string { return "on" }
func (fakeSensor) Attributes() map[string]any {
	return map[string]any{
		"Status":           "Labels detected",
		"Detections":       map[string]int{"Cat": 2},
		"Number Of Checks": 3,
	}
}

type fakeHistory struct {
	limit    int
	records  []database.CheckRecord
	total    int64
	err      error
	countErr error
}

func (f *fakeHistory) Recent(limit int) ([]database.CheckRecord, error) {
	f.limit = limit
	return f.records, f.err
}

func (f *fakeHistory) Count() (int64, error) {
	return f.total, f.countErr
}

type fakeStats struct{}

func (fakeStats) TickCount() int64    { return 7 }
func (fakeStats) ErrorCount() int64   { return 1 }
func (fakeStats) LastTick() time.Time { return time.Time{} }

func newTestRouter(h *APIHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func do(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetSensor(t *testing.T) {
	r := newTestRouter(NewAPIHandler(fakeSensor{}, nil, nil, afero.NewMemMapFs(), ""))

	w := do(t, r, "/api/sensor")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name       string         `json:"name"`
		State      string         `json:"state"`
		Attributes map[string]any `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Object Detection", body.Name)
	assert.Equal(t, "on", body.State)
	assert.Equal(t, "Labels detected", body.Attributes["Status"])
	assert.Equal(t, map[string]any{"Cat": float64(2)}, body.Attributes["Detections"])
}

func TestListChecks(t *testing.T) {
	history := &fakeHistory{records: []database.CheckRecord{
		{Verdict: "proceed", State: "on", NumberOfChecks: 2},
		{Verdict: "proceed", State: "off", NumberOfChecks: 1},
	}, total: 41}
	r := newTestRouter(NewAPIHandler(fakeSensor{}, history, nil, afero.NewMemMapFs(), ""))

	w := do(t, r, "/api/checks")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultCheckLimit, history.limit)

	var body struct {
		Count  int                    `json:"count"`
		Total  int64                  `json:"total"`
		Checks []database.CheckRecord `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(41), body.Total)
	assert.Equal(t, "on", body.Checks[0].State)

	do(t, r, "/api/checks?limit=5")
	assert.Equal(t, 5, history.limit)

	do(t, r, "/api/checks?limit=100000")
	assert.Equal(t, maxCheckLimit, history.limit)
}

func TestListChecks_Errors(t *testing.T) {
	tests := []struct {
		name    string
		history CheckHistory
		path    string
		want    int
	}{
		{"history disabled", nil, "/api/checks", http.StatusServiceUnavailable},
		{"bad limit", &fakeHistory{}, "/api/checks?limit=abc", http.StatusBadRequest},
		{"zero limit", &fakeHistory{}, "/api/checks?limit=0", http.StatusBadRequest},
		{"store failure", &fakeHistory{err: errors.New("database is locked")}, "/api/checks", http.StatusInternalServerError},
		{"count failure", &fakeHistory{countErr: errors.New("database is locked")}, "/api/checks", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(NewAPIHandler(fakeSensor{}, tt.history, nil, afero.NewMemMapFs(), ""))
			assert.Equal(t, tt.want, do(t, r, tt.path).Code)
		})
	}
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter(NewAPIHandler(fakeSensor{}, nil, fakeStats{}, afero.NewMemMapFs(), ""))

	w := do(t, r, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string `json:"status"`
		System struct {
			PollTicks  int64 `json:"poll_ticks"`
			PollErrors int64 `json:"poll_errors"`
			NumCPU     int   `json:"num_cpu"`
		} `json:"system"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(7), body.System.PollTicks)
	assert.Equal(t, int64(1), body.System.PollErrors)
	assert.Positive(t, body.System.NumCPU)
}

func TestGetAnnotatedImage(t *testing.T) {
	fs := afero.NewMemMapFs()

	disabled := newTestRouter(NewAPIHandler(fakeSensor{}, nil, nil, fs, ""))
	assert.Equal(t, http.StatusNotFound, do(t, disabled, "/api/image/annotated").Code)

	r := newTestRouter(NewAPIHandler(fakeSensor{}, nil, nil, fs, "/config/www/snapshot-boxes.png"))
	assert.Equal(t, http.StatusNotFound, do(t, r, "/api/image/annotated").Code)

	require.NoError(t, afero.WriteFile(fs, "/config/www/snapshot-boxes.png", []byte("\x89PNG"), 0o644))
	w := do(t, r, "/api/image/annotated")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes())
}
