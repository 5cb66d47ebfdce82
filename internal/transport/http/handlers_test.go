package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/services"
)

type fakeQueue struct {
	mu   sync.Mutex
	cmds []pipeline.Command
	full bool
}

func (q *fakeQueue) Enqueue(cmd pipeline.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.cmds = append(q.cmds, cmd)
	return true
}

func writeSettingsWorkbook(t *testing.T, dir, exportFolder string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), "Settings")
	header := []interface{}{
		"Active", "SensorID", "Site", "PointName", "Type",
		"ImportFolder", "ExportFolder", "BaselineN", "BaselineE", "BaselineH",
		"OutlierMAD", "StartUTC", "CSVImport", "DBImport", "FileProfile",
	}
	require.NoError(t, f.SetSheetRow("Settings", "A1", &header))
	row := []interface{}{
		"TRUE", 1, "SiteA", "PT01", "Reflective",
		"/tmp/import", exportFolder, 500.0, 600.0, 100.0,
		3.5, "2024-01-01 00:00:00", "TRUE", "FALSE", "IM",
	}
	require.NoError(t, f.SetSheetRow("Settings", "A2", &row))
	path := filepath.Join(dir, "Settings.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

type fixture struct {
	router chi.Router
	queue  *fakeQueue
	root   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	settingsPath := writeSettingsWorkbook(t, t.TempDir(), root)
	logger := slog.Default()
	queue := &fakeQueue{}

	settingsSvc := services.NewSettingsService(settingsPath, queue, logger)
	deltaSvc := services.NewDeltaService(settingsSvc, logger)
	outputsSvc := services.NewOutputsService(root, logger)
	healthSvc := services.NewHealthService(settingsPath, root)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Mount("/", NewDeltaHandler(deltaSvc, settingsSvc, logger).Routes())
		r.Mount("/settings", NewSettingsHandler(settingsSvc, logger).Routes())
		r.Mount("/outputs", NewOutputsHandler(outputsSvc, logger).Routes())
		r.Mount("/command", NewCommandHandler(queue, logger).Routes())
		r.Mount("/health", NewHealthHandler(healthSvc, logger).Routes())
		r.Get("/logs", NewOutputsHandler(outputsSvc, logger).Logs)
	})
	return &fixture{router: r, queue: queue, root: root}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetPoints(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/points", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, []string{"PT01"}, points)
}

func TestGetDeltas_EmptyHistory(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/deltas?point=PT01&hours=24", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeltasResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PT01", resp.Point)
	assert.Empty(t, resp.Rows)
}

func TestGetDeltas_MissingPoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/deltas", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeltas_BadHours(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/deltas?point=PT01&hours=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSettings(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []SettingsRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "PT01", rows[0].PointName)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, "Reflective", rows[0].Type)
}

func TestPatchSetting(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/settings/1",
		`{"field":"OutlierMAD","value":"5.0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []pipeline.Command{pipeline.CommandRunOnce}, f.queue.cmds)

	rec = f.do(t, http.MethodGet, "/api/settings", "")
	var rows []SettingsRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.InDelta(t, 5.0, rows[0].OutlierMAD, 1e-9)
}

func TestPatchSetting_UnknownRow(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/settings/42",
		`{"field":"OutlierMAD","value":"5.0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchSetting_MissingField(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/settings/1", `{"value":"5.0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostCommand(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/command", `{"command":"full_build"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []pipeline.Command{pipeline.CommandFullBuild}, f.queue.cmds)
}

func TestPostCommand_Unknown(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/command", `{"command":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostCommand_QueueFull(t *testing.T) {
	f := newFixture(t)
	f.queue.full = true
	rec := f.do(t, http.MethodPost, "/api/command", `{"command":"run_once"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOutputsEndpoints(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.root, "SiteA", "2024-01-02", "PT01")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PT01_1_dl.csv"),
		[]byte("TIMESTAMP,Delta_H_mm\n"), 0644))

	rec := f.do(t, http.MethodGet, "/api/outputs/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sites []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sites))
	assert.Equal(t, []string{"SiteA"}, sites)

	rec = f.do(t, http.MethodGet, "/api/outputs/tree?path=SiteA", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet,
		"/api/outputs/file?path=SiteA/2024-01-02/PT01/PT01_1_dl.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TIMESTAMP")
}

func TestOutputsTraversalRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/outputs/tree?path=../secrets", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutputsMissing(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/outputs/file?path=SiteX/nope.csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogs_MissingSite(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/logs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "healthy", st.Status)
	assert.True(t, st.SettingsOK)
	assert.True(t, st.OutputRootOK)
}
