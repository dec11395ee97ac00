package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lox/airquality/internal/api"
	"github.com/lox/airquality/internal/models"
	"github.com/lox/airquality/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := s.SeedStations(); err != nil {
		t.Fatal(err)
	}
	return s
}

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func obs(station string, year, month, day, hour int, pm25, temp, o3 float64) models.Observation {
	return models.Observation{
		Station: station,
		Year:    year, Month: month, Day: day, Hour: hour,
		PM25: nf(pm25), PM10: nf(pm25 * 1.5), SO2: nf(10), NO2: nf(40), CO: nf(1000), O3: nf(o3),
		Temp: nf(temp),
	}
}

// setupLoadedServer stores a small dataset, records a successful import and
// loads it into a server.
func setupLoadedServer(t *testing.T) *api.Server {
	t.Helper()
	s := setupTestStore(t)
	ctx := context.Background()

	rows := []models.Observation{
		obs("Dongsi", 2013, 3, 4, 0, 80, 20, 50),
		obs("Dongsi", 2013, 3, 4, 1, 100, 25, 80),
		obs("Dongsi", 2013, 3, 9, 0, 60, 22, 60),
		obs("Aotizhongxin", 2013, 3, 4, 0, 10, 5, 30),
		obs("Aotizhongxin", 2013, 3, 5, 0, 20, 6, 31),
		obs("Aotizhongxin", 2014, 3, 6, 0, 30, 9, 20),
		obs("Huairou", 2014, 1, 1, 0, 40, -5, 10),
	}
	if _, err := s.ReplaceObservations(ctx, rows); err != nil {
		t.Fatal(err)
	}

	run, err := s.StartImportRun("testdata/all_data.csv")
	if err != nil {
		t.Fatal(err)
	}
	run.Success = true
	run.ContentHash = sql.NullString{String: "abc123", Valid: true}
	run.RowsStored = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
	if err := s.CompleteImportRun(run); err != nil {
		t.Fatal(err)
	}

	srv := api.NewServer(s, api.Options{Author: "Air Quality Team"})
	if err := srv.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *api.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), api.Options{})

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "empty" || health.Rows != 0 {
		t.Errorf("health = %+v, want empty with 0 rows", health)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHealthEndpoint_Loaded(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/health")
	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Rows != 7 {
		t.Errorf("health = %+v, want ok with 7 rows", health)
	}
	if health.LastImport == nil || health.LastImport.ContentHash != "abc123" {
		t.Errorf("last import = %+v", health.LastImport)
	}
}

func TestIndex_NoData(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), api.Options{})

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No dataset has been imported yet") {
		t.Error("expected empty state")
	}
	if !strings.Contains(body, "Business Questions") {
		t.Error("expected business questions section")
	}
	if strings.Contains(body, "/charts/correlation.png") {
		t.Error("expected no charts without data")
	}
}

func TestIndex_WithData(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/?params=CO&params=PM2.5&year=2014&param=O3")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"Air Quality Team",
		"/charts/correlation.png",
		"/charts/stations.png?param=PM2.5",
		"/charts/stations.png?param=CO",
		"<option value=\"2014\" selected>",
		"<option value=\"O3\" selected>",
		"Conclusions",
		"7 hourly readings",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
	if strings.Contains(body, "/charts/stations.png?param=SO2") {
		t.Error("unselected parameter should have no bar chart")
	}
}

func TestIndex_BadQuery(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), api.Options{})

	for _, target := range []string{"/?year=twenty", "/?param=TEMP", "/?params=PM2.5&params=dust"} {
		if w := get(t, srv, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestDataEndpoints_NoData(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), api.Options{})

	for _, target := range []string{
		"/api/correlation",
		"/api/weekday",
		"/api/averages",
		"/api/heatmap",
		"/charts/correlation.png",
		"/export.xlsx",
	} {
		if w := get(t, srv, target); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", target, w.Code)
		}
	}
}

func TestAPICorrelation(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/api/correlation")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []api.CorrelationView
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	byStation := map[string]api.CorrelationView{}
	for _, c := range got {
		byStation[c.Station] = c
	}
	if c := byStation["Huairou"]; c.Coefficient != nil {
		t.Errorf("single-row station coefficient = %v, want null", *c.Coefficient)
	}
	if c := byStation["Dongsi"]; c.Coefficient == nil || *c.Coefficient <= 0 {
		t.Errorf("Dongsi coefficient = %v, want positive", c.Coefficient)
	}
}

func TestAPIWeekday(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/api/weekday")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got api.WeekdayResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Station != "Dongsi" || len(got.Days) != 7 {
		t.Fatalf("response = %+v", got)
	}
	if got.Days[0].Day != "Monday" || got.Days[6].Day != "Sunday" {
		t.Errorf("days run %s..%s, want Monday..Sunday", got.Days[0].Day, got.Days[6].Day)
	}
	if m := got.Days[0].PM25.Mean; m == nil || *m != 90 {
		t.Errorf("Monday PM2.5 mean = %v, want 90", m)
	}
	if got.Days[1].PM25.Mean != nil {
		t.Error("Tuesday without rows should have null mean")
	}

	if w := get(t, srv, "/api/weekday?station=Haidian"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown station: expected 400, got %d", w.Code)
	}
}

func TestAPIAverages(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/api/averages")
	var got api.AveragesResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Wide) != 3 || len(got.Melted) != 3*len(models.Pollutants) {
		t.Fatalf("wide=%d melted=%d", len(got.Wide), len(got.Melted))
	}
	aoti := got.Wide[0]
	if aoti.Station != "Aotizhongxin" {
		t.Fatalf("first station = %s", aoti.Station)
	}
	if v := aoti.Means[models.PM25]; v == nil || math.Abs(*v-20) > 1e-9 {
		t.Errorf("Aotizhongxin PM2.5 mean = %v, want 20", v)
	}
}

func TestAPIHeatmap(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/api/heatmap?year=2014&param=PM2.5")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got api.HeatmapResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Year != 2014 || len(got.Points) != 2 || got.Max != 40 {
		t.Errorf("heatmap = %+v", got)
	}

	w = get(t, srv, "/api/heatmap?year=2017")
	if w.Code != 200 {
		t.Fatalf("empty year: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"points":[]`) {
		t.Errorf("empty year should give an empty points array: %s", w.Body.String())
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/api/heatmap?year=abc", http.StatusBadRequest},
		{"/api/heatmap?param=TEMP", http.StatusBadRequest},
		{"/api/heatmap", http.StatusOK},
	}
	for _, tt := range tests {
		if w := get(t, srv, tt.target); w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.want, w.Code)
		}
	}
}

func TestAPIStationsAndImports(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	var stations []models.Station
	if err := json.NewDecoder(get(t, srv, "/api/stations").Body).Decode(&stations); err != nil {
		t.Fatal(err)
	}
	if len(stations) != 12 {
		t.Errorf("stations = %d, want 12", len(stations))
	}

	var runs []api.ImportRunView
	if err := json.NewDecoder(get(t, srv, "/api/imports").Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || !runs[0].Success || runs[0].RowsStored != 7 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestCharts(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	tests := []struct {
		target string
		want   int
	}{
		{"/charts/correlation.png", http.StatusOK},
		{"/charts/weekday.png", http.StatusOK},
		{"/charts/weekday.png?param=PM10", http.StatusOK},
		{"/charts/weekday.png?param=SO2", http.StatusBadRequest},
		{"/charts/heatmap.png", http.StatusOK},
		{"/charts/stations.png?param=CO", http.StatusOK},
		{"/charts/stations.png?param=dust", http.StatusBadRequest},
		{"/charts/pie.png", http.StatusNotFound},
		{"/charts/correlation.svg", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := get(t, srv, tt.target)
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.want, w.Code)
			continue
		}
		if tt.want == http.StatusOK && w.Header().Get("Content-Type") != "image/png" {
			t.Errorf("%s: content type %q", tt.target, w.Header().Get("Content-Type"))
		}
	}
}

func TestExportAndOGImage(t *testing.T) {
	t.Parallel()
	srv := setupLoadedServer(t)

	w := get(t, srv, "/export.xlsx")
	if w.Code != 200 {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("expected xlsx (zip) body")
	}

	w = get(t, srv, "/og-image.png")
	if w.Code != 200 || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("og image: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestReload_SwapsDataset(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	srv := api.NewServer(s, api.Options{})

	if w := get(t, srv, "/api/averages"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("before load: expected 503, got %d", w.Code)
	}

	ctx := context.Background()
	if _, err := s.ReplaceObservations(ctx, []models.Observation{obs("Tiantan", 2015, 6, 1, 0, 50, 25, 90)}); err != nil {
		t.Fatal(err)
	}
	if err := srv.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if w := get(t, srv, "/api/averages"); w.Code != 200 {
		t.Fatalf("after load: expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestStore(t), api.Options{})
	get(t, srv, "/health")
	get(t, srv, "/no/such/page")

	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`airquality_http_requests_total{method="GET",route="GET /health",status="200"}`,
		`airquality_http_requests_total{method="GET",route="unmatched",status="404"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
