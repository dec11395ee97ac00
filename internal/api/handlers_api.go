package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response", "component", "api", "error", err)
	}
}

// writeError maps err to a status code and writes its message as a single
// line.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrUnknownStation),
		errors.Is(err, models.ErrUnknownPollutant):
		status = http.StatusBadRequest
	case errors.Is(err, analysis.ErrNoData):
		status = http.StatusServiceUnavailable
	default:
		slog.Error("request failed", "component", "api", "error", err)
	}
	http.Error(w, err.Error(), status)
}

// loaded returns the served dataset, writing a 503 when nothing has been
// imported yet.
func (s *Server) loaded(w http.ResponseWriter) (*dataset, bool) {
	d := s.current()
	if d.empty() {
		writeError(w, analysis.ErrNoData)
		return nil, false
	}
	return d, true
}

func queryPollutant(r *http.Request, key string, def models.Pollutant) (models.Pollutant, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return models.ParsePollutant(v)
}

func queryYear(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: year %q is not a number", errBadRequest, v)
	}
	return year, nil
}

func queryStation(r *http.Request, def string) (string, error) {
	v := r.URL.Query().Get("station")
	if v == "" {
		return def, nil
	}
	if _, err := models.LookupStation(v); err != nil {
		return "", err
	}
	return v, nil
}

func (s *Server) handleAPIStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.GetStations()
	if err != nil {
		writeError(w, err)
		return
	}
	if len(stations) == 0 {
		stations = models.Stations
	}
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) handleAPICorrelation(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loaded(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newCorrelationViews(d.table.Correlations()))
}

func (s *Server) handleAPIWeekday(w http.ResponseWriter, r *http.Request) {
	station, err := queryStation(r, s.opts.Station)
	if err != nil {
		writeError(w, err)
		return
	}
	d, ok := s.loaded(w)
	if !ok {
		return
	}
	stats, err := d.table.WeekdayStats(station)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWeekdayResponse(station, stats))
}

func (s *Server) handleAPIAverages(w http.ResponseWriter, r *http.Request) {
	d, ok := s.loaded(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newAveragesResponse(d.table.StationAverages()))
}

func (s *Server) handleAPIHeatmap(w http.ResponseWriter, r *http.Request) {
	p, err := queryPollutant(r, "param", models.PM25)
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := queryYear(r, "year", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	d, ok := s.loaded(w)
	if !ok {
		return
	}
	if year == 0 {
		year = d.table.Years()[0]
	}
	points, err := d.table.HeatPoints(year, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHeatmapResponse(year, p, points))
}

func (s *Server) handleAPIImports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRecentImportRuns(20)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]ImportRunView, len(runs))
	for i, run := range runs {
		views[i] = newImportRunView(run)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	count, err := s.store.CountObservations()
	if err != nil {
		health.Status = "error"
		health.Errors = append(health.Errors, "store: "+err.Error())
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	health.Rows = count

	d := s.current()
	if d.empty() {
		health.Status = "empty"
	} else {
		loadedAt := d.loadedAt
		health.LoadedAt = &loadedAt
	}
	if d != nil && d.lastRun != nil {
		v := newImportRunView(*d.lastRun)
		health.LastImport = &v
	}
	if archive, err := s.store.GetRawPayloadStats(); err == nil {
		health.Archive = archive
	} else {
		health.Errors = append(health.Errors, "archive: "+err.Error())
	}
	writeJSON(w, http.StatusOK, health)
}
