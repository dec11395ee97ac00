package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/insight"
	"github.com/lox/airquality/internal/models"
)

// defaultSelected is how many pollutants the bar chart multiselect starts
// with.
const defaultSelected = 3

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	selected, err := parseSelected(r.URL.Query()["params"])
	if err != nil {
		writeError(w, err)
		return
	}
	mapParam, err := queryPollutant(r, "param", models.PM25)
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := queryYear(r, "year", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	data := IndexData{
		Author:     s.opts.Author,
		Questions:  insight.Questions,
		Station:    s.opts.Station,
		Pollutants: models.Pollutants,
		Selected:   selected,
		MapParam:   mapParam,
		Stations:   models.Stations,
		MapConfig:  defaultMapConfig,
		MapPoints:  []HeatPointView{},
	}

	d := s.current()
	if d.empty() {
		data.Years = analysis.DefaultYears
		data.MapYear = firstOr(year, data.Years)
		s.render(w, "index.html", data)
		return
	}

	data.HasData = true
	data.Overview = d.table.Overview()
	data.Years = d.table.Years()
	data.MapYear = firstOr(year, data.Years)

	points, err := d.table.HeatPoints(data.MapYear, mapParam)
	if err != nil {
		writeError(w, err)
		return
	}
	heat := newHeatmapResponse(data.MapYear, mapParam, points)
	data.MapPoints, data.MapMax = heat.Points, heat.Max

	data.Correlation = newCorrelationViews(d.table.Correlations())
	for i := range data.Correlation {
		c := &data.Correlation[i]
		if c.Highest {
			data.Highest = c
		}
		if c.Lowest {
			data.Lowest = c
		}
	}

	in, err := s.insight.Summarize(r.Context(), d.key(), d.table, s.opts.Station)
	if err != nil {
		writeError(w, err)
		return
	}
	data.Conclusions, data.Narrative = in.Conclusions, in.Narrative

	if d.lastRun != nil {
		v := newImportRunView(*d.lastRun)
		data.LastImport = &v
	}

	s.render(w, "index.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template error", "component", "api", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// parseSelected reads the multiselect values, defaulting to the first three
// pollutants. Duplicates are dropped and display order is kept.
func parseSelected(values []string) ([]models.Pollutant, error) {
	if len(values) == 0 {
		return models.Pollutants[:defaultSelected], nil
	}
	chosen := make(map[models.Pollutant]bool)
	for _, v := range values {
		p, err := models.ParsePollutant(v)
		if err != nil {
			return nil, err
		}
		chosen[p] = true
	}
	var out []models.Pollutant
	for _, p := range models.Pollutants {
		if chosen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// firstOr returns year when set, otherwise the first of years.
func firstOr(year int, years []int) int {
	if year != 0 || len(years) == 0 {
		return year
	}
	return years[0]
}
