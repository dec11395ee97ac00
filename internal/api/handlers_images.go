package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/charts"
	"github.com/lox/airquality/internal/export"
	"github.com/lox/airquality/internal/imagegen"
	"github.com/lox/airquality/internal/models"
)

// handleChart serves /charts/{name}.png.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("name"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}

	var render func(*analysis.Table) ([]byte, error)
	switch name {
	case "correlation":
		render = func(t *analysis.Table) ([]byte, error) {
			return charts.CorrelationBar(t.Correlations())
		}
	case "weekday":
		p, err := queryPollutant(r, "param", models.PM25)
		if err == nil && p != models.PM25 && p != models.PM10 {
			err = fmt.Errorf("%w: weekday chart covers PM2.5 and PM10 only", errBadRequest)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		station, err := queryStation(r, s.opts.Station)
		if err != nil {
			writeError(w, err)
			return
		}
		render = func(t *analysis.Table) ([]byte, error) {
			stats, err := t.WeekdayStats(station)
			if err != nil {
				return nil, err
			}
			return charts.WeekdayLines(stats, p)
		}
	case "heatmap":
		render = func(t *analysis.Table) ([]byte, error) {
			return charts.AveragesHeatmap(t.StationAverages())
		}
	case "stations":
		p, err := queryPollutant(r, "param", models.PM25)
		if err != nil {
			writeError(w, err)
			return
		}
		render = func(t *analysis.Table) ([]byte, error) {
			return charts.StationBars(analysis.Ranking(t.StationAverages(), p), p)
		}
	default:
		http.NotFound(w, r)
		return
	}

	d, ok := s.loaded(w)
	if !ok {
		return
	}
	data, err := render(d.table)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// handleExport serves the summary views as a spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	station, err := queryStation(r, s.opts.Station)
	if err != nil {
		writeError(w, err)
		return
	}
	d, ok := s.loaded(w)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, d.table, station); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="airquality.xlsx"`)
	w.Write(buf.Bytes())
}

// handleOGImage serves the Open Graph share card.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	if data, ok := s.ogCache.Get(); ok {
		serveOGImage(w, data)
		return
	}

	data, err := imagegen.GenerateOGImage(ogImageData(s.current()))
	if err != nil {
		slog.Error("generate og image", "component", "api", "error", err)
		http.Error(w, "failed to generate image", http.StatusInternalServerError)
		return
	}
	s.ogCache.Set(data)
	serveOGImage(w, data)
}

func serveOGImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

func ogImageData(d *dataset) imagegen.OGImageData {
	out := imagegen.OGImageData{Title: "Beijing Air Quality"}
	if d.empty() {
		out.Subtitle = "No data loaded"
		return out
	}

	ov := d.table.Overview()
	p := message.NewPrinter(language.English)
	out.Subtitle = p.Sprintf("%d stations, %d readings, %s to %s", ov.Stations, ov.Rows, ov.From, ov.To)

	averages := d.table.StationAverages()
	ranked := analysis.Ranking(averages, models.PM25)
	highest := ""
	if len(ranked) > 0 {
		highest = ranked[len(ranked)-1].Station
	}
	for _, a := range averages {
		v := a.Mean(models.PM25)
		if math.IsNaN(v) {
			continue
		}
		out.Bars = append(out.Bars, imagegen.Bar{
			Label:     a.Station,
			Value:     v,
			Highlight: a.Station == highest,
		})
	}
	return out
}
