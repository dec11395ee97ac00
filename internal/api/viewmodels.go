package api

import (
	"math"
	"time"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
	"github.com/lox/airquality/internal/store"
)

// nullable maps NaN to nil so undefined statistics encode as JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type CorrelationView struct {
	Station     string   `json:"station"`
	Coefficient *float64 `json:"coefficient"`
	Highest     bool     `json:"highest"`
	Lowest      bool     `json:"lowest"`
}

func newCorrelationViews(corr []analysis.StationCorrelation) []CorrelationView {
	out := make([]CorrelationView, len(corr))
	for i, c := range corr {
		out[i] = CorrelationView{
			Station:     c.Station,
			Coefficient: nullable(c.Coefficient),
			Highest:     c.Highest,
			Lowest:      c.Lowest,
		}
	}
	return out
}

type SummaryView struct {
	Max   *float64 `json:"max"`
	Min   *float64 `json:"min"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Count int      `json:"count"`
}

func newSummaryView(s analysis.Summary) SummaryView {
	return SummaryView{
		Max:   nullable(s.Max),
		Min:   nullable(s.Min),
		Mean:  nullable(s.Mean),
		Std:   nullable(s.Std),
		Count: s.Count,
	}
}

type WeekdayView struct {
	Day     string      `json:"day_week"`
	Weekend bool        `json:"weekend"`
	PM25    SummaryView `json:"PM2.5"`
	PM10    SummaryView `json:"PM10"`
}

type WeekdayResponse struct {
	Station string        `json:"station"`
	Days    []WeekdayView `json:"days"`
}

func newWeekdayResponse(station string, stats []analysis.WeekdayStat) WeekdayResponse {
	days := make([]WeekdayView, len(stats))
	for i, s := range stats {
		days[i] = WeekdayView{
			Day:     s.Day.String(),
			Weekend: s.Weekend,
			PM25:    newSummaryView(s.PM25),
			PM10:    newSummaryView(s.PM10),
		}
	}
	return WeekdayResponse{Station: station, Days: days}
}

type StationAverageView struct {
	Station string                        `json:"station"`
	Means   map[models.Pollutant]*float64 `json:"means"`
}

type MeltedView struct {
	Station  string   `json:"station"`
	Variable string   `json:"variable"`
	Value    *float64 `json:"value"`
}

type AveragesResponse struct {
	Wide   []StationAverageView `json:"wide"`
	Melted []MeltedView         `json:"melted"`
}

func newAveragesResponse(averages []analysis.StationAverage) AveragesResponse {
	resp := AveragesResponse{
		Wide:   make([]StationAverageView, len(averages)),
		Melted: []MeltedView{},
	}
	for i, a := range averages {
		v := StationAverageView{Station: a.Station, Means: make(map[models.Pollutant]*float64)}
		for _, p := range models.Pollutants {
			v.Means[p] = nullable(a.Mean(p))
		}
		resp.Wide[i] = v
	}
	for _, m := range analysis.Melt(averages) {
		resp.Melted = append(resp.Melted, MeltedView{
			Station:  m.Station,
			Variable: string(m.Variable),
			Value:    nullable(m.Value),
		})
	}
	return resp
}

type HeatPointView struct {
	Station string  `json:"station"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Value   float64 `json:"value"`
}

type HeatmapResponse struct {
	Year   int             `json:"year"`
	Param  string          `json:"param"`
	Max    float64         `json:"max"`
	Points []HeatPointView `json:"points"`
}

func newHeatmapResponse(year int, p models.Pollutant, points []analysis.HeatPoint) HeatmapResponse {
	resp := HeatmapResponse{Year: year, Param: string(p), Points: make([]HeatPointView, len(points))}
	for i, pt := range points {
		resp.Points[i] = HeatPointView{Station: pt.Station, Lat: pt.Lat, Lon: pt.Lon, Value: pt.Value}
		resp.Max = math.Max(resp.Max, pt.Value)
	}
	return resp
}

type ImportRunView struct {
	ID           int64      `json:"id"`
	Source       string     `json:"source"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Success      bool       `json:"success"`
	Skipped      bool       `json:"skipped"`
	RowsStored   int64      `json:"rows_stored"`
	QualityFlags int64      `json:"quality_flags"`
	ContentHash  string     `json:"content_hash,omitempty"`
	Error        string     `json:"error,omitempty"`
}

func newImportRunView(r models.ImportRun) ImportRunView {
	v := ImportRunView{
		ID:           r.ID,
		Source:       r.Source,
		StartedAt:    r.StartedAt,
		Success:      r.Success,
		Skipped:      r.Skipped,
		RowsStored:   r.RowsStored.Int64,
		QualityFlags: r.QualityFlags.Int64,
		ContentHash:  r.ContentHash.String,
		Error:        r.ErrorMessage.String,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		v.FinishedAt = &t
	}
	return v
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Status     string                 `json:"status"`
	Rows       int                    `json:"rows"`
	LoadedAt   *time.Time             `json:"loaded_at,omitempty"`
	LastImport *ImportRunView         `json:"last_import,omitempty"`
	Archive    *store.RawPayloadStats `json:"archive,omitempty"`
	Errors     []string               `json:"errors,omitempty"`
}

// IndexData is everything the dashboard page renders.
type IndexData struct {
	Author      string
	Questions   []string
	HasData     bool
	Overview    analysis.Overview
	Station     string
	Pollutants  []models.Pollutant
	Selected    []models.Pollutant
	Years       []int
	MapYear     int
	MapParam    models.Pollutant
	MapPoints   []HeatPointView
	MapMax      float64
	Stations    []models.Station
	Correlation []CorrelationView
	Highest     *CorrelationView
	Lowest      *CorrelationView
	Conclusions []string
	Narrative   string
	LastImport  *ImportRunView
	MapConfig   MapConfig
}

// MapConfig drives the Leaflet heat layer.
type MapConfig struct {
	CenterLat float64           `json:"center_lat"`
	CenterLon float64           `json:"center_lon"`
	Zoom      int               `json:"zoom"`
	Tiles     string            `json:"tiles"`
	Radius    int               `json:"radius"`
	Blur      int               `json:"blur"`
	Gradient  map[string]string `json:"gradient"`
}

var defaultMapConfig = MapConfig{
	CenterLat: 39.9042,
	CenterLon: 116.4074,
	Zoom:      11,
	Tiles:     "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
	Radius:    15,
	Blur:      10,
	Gradient: map[string]string{
		"0.4":  "blue",
		"0.65": "lime",
		"0.8":  "yellow",
		"1":    "red",
	},
}
