// Package analysis turns stored observations into the dashboard's summary
// views. Every view is recomputed from the table on each call.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/airquality/internal/models"
)

// ErrNoData is returned by views that need at least one observation.
var ErrNoData = errors.New("no observations loaded")

// Column names of the derived table.
const (
	ColStation   = "station"
	ColYear      = "year"
	ColMonth     = "month"
	ColDay       = "day"
	ColHour      = "hour"
	ColTemp      = "TEMP"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColDate      = "date"
	ColDayWeek   = "day_week"
)

const dateLayout = "2006-01-02"

// DefaultYears are always offered by the year selector.
var DefaultYears = []int{2013, 2014, 2015, 2016, 2017}

// Table is the observation set with station coordinates and calendar fields
// attached. It is read-only once built.
type Table struct {
	df dataframe.DataFrame
}

// NewTable builds the derived table. An observation from a station without
// coordinates fails the whole build.
func NewTable(obs []models.Observation) (*Table, error) {
	n := len(obs)
	var (
		station   = make([]string, n)
		year      = make([]int, n)
		month     = make([]int, n)
		day       = make([]int, n)
		hour      = make([]int, n)
		temp      = make([]float64, n)
		latitude  = make([]float64, n)
		longitude = make([]float64, n)
		date      = make([]string, n)
		dayWeek   = make([]string, n)
		values    = make(map[models.Pollutant][]float64, len(models.Pollutants))
	)
	for _, p := range models.Pollutants {
		values[p] = make([]float64, n)
	}

	coords := make(map[string]*models.Station)
	unknown := make(map[string]bool)
	for i := range obs {
		o := &obs[i]
		st, ok := coords[o.Station]
		if !ok {
			if found, err := models.LookupStation(o.Station); err == nil {
				st = &found
			}
			coords[o.Station] = st
		}
		if st == nil {
			unknown[o.Station] = true
			continue
		}

		station[i] = o.Station
		year[i], month[i], day[i], hour[i] = o.Year, o.Month, o.Day, o.Hour
		temp[i] = floatOrNaN(o.Temp.Float64, o.Temp.Valid)
		latitude[i] = st.Latitude
		longitude[i] = st.Longitude
		date[i] = o.Date().Format(dateLayout)
		dayWeek[i] = o.Weekday().String()
		for _, p := range models.Pollutants {
			v := o.Value(p)
			values[p][i] = floatOrNaN(v.Float64, v.Valid)
		}
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for name := range unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("attach coordinates: %w: %s", models.ErrUnknownStation, strings.Join(names, ", "))
	}

	cols := []series.Series{
		series.New(station, series.String, ColStation),
		series.New(year, series.Int, ColYear),
		series.New(month, series.Int, ColMonth),
		series.New(day, series.Int, ColDay),
		series.New(hour, series.Int, ColHour),
	}
	for _, p := range models.Pollutants {
		cols = append(cols, series.New(values[p], series.Float, string(p)))
	}
	cols = append(cols,
		series.New(temp, series.Float, ColTemp),
		series.New(latitude, series.Float, ColLatitude),
		series.New(longitude, series.Float, ColLongitude),
		series.New(date, series.String, ColDate),
		series.New(dayWeek, series.String, ColDayWeek),
	)

	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("build table: %w", df.Err)
	}
	return &Table{df: df}, nil
}

// Len is the number of observations in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.df.Nrow()
}

// Records returns the table as string rows including the header, in column
// order.
func (t *Table) Records() [][]string {
	return t.df.Records()
}

// Years returns DefaultYears together with any other years present in the
// table, ascending. A default year without rows stays selectable.
func (t *Table) Years() []int {
	years := append([]int(nil), DefaultYears...)
	if t.Len() > 0 {
		present, _ := t.df.Col(ColYear).Int()
		years = append(years, present...)
	}
	seen := make(map[int]bool)
	var out []int
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

// Overview summarises the table for the page header.
type Overview struct {
	Rows     int
	Stations int
	From     string
	To       string
}

func (t *Table) Overview() Overview {
	if t.Len() == 0 {
		return Overview{}
	}
	stations := make(map[string]bool)
	for _, s := range t.df.Col(ColStation).Records() {
		stations[s] = true
	}
	dates := t.df.Col(ColDate).Records()
	from, to := dates[0], dates[0]
	for _, d := range dates {
		if d < from {
			from = d
		}
		if d > to {
			to = d
		}
	}
	return Overview{Rows: t.Len(), Stations: len(stations), From: from, To: to}
}

func (t *Table) floats(col string) []float64 {
	return t.df.Col(col).Float()
}

func (t *Table) stations() []string {
	return t.df.Col(ColStation).Records()
}

func floatOrNaN(v float64, valid bool) float64 {
	if !valid {
		return math.NaN()
	}
	return v
}
