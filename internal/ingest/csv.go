package ingest

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/airquality/internal/models"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrInvalidDate    = errors.New("invalid date")
	ErrEmptyDataset   = errors.New("dataset has no rows")
)

// RequiredColumns must be present in every dataset.
var RequiredColumns = []string{
	"station", "year", "month", "day", "hour",
	"PM2.5", "PM10", "SO2", "NO2", "CO", "O3", "TEMP",
}

var columnTypes = map[string]series.Type{
	"No":      series.Int,
	"station": series.String,
	"year":    series.Int,
	"month":   series.Int,
	"day":     series.Int,
	"hour":    series.Int,
	"PM2.5":   series.Float,
	"PM10":    series.Float,
	"SO2":     series.Float,
	"NO2":     series.Float,
	"CO":      series.Float,
	"O3":      series.Float,
	"TEMP":    series.Float,
	"PRES":    series.Float,
	"DEWP":    series.Float,
	"RAIN":    series.Float,
	"wd":      series.String,
	"WSPM":    series.Float,
}

// ParseResult is a validated dataset ready to be stored.
type ParseResult struct {
	Observations []models.Observation
	Flags        map[string]int // quality flag -> rows flagged
}

// FlaggedRows is the total number of quality flags raised.
func (r *ParseResult) FlaggedRows() int {
	n := 0
	for _, c := range r.Flags {
		n += c
	}
	return n
}

// ParseCSV reads the pre-joined air quality CSV. Structural problems are
// reported as a single error before any row is returned: every missing column
// at once, every unknown station at once, or the first row with an impossible
// date.
func ParseCSV(data []byte) (*ParseResult, error) {
	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithTypes(columnTypes),
		dataframe.NaNValues([]string{"NA", "NaN", "", "<nil>"}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	if missing := missingColumns(df.Names()); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	if df.Nrow() == 0 {
		return nil, ErrEmptyDataset
	}

	if unknown := unknownStations(df.Col("station")); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStation, strings.Join(unknown, ", "))
	}

	names := make(map[string]bool, len(df.Names()))
	for _, n := range df.Names() {
		names[n] = true
	}
	optional := func(name string) *series.Series {
		if !names[name] {
			return nil
		}
		col := df.Col(name)
		return &col
	}
	required := func(name string) *series.Series {
		col := df.Col(name)
		return &col
	}

	var (
		station = df.Col("station")
		year    = df.Col("year")
		month   = df.Col("month")
		day     = df.Col("day")
		hour    = df.Col("hour")
		pm25    = required("PM2.5")
		pm10    = required("PM10")
		so2     = required("SO2")
		no2     = required("NO2")
		co      = required("CO")
		o3      = required("O3")
		temp    = required("TEMP")
		pres    = optional("PRES")
		dewp    = optional("DEWP")
		rain    = optional("RAIN")
		wspm    = optional("WSPM")
		wd      = optional("wd")
	)

	result := &ParseResult{
		Observations: make([]models.Observation, 0, df.Nrow()),
		Flags:        make(map[string]int),
	}

	for i := 0; i < df.Nrow(); i++ {
		y, m, d, h, err := dateParts(year, month, day, hour, i)
		if err != nil {
			// Row numbers are 1-based and account for the header line.
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidDate, i+2, err)
		}

		obs := models.Observation{
			Station: station.Elem(i).String(),
			Year:    y,
			Month:   m,
			Day:     d,
			Hour:    h,
			PM25:    nullFloat(pm25, i),
			PM10:    nullFloat(pm10, i),
			SO2:     nullFloat(so2, i),
			NO2:     nullFloat(no2, i),
			CO:      nullFloat(co, i),
			O3:      nullFloat(o3, i),
			Temp:    nullFloat(temp, i),
			Pres:    nullFloat(pres, i),
			Dewp:    nullFloat(dewp, i),
			Rain:    nullFloat(rain, i),
			WindDir: nullString(wd, i),
			WSPM:    nullFloat(wspm, i),
		}

		for _, flag := range ValidateObservation(&obs) {
			result.Flags[flag]++
		}
		result.Observations = append(result.Observations, obs)
	}

	return result, nil
}

func missingColumns(names []string) []string {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func unknownStations(col series.Series) []string {
	seen := make(map[string]bool)
	var unknown []string
	for _, name := range col.Records() {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, err := models.LookupStation(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func dateParts(year, month, day, hour series.Series, i int) (y, m, d, h int, err error) {
	parts := []struct {
		name string
		col  series.Series
		dst  *int
	}{
		{"year", year, &y},
		{"month", month, &m},
		{"day", day, &d},
		{"hour", hour, &h},
	}
	for _, p := range parts {
		v, err := p.col.Elem(i).Int()
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("%s is not an integer", p.name)
		}
		*p.dst = v
	}

	if m < 1 || m > 12 {
		return 0, 0, 0, 0, fmt.Errorf("month %d out of range", m)
	}
	if h < 0 || h > 23 {
		return 0, 0, 0, 0, fmt.Errorf("hour %d out of range", h)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return 0, 0, 0, 0, fmt.Errorf("%04d-%02d-%02d is not a calendar date", y, m, d)
	}
	return y, m, d, h, nil
}

func nullFloat(col *series.Series, i int) sql.NullFloat64 {
	if col == nil {
		return sql.NullFloat64{}
	}
	el := col.Elem(i)
	if el.IsNA() {
		return sql.NullFloat64{}
	}
	v := el.Float()
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(col *series.Series, i int) sql.NullString {
	if col == nil {
		return sql.NullString{}
	}
	el := col.Elem(i)
	if el.IsNA() {
		return sql.NullString{}
	}
	return sql.NullString{String: el.String(), Valid: true}
}
