package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownPollutant = errors.New("unknown pollutant")

// Pollutant names one of the six measured concentrations. The value is the
// column header used by the source dataset.
type Pollutant string

const (
	PM25 Pollutant = "PM2.5"
	PM10 Pollutant = "PM10"
	SO2  Pollutant = "SO2"
	NO2  Pollutant = "NO2"
	CO   Pollutant = "CO"
	O3   Pollutant = "O3"
)

// Pollutants lists every parameter in display order.
var Pollutants = []Pollutant{PM25, PM10, SO2, NO2, CO, O3}

func ParsePollutant(s string) (Pollutant, error) {
	for _, p := range Pollutants {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPollutant, s)
}

type Observation struct {
	ID      int64
	Station string
	Year    int
	Month   int
	Day     int
	Hour    int
	PM25    sql.NullFloat64
	PM10    sql.NullFloat64
	SO2     sql.NullFloat64
	NO2     sql.NullFloat64
	CO      sql.NullFloat64
	O3      sql.NullFloat64
	Temp    sql.NullFloat64
	Pres    sql.NullFloat64
	Dewp    sql.NullFloat64
	Rain    sql.NullFloat64
	WindDir sql.NullString
	WSPM    sql.NullFloat64
}

// Date returns the calendar day of the observation (hour dropped) in UTC.
func (o Observation) Date() time.Time {
	return time.Date(o.Year, time.Month(o.Month), o.Day, 0, 0, 0, 0, time.UTC)
}

func (o Observation) Weekday() time.Weekday {
	return o.Date().Weekday()
}

// Value returns the reading for a pollutant.
func (o Observation) Value(p Pollutant) sql.NullFloat64 {
	switch p {
	case PM25:
		return o.PM25
	case PM10:
		return o.PM10
	case SO2:
		return o.SO2
	case NO2:
		return o.NO2
	case CO:
		return o.CO
	case O3:
		return o.O3
	}
	return sql.NullFloat64{}
}

type ImportRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Source       string
	ContentHash  sql.NullString
	RowsParsed   sql.NullInt64
	RowsStored   sql.NullInt64
	QualityFlags sql.NullInt64
	Skipped      bool // content hash matched the previous successful import
	Success      bool
	ErrorMessage sql.NullString
}
