package ingest

import (
	"github.com/lox/airquality/internal/models"
)

const (
	FlagNegativeConcentration = "negative_concentration"
	FlagTempOutOfRange        = "temp_out_of_range"
	FlagPressureOutOfRange    = "pressure_out_of_range"
	FlagRainNegative          = "rain_negative"
	FlagWindSpeedUnlikely     = "wind_speed_unlikely"
)

// ValidateObservation returns quality flags for a row. Flags are reported,
// never used to reject data.
func ValidateObservation(obs *models.Observation) []string {
	var flags []string

	for _, p := range models.Pollutants {
		if v := obs.Value(p); v.Valid && v.Float64 < 0 {
			flags = append(flags, FlagNegativeConcentration)
			break
		}
	}

	if obs.Temp.Valid {
		if obs.Temp.Float64 < -40 || obs.Temp.Float64 > 50 {
			flags = append(flags, FlagTempOutOfRange)
		}
	}

	if obs.Pres.Valid {
		if obs.Pres.Float64 < 900 || obs.Pres.Float64 > 1100 {
			flags = append(flags, FlagPressureOutOfRange)
		}
	}

	if obs.Rain.Valid && obs.Rain.Float64 < 0 {
		flags = append(flags, FlagRainNegative)
	}

	if obs.WSPM.Valid {
		if obs.WSPM.Float64 < 0 || obs.WSPM.Float64 > 60 {
			flags = append(flags, FlagWindSpeedUnlikely)
		}
	}

	return flags
}
