package analysis

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/airquality/internal/models"
)

// WeekOrder is the display order of weekday rows.
var WeekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeekdayStat summarises particulate readings for one day of the week.
type WeekdayStat struct {
	Day     time.Weekday
	Weekend bool
	PM25    Summary
	PM10    Summary
}

// Summary returns the stat for PM2.5 or PM10. Other pollutants are not part
// of the weekday view.
func (w WeekdayStat) Summary(p models.Pollutant) (Summary, bool) {
	switch p {
	case models.PM25:
		return w.PM25, true
	case models.PM10:
		return w.PM10, true
	}
	return Summary{}, false
}

// WeekdayStats groups one station's rows by day of week. The result always
// has seven rows, Monday first; days without rows carry NaN statistics.
func (t *Table) WeekdayStats(station string) ([]WeekdayStat, error) {
	defer observeView("weekday")()
	if _, err := models.LookupStation(station); err != nil {
		return nil, err
	}

	pm25 := make(map[string][]float64)
	pm10 := make(map[string][]float64)
	if t.Len() > 0 {
		rows := t.df.Filter(dataframe.F{Colname: ColStation, Comparator: series.Eq, Comparando: station})
		if rows.Err != nil {
			return nil, fmt.Errorf("filter station: %w", rows.Err)
		}
		if rows.Nrow() > 0 {
			days := rows.Col(ColDayWeek).Records()
			p25 := rows.Col(string(models.PM25)).Float()
			p10 := rows.Col(string(models.PM10)).Float()
			for i, d := range days {
				pm25[d] = append(pm25[d], p25[i])
				pm10[d] = append(pm10[d], p10[i])
			}
		}
	}

	out := make([]WeekdayStat, len(WeekOrder))
	for i, d := range WeekOrder {
		out[i] = WeekdayStat{
			Day:     d,
			Weekend: d == time.Saturday || d == time.Sunday,
			PM25:    summarize(pm25[d.String()]),
			PM10:    summarize(pm10[d.String()]),
		}
	}
	return out, nil
}
