// Package insight turns the summary views into plain-language findings.
package insight

import (
	"fmt"
	"math"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
)

// Questions are the analysis questions the dashboard answers, in page order.
var Questions = []string{
	"What is the correlation between temperature and ozone levels across all stations?",
	"How do PM2.5 and PM10 levels differ between weekdays and weekends at Dongsi?",
	"Which station has the highest and lowest average level of each pollutant?",
}

// Extreme names the stations at either end of one pollutant's ranking.
type Extreme struct {
	Pollutant models.Pollutant
	Highest   analysis.RankedStation
	Lowest    analysis.RankedStation
}

// Facts are the figures conclusions are drawn from.
type Facts struct {
	Station       string
	Correlations  int
	PositiveCount int
	StrongestPos  *analysis.StationCorrelation
	Weakest       *analysis.StationCorrelation
	WeekdayMeans  map[models.Pollutant]float64
	WeekendMeans  map[models.Pollutant]float64
	Extremes      []Extreme
}

// Gather computes Facts from table. station selects the weekday comparison.
func Gather(table *analysis.Table, station string) (Facts, error) {
	f := Facts{
		Station:      station,
		WeekdayMeans: make(map[models.Pollutant]float64),
		WeekendMeans: make(map[models.Pollutant]float64),
	}

	for _, c := range table.Correlations() {
		if math.IsNaN(c.Coefficient) {
			continue
		}
		c := c
		f.Correlations++
		if c.Coefficient > 0 {
			f.PositiveCount++
		}
		if c.Highest {
			f.StrongestPos = &c
		}
		if c.Lowest {
			f.Weakest = &c
		}
	}

	stats, err := table.WeekdayStats(station)
	if err != nil {
		return Facts{}, err
	}
	for _, p := range []models.Pollutant{models.PM25, models.PM10} {
		var weekday, weekend []float64
		for _, s := range stats {
			sum, _ := s.Summary(p)
			if math.IsNaN(sum.Mean) {
				continue
			}
			if s.Weekend {
				weekend = append(weekend, sum.Mean)
			} else {
				weekday = append(weekday, sum.Mean)
			}
		}
		f.WeekdayMeans[p] = average(weekday)
		f.WeekendMeans[p] = average(weekend)
	}

	averages := table.StationAverages()
	for _, p := range models.Pollutants {
		ranked := analysis.Ranking(averages, p)
		if len(ranked) == 0 {
			continue
		}
		f.Extremes = append(f.Extremes, Extreme{
			Pollutant: p,
			Highest:   ranked[len(ranked)-1],
			Lowest:    ranked[0],
		})
	}
	return f, nil
}

// Conclusions renders facts as one sentence per finding.
func Conclusions(f Facts) []string {
	var out []string

	switch {
	case f.Correlations == 0:
	case f.PositiveCount == f.Correlations:
		out = append(out, fmt.Sprintf(
			"All %d stations show a positive correlation between temperature and ozone, strongest at %s (%.2f).",
			f.Correlations, f.StrongestPos.Station, f.StrongestPos.Coefficient))
	default:
		out = append(out, fmt.Sprintf(
			"%d of %d stations show a positive correlation between temperature and ozone; %s is lowest (%.2f).",
			f.PositiveCount, f.Correlations, f.Weakest.Station, f.Weakest.Coefficient))
	}

	for _, p := range []models.Pollutant{models.PM25, models.PM10} {
		wd, we := f.WeekdayMeans[p], f.WeekendMeans[p]
		if math.IsNaN(wd) || math.IsNaN(we) {
			continue
		}
		cmp := "higher"
		if wd < we {
			cmp = "lower"
		}
		out = append(out, fmt.Sprintf(
			"%s at %s is %s on weekdays (%.1f) than on weekends (%.1f).",
			p, f.Station, cmp, wd, we))
	}

	for _, e := range f.Extremes {
		out = append(out, fmt.Sprintf(
			"%s averages highest at %s (%.1f) and lowest at %s (%.1f).",
			e.Pollutant, e.Highest.Station, e.Highest.Value, e.Lowest.Station, e.Lowest.Value))
	}
	return out
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
