package analysis

import (
	"math"
	"sort"

	"github.com/lox/airquality/internal/models"
)

// StationAverage holds the mean of every pollutant at one station.
type StationAverage struct {
	Station string
	Means   map[models.Pollutant]float64
}

// Mean returns the station's mean for p, NaN when it has no readings.
func (a StationAverage) Mean(p models.Pollutant) float64 {
	v, ok := a.Means[p]
	if !ok {
		return math.NaN()
	}
	return v
}

// MeltedAverage is one (station, pollutant) cell of the averages table in
// long form.
type MeltedAverage struct {
	Station  string
	Variable models.Pollutant
	Value    float64
}

// RankedStation is one bar of a per-pollutant station ranking.
type RankedStation struct {
	Station string
	Value   float64
	Highest bool
	Lowest  bool
}

// StationAverages returns per-station pollutant means sorted by station.
func (t *Table) StationAverages() []StationAverage {
	defer observeView("averages")()
	if t.Len() == 0 {
		return nil
	}

	stations := t.stations()
	cols := make(map[models.Pollutant][]float64, len(models.Pollutants))
	for _, p := range models.Pollutants {
		cols[p] = t.floats(string(p))
	}

	groups := make(map[string]map[models.Pollutant][]float64)
	for i, s := range stations {
		g, ok := groups[s]
		if !ok {
			g = make(map[models.Pollutant][]float64, len(models.Pollutants))
			groups[s] = g
		}
		for _, p := range models.Pollutants {
			g[p] = append(g[p], cols[p][i])
		}
	}

	out := make([]StationAverage, 0, len(groups))
	for s, g := range groups {
		avg := StationAverage{Station: s, Means: make(map[models.Pollutant]float64, len(models.Pollutants))}
		for _, p := range models.Pollutants {
			avg.Means[p] = mean(g[p])
		}
		out = append(out, avg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}

// Melt reshapes averages to one row per station and pollutant, pollutant
// major.
func Melt(averages []StationAverage) []MeltedAverage {
	out := make([]MeltedAverage, 0, len(averages)*len(models.Pollutants))
	for _, p := range models.Pollutants {
		for _, a := range averages {
			out = append(out, MeltedAverage{Station: a.Station, Variable: p, Value: a.Mean(p)})
		}
	}
	return out
}

// Ranking orders stations by their mean of p, lowest first. Stations with no
// readings for p are left out.
func Ranking(averages []StationAverage, p models.Pollutant) []RankedStation {
	out := make([]RankedStation, 0, len(averages))
	for _, a := range averages {
		v := a.Mean(p)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, RankedStation{Station: a.Station, Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	if len(out) > 0 {
		out[0].Lowest = true
		out[len(out)-1].Highest = true
	}
	return out
}
