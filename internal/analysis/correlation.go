package analysis

import (
	"math"
	"sort"

	"github.com/lox/airquality/internal/models"
)

// StationCorrelation is the Pearson coefficient between temperature and
// ozone at one station. Highest and Lowest mark the extremes across all
// stations with a defined coefficient.
type StationCorrelation struct {
	Station     string
	Coefficient float64
	Highest     bool
	Lowest      bool
}

// Correlations returns one TEMP/O3 correlation per station, sorted by
// station name.
func (t *Table) Correlations() []StationCorrelation {
	defer observeView("correlation")()
	if t.Len() == 0 {
		return nil
	}

	temps := make(map[string][]float64)
	ozone := make(map[string][]float64)
	stations := t.stations()
	temp := t.floats(ColTemp)
	o3 := t.floats(string(models.O3))
	for i, s := range stations {
		temps[s] = append(temps[s], temp[i])
		ozone[s] = append(ozone[s], o3[i])
	}

	out := make([]StationCorrelation, 0, len(temps))
	for s := range temps {
		out = append(out, StationCorrelation{
			Station:     s,
			Coefficient: pearson(temps[s], ozone[s]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })

	hi, lo := -1, -1
	for i, c := range out {
		if math.IsNaN(c.Coefficient) {
			continue
		}
		if hi < 0 || c.Coefficient > out[hi].Coefficient {
			hi = i
		}
		if lo < 0 || c.Coefficient < out[lo].Coefficient {
			lo = i
		}
	}
	if hi >= 0 {
		out[hi].Highest = true
		out[lo].Lowest = true
	}
	return out
}
