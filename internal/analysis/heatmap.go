package analysis

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/airquality/internal/models"
)

// HeatPoint is one weighted point of the map layer.
type HeatPoint struct {
	Station string
	Lat     float64
	Lon     float64
	Value   float64
}

// HeatPoints returns a point for every row of year with a reading for p.
// A year without matching rows yields an empty, non-nil slice.
func (t *Table) HeatPoints(year int, p models.Pollutant) ([]HeatPoint, error) {
	defer observeView("heatmap")()
	if _, err := models.ParsePollutant(string(p)); err != nil {
		return nil, err
	}
	out := []HeatPoint{}
	if t.Len() == 0 {
		return out, nil
	}

	rows := t.df.Filter(dataframe.F{Colname: ColYear, Comparator: series.Eq, Comparando: year})
	if rows.Err != nil {
		return nil, fmt.Errorf("filter year: %w", rows.Err)
	}
	if rows.Nrow() == 0 {
		return out, nil
	}

	stations := rows.Col(ColStation).Records()
	lats := rows.Col(ColLatitude).Float()
	lons := rows.Col(ColLongitude).Float()
	values := rows.Col(string(p)).Float()
	for i := range stations {
		if math.IsNaN(values[i]) {
			continue
		}
		out = append(out, HeatPoint{
			Station: stations[i],
			Lat:     lats[i],
			Lon:     lons[i],
			Value:   values[i],
		})
	}
	return out, nil
}
