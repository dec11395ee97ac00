package charts

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
)

// averagesGrid lays out station means with pollutants along X and stations
// along Y.
type averagesGrid struct {
	averages []analysis.StationAverage
}

func (g averagesGrid) Dims() (c, r int) { return len(models.Pollutants), len(g.averages) }
func (g averagesGrid) Z(c, r int) float64 {
	return g.averages[r].Mean(models.Pollutants[c])
}
func (g averagesGrid) X(c int) float64 { return float64(c) }
func (g averagesGrid) Y(r int) float64 { return float64(r) }

// AveragesHeatmap draws the station by pollutant means table on a diverging
// blue to red scale, each cell annotated to one decimal place.
func AveragesHeatmap(averages []analysis.StationAverage) ([]byte, error) {
	if len(averages) == 0 {
		return nil, analysis.ErrNoData
	}
	grid := averagesGrid{averages: averages}

	lo, hi := math.Inf(1), math.Inf(-1)
	c, r := grid.Dims()
	var labels plotter.XYLabels
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			v := grid.Z(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			labels.XYs = append(labels.XYs, plotter.XY{X: grid.X(i), Y: grid.Y(j)})
			labels.Labels = append(labels.Labels, fmt.Sprintf("%.1f", v))
		}
	}
	if len(labels.XYs) == 0 {
		return nil, analysis.ErrNoData
	}
	if lo == hi {
		hi = lo + 1
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)

	p := plot.New()
	p.Title.Text = "Average Pollutant Levels by Station"

	hm := plotter.NewHeatMap(grid, cm.Palette(255))
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Transparent
	p.Add(hm)

	annotations, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range annotations.TextStyle {
		annotations.TextStyle[i].XAlign = draw.XCenter
		annotations.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(annotations)

	names := make([]string, len(models.Pollutants))
	for i, pol := range models.Pollutants {
		names[i] = string(pol)
	}
	stations := make([]string, len(averages))
	for i, a := range averages {
		stations[i] = a.Station
	}
	p.NominalX(names...)
	p.NominalY(stations...)

	return render("heatmap", p)
}
