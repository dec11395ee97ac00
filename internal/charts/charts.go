// Package charts renders the dashboard's summary views as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/metrics"
	"github.com/lox/airquality/internal/models"
)

var (
	colorDefault = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorHighest = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorLowest  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	colorMean    = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
)

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch
)

// CorrelationBar draws one bar per station coloured by rank: the highest
// coefficient red, the lowest green, the rest blue. Stations with an
// undefined coefficient keep their label but have no bar.
func CorrelationBar(corr []analysis.StationCorrelation) ([]byte, error) {
	if len(corr) == 0 {
		return nil, analysis.ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Correlation between TEMP and O3 by Station"
	p.Y.Label.Text = "Pearson coefficient"
	p.Add(dashedGrid())

	names := make([]string, len(corr))
	for i, c := range corr {
		names[i] = c.Station
		if math.IsNaN(c.Coefficient) {
			continue
		}
		bar, err := plotter.NewBarChart(plotter.Values{c.Coefficient}, vg.Points(24))
		if err != nil {
			return nil, fmt.Errorf("correlation bar %s: %w", c.Station, err)
		}
		bar.XMin = float64(i)
		bar.LineStyle.Width = 0
		bar.Color = rankColor(c.Highest, c.Lowest)
		p.Add(bar)
	}
	p.NominalX(names...)
	rotateX(p)

	return render("correlation", p)
}

// WeekdayLines plots the mean of p for each day Monday to Sunday. Weekday
// points are blue and weekend points red.
func WeekdayLines(stats []analysis.WeekdayStat, pollutant models.Pollutant) ([]byte, error) {
	if len(stats) == 0 {
		return nil, analysis.ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean %s by Day of Week", pollutant)
	p.Y.Label.Text = fmt.Sprintf("%s (µg/m³)", pollutant)
	p.Add(dashedGrid())

	var line, weekday, weekend plotter.XYs
	names := make([]string, len(stats))
	for i, s := range stats {
		names[i] = s.Day.String()
		sum, ok := s.Summary(pollutant)
		if !ok {
			return nil, fmt.Errorf("weekday chart: %w: %s", models.ErrUnknownPollutant, pollutant)
		}
		if math.IsNaN(sum.Mean) {
			continue
		}
		pt := plotter.XY{X: float64(i), Y: sum.Mean}
		line = append(line, pt)
		if s.Weekend {
			weekend = append(weekend, pt)
		} else {
			weekday = append(weekday, pt)
		}
	}
	if len(line) == 0 {
		return nil, analysis.ErrNoData
	}

	l, err := plotter.NewLine(line)
	if err != nil {
		return nil, fmt.Errorf("weekday line: %w", err)
	}
	l.LineStyle.Color = colorMean
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add("Mean", l)

	for _, group := range []struct {
		label string
		pts   plotter.XYs
		color color.Color
	}{
		{"Weekday", weekday, colorDefault},
		{"Weekend", weekend, colorHighest},
	} {
		if len(group.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(group.pts)
		if err != nil {
			return nil, fmt.Errorf("weekday points: %w", err)
		}
		sc.GlyphStyle.Color = group.color
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add(group.label, sc)
	}

	p.Legend.Top = true
	p.NominalX(names...)
	p.X.Min, p.X.Max = -0.5, float64(len(stats))-0.5

	return render("weekday", p)
}

// StationBars draws the ranking as horizontal bars, lowest mean at the
// bottom, with the extremes highlighted.
func StationBars(ranking []analysis.RankedStation, pollutant models.Pollutant) ([]byte, error) {
	if len(ranking) == 0 {
		return nil, analysis.ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Average %s by Station", pollutant)
	p.X.Label.Text = fmt.Sprintf("Average %s", pollutant)
	p.Add(dashedGrid())

	names := make([]string, len(ranking))
	for i, r := range ranking {
		names[i] = r.Station
		bar, err := plotter.NewBarChart(plotter.Values{r.Value}, vg.Points(18))
		if err != nil {
			return nil, fmt.Errorf("station bar %s: %w", r.Station, err)
		}
		bar.Horizontal = true
		bar.XMin = float64(i)
		bar.LineStyle.Width = 0
		bar.Color = rankColor(r.Highest, r.Lowest)
		p.Add(bar)
	}
	p.NominalY(names...)

	return render("stations", p)
}

func rankColor(highest, lowest bool) color.Color {
	switch {
	case highest:
		return colorHighest
	case lowest:
		return colorLowest
	default:
		return colorDefault
	}
}

func dashedGrid() *plotter.Grid {
	g := plotter.NewGrid()
	g.Vertical.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	g.Horizontal.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	return g
}

func rotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

func render(chart string, p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		metrics.ChartRendersTotal.WithLabelValues(chart, "error").Inc()
		return nil, fmt.Errorf("render %s: %w", chart, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		metrics.ChartRendersTotal.WithLabelValues(chart, "error").Inc()
		return nil, fmt.Errorf("encode %s: %w", chart, err)
	}
	metrics.ChartRendersTotal.WithLabelValues(chart, "ok").Inc()
	return buf.Bytes(), nil
}
