// Package export writes the summary views to a spreadsheet.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
)

const (
	SheetCorrelation = "Correlation"
	SheetWeekday     = "Weekday"
	SheetAverages    = "Averages"
	SheetMelted      = "Averages (long)"
)

// Workbook builds a workbook with one sheet per summary view. The weekday
// sheet covers station.
func Workbook(table *analysis.Table, station string) (*excelize.File, error) {
	weekday, err := table.WeekdayStats(station)
	if err != nil {
		return nil, err
	}
	averages := table.StationAverages()

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetCorrelation); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetWeekday, SheetAverages, SheetMelted} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	w := sheetWriter{f: f}

	w.header(SheetCorrelation, "Station", "TEMP/O3 correlation", "Rank")
	for i, c := range table.Correlations() {
		rank := ""
		switch {
		case c.Highest:
			rank = "highest"
		case c.Lowest:
			rank = "lowest"
		}
		w.row(SheetCorrelation, i+2, c.Station, c.Coefficient, rank)
	}

	w.header(SheetWeekday, "Day",
		"PM2.5 max", "PM2.5 min", "PM2.5 mean", "PM2.5 std",
		"PM10 max", "PM10 min", "PM10 mean", "PM10 std")
	for i, s := range weekday {
		w.row(SheetWeekday, i+2, s.Day.String(),
			s.PM25.Max, s.PM25.Min, s.PM25.Mean, s.PM25.Std,
			s.PM10.Max, s.PM10.Min, s.PM10.Mean, s.PM10.Std)
	}

	cols := []any{"Station"}
	for _, p := range models.Pollutants {
		cols = append(cols, string(p))
	}
	w.row(SheetAverages, 1, cols...)
	for i, a := range averages {
		vals := []any{a.Station}
		for _, p := range models.Pollutants {
			vals = append(vals, a.Mean(p))
		}
		w.row(SheetAverages, i+2, vals...)
	}

	w.header(SheetMelted, "Station", "Variable", "Value")
	for i, m := range analysis.Melt(averages) {
		w.row(SheetMelted, i+2, m.Station, string(m.Variable), m.Value)
	}

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// Write streams the workbook for table to out.
func Write(out io.Writer, table *analysis.Table, station string) error {
	f, err := Workbook(table, station)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first cell error so rows can be written without
// checking every call.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) header(sheet string, names ...string) {
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = n
	}
	w.row(sheet, 1, vals...)
	for i := range names {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if w.err == nil {
			w.err = w.f.SetColWidth(sheet, col, col, 18)
		}
	}
}

func (w *sheetWriter) row(sheet string, row int, vals ...any) {
	for i, v := range vals {
		if w.err != nil {
			return
		}
		// Undefined statistics are left as blank cells.
		if f, ok := v.(float64); ok && math.IsNaN(f) {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetCellValue(sheet, cell, v); err != nil {
			w.err = fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
}
