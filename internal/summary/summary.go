// Package summary aggregates batch results into wide and long
// time-series tables and exports them as CSV.
package summary

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/banshee-data/vegetation.report/internal/batch"
	"github.com/banshee-data/vegetation.report/internal/fsutil"
)

// ErrNoSummary reports a batch run with zero successful units.
var ErrNoSummary = errors.New("summary: no successful units to aggregate")

// MissingValue marks a (point, date) combination with no successful
// extraction.
const MissingValue = "NaN"

// WideTable is one row per point with one column per observation date.
// Cells[i][j] holds the mean index of Rows[i] on Dates[j], or
// MissingValue.
type WideTable struct {
	Dates []string
	Rows  []WideRow
}

// WideRow is one point's row; Cells aligns with the table's Dates.
type WideRow struct {
	No    string
	Lat   float64
	Lon   float64
	Cells []string
}

// LongTable is one row per (point, date) combination.
type LongTable struct {
	Rows []LongRow
}

// LongRow is one observation in long form. NDVI is a formatted value or
// MissingValue.
type LongRow struct {
	No   string
	Lat  float64
	Lon  float64
	Date string
	NDVI string
}

type pointKey struct {
	no       string
	lat, lon float64
}

// Aggregate builds the wide and long tables from a run's results. Only
// succeeded units contribute; points with zero successes are omitted
// entirely. Date columns sort lexicographically (chronological for the
// 8-digit tokens, with "unknown" after them); rows sort by point label,
// numerically when both labels are integers. Returns ErrNoSummary when
// no unit succeeded.
func Aggregate(results []batch.UnitResult) (*WideTable, *LongTable, error) {
	succ := make([]batch.UnitResult, 0, len(results))
	for _, res := range results {
		if res.State == batch.Succeeded && res.Stats != nil {
			succ = append(succ, res)
		}
	}
	if len(succ) == 0 {
		return nil, nil, ErrNoSummary
	}

	// Deterministic fill order regardless of completion order; on a
	// duplicate (point, date) the later file wins.
	sort.Slice(succ, func(i, j int) bool {
		if succ[i].PointID != succ[j].PointID {
			return lessLabel(succ[i].PointID, succ[j].PointID)
		}
		if succ[i].Date != succ[j].Date {
			return succ[i].Date < succ[j].Date
		}
		return succ[i].File < succ[j].File
	})

	dateSet := make(map[string]bool)
	values := make(map[pointKey]map[string]float64)
	var order []pointKey
	for _, res := range succ {
		key := pointKey{no: res.PointID, lat: res.Lat, lon: res.Lon}
		if values[key] == nil {
			values[key] = make(map[string]float64)
			order = append(order, key)
		}
		values[key][res.Date] = res.Stats.Mean
		dateSet[res.Date] = true
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	sort.Slice(order, func(i, j int) bool { return lessLabel(order[i].no, order[j].no) })

	wide := &WideTable{Dates: dates, Rows: make([]WideRow, 0, len(order))}
	for _, key := range order {
		row := WideRow{No: key.no, Lat: key.lat, Lon: key.lon, Cells: make([]string, len(dates))}
		for j, d := range dates {
			if v, ok := values[key][d]; ok {
				row.Cells[j] = formatValue(v)
			} else {
				row.Cells[j] = MissingValue
			}
		}
		wide.Rows = append(wide.Rows, row)
	}

	long := &LongTable{Rows: make([]LongRow, 0, len(order)*len(dates))}
	for _, d := range dates {
		for _, key := range order {
			cell := MissingValue
			if v, ok := values[key][d]; ok {
				cell = formatValue(v)
			}
			long.Rows = append(long.Rows, LongRow{
				No:   key.no,
				Lat:  key.lat,
				Lon:  key.lon,
				Date: d,
				NDVI: cell,
			})
		}
	}

	return wide, long, nil
}

// lessLabel orders point labels numerically when both parse as integers,
// falling back to string order.
func lessLabel(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteWideCSV writes the wide table to path with header
// No,Lat,Lon,<dates...>.
func WriteWideCSV(fsys fsutil.FileSystem, path string, t *WideTable) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"No", "Lat", "Lon"}, t.Dates...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := append([]string{
			row.No,
			strconv.FormatFloat(row.Lat, 'g', -1, 64),
			strconv.FormatFloat(row.Lon, 'g', -1, 64),
		}, row.Cells...)
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("summary: write %s: %w", path, err)
	}
	return nil
}

// WriteLongCSV writes the long table to path with header
// No,Lat,Lon,Date,NDVI.
func WriteLongCSV(fsys fsutil.FileSystem, path string, t *LongTable) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"No", "Lat", "Lon", "Date", "NDVI"}); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := []string{
			row.No,
			strconv.FormatFloat(row.Lat, 'g', -1, 64),
			strconv.FormatFloat(row.Lon, 'g', -1, 64),
			row.Date,
			row.NDVI,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("summary: write %s: %w", path, err)
	}
	return nil
}
