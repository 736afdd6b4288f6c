package summary

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/vegetation.report/internal/batch"
	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/ndvi"
)

func successResult(no string, lat, lon float64, date string, mean float64) batch.UnitResult {
	return batch.UnitResult{
		PointID: no,
		Lat:     lat,
		Lon:     lon,
		File:    "/data/avhrr_" + date + "_v5.nc",
		Date:    date,
		State:   batch.Succeeded,
		Stats: &ndvi.StatsRecord{
			PointID: no, Lat: lat, Lon: lon, Date: date, Mean: mean,
		},
	}
}

func failedResult(no, date string) batch.UnitResult {
	return batch.UnitResult{
		PointID: no,
		File:    "/data/avhrr_" + date + "_v5.nc",
		Date:    date,
		State:   batch.Failed,
		Err:     "open: file does not exist",
	}
}

func TestAggregateEndToEnd(t *testing.T) {
	results := []batch.UnitResult{
		successResult("2", 40.0, 140.0, "20100201", 0.5),
		successResult("1", 35.0, 135.0, "20100101", 0.5),
		successResult("2", 40.0, 140.0, "20100101", 0.5),
		successResult("1", 35.0, 135.0, "20100201", 0.5),
	}

	wide, long, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	wantWide := &WideTable{
		Dates: []string{"20100101", "20100201"},
		Rows: []WideRow{
			{No: "1", Lat: 35.0, Lon: 135.0, Cells: []string{"0.5", "0.5"}},
			{No: "2", Lat: 40.0, Lon: 140.0, Cells: []string{"0.5", "0.5"}},
		},
	}
	if diff := cmp.Diff(wantWide, wide); diff != "" {
		t.Errorf("wide table mismatch (-want +got):\n%s", diff)
	}

	wantLong := &LongTable{Rows: []LongRow{
		{No: "1", Lat: 35.0, Lon: 135.0, Date: "20100101", NDVI: "0.5"},
		{No: "2", Lat: 40.0, Lon: 140.0, Date: "20100101", NDVI: "0.5"},
		{No: "1", Lat: 35.0, Lon: 135.0, Date: "20100201", NDVI: "0.5"},
		{No: "2", Lat: 40.0, Lon: 140.0, Date: "20100201", NDVI: "0.5"},
	}}
	if diff := cmp.Diff(wantLong, long); diff != "" {
		t.Errorf("long table mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateMissingCells(t *testing.T) {
	results := []batch.UnitResult{
		successResult("1", 35.0, 135.0, "20100101", 0.4),
		successResult("2", 40.0, 140.0, "20100201", 0.6),
		failedResult("1", "20100201"),
		failedResult("2", "20100101"),
	}

	wide, long, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if diff := cmp.Diff([]string{"20100101", "20100201"}, wide.Dates); diff != "" {
		t.Fatalf("dates mismatch:\n%s", diff)
	}
	if got := wide.Rows[0].Cells; got[0] != "0.4" || got[1] != MissingValue {
		t.Errorf("row 1 cells = %v", got)
	}
	if got := wide.Rows[1].Cells; got[0] != MissingValue || got[1] != "0.6" {
		t.Errorf("row 2 cells = %v", got)
	}

	// Long table keeps the gap rows, marked missing.
	if len(long.Rows) != 4 {
		t.Fatalf("long rows = %d, want 4", len(long.Rows))
	}
	if long.Rows[1].NDVI != MissingValue {
		t.Errorf("long row %+v, want missing marker", long.Rows[1])
	}
}

func TestAggregateOmitsPointsWithoutSuccesses(t *testing.T) {
	results := []batch.UnitResult{
		successResult("1", 35.0, 135.0, "20100101", 0.4),
		failedResult("7", "20100101"),
	}

	wide, long, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(wide.Rows) != 1 || wide.Rows[0].No != "1" {
		t.Errorf("wide rows = %+v, want only point 1", wide.Rows)
	}
	for _, row := range long.Rows {
		if row.No == "7" {
			t.Errorf("point 7 leaked into long table: %+v", row)
		}
	}
}

func TestAggregateNumericLabelOrder(t *testing.T) {
	results := []batch.UnitResult{
		successResult("10", 1, 1, "20100101", 0.1),
		successResult("2", 2, 2, "20100101", 0.2),
		successResult("1", 3, 3, "20100101", 0.3),
	}

	wide, _, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	var order []string
	for _, row := range wide.Rows {
		order = append(order, row.No)
	}
	if diff := cmp.Diff([]string{"1", "2", "10"}, order); diff != "" {
		t.Errorf("row order mismatch:\n%s", diff)
	}
}

func TestAggregateUnknownDateSortsLast(t *testing.T) {
	results := []batch.UnitResult{
		successResult("1", 1, 1, batch.UnknownDate, 0.1),
		successResult("1", 1, 1, "20100101", 0.2),
	}

	wide, _, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if diff := cmp.Diff([]string{"20100101", batch.UnknownDate}, wide.Dates); diff != "" {
		t.Errorf("dates mismatch:\n%s", diff)
	}
}

func TestAggregateNoSuccesses(t *testing.T) {
	_, _, err := Aggregate([]batch.UnitResult{failedResult("1", "20100101")})
	if !errors.Is(err, ErrNoSummary) {
		t.Errorf("err = %v, want ErrNoSummary", err)
	}
}

func TestWriteWideCSV(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	wide := &WideTable{
		Dates: []string{"20100101", "20100201"},
		Rows: []WideRow{
			{No: "1", Lat: 35.0, Lon: 135.0, Cells: []string{"0.5", MissingValue}},
		},
	}

	if err := WriteWideCSV(fsys, "/out/ndvi_summary.csv", wide); err != nil {
		t.Fatalf("WriteWideCSV: %v", err)
	}
	data, err := fsys.ReadFile("/out/ndvi_summary.csv")
	if err != nil {
		t.Fatal(err)
	}
	want := "No,Lat,Lon,20100101,20100201\n1,35,135,0.5,NaN\n"
	if string(data) != want {
		t.Errorf("csv = %q, want %q", data, want)
	}
}

func TestWriteLongCSV(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	long := &LongTable{Rows: []LongRow{
		{No: "1", Lat: 35.0, Lon: 135.0, Date: "20100101", NDVI: "0.5"},
		{No: "2", Lat: 40.0, Lon: 140.0, Date: "20100101", NDVI: MissingValue},
	}}

	if err := WriteLongCSV(fsys, "/out/ndvi_long.csv", long); err != nil {
		t.Fatalf("WriteLongCSV: %v", err)
	}
	data, err := fsys.ReadFile("/out/ndvi_long.csv")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "No,Lat,Lon,Date,NDVI" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
}
