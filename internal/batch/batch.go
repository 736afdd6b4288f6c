// Package batch orchestrates vegetation-index extraction over the cross
// product of observation points and raster files.
package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/geo"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/ndvi"
	"github.com/banshee-data/vegetation.report/internal/points"
	"github.com/banshee-data/vegetation.report/internal/raster"
	"github.com/banshee-data/vegetation.report/internal/timeutil"
)

// UnitState tracks the lifecycle of one (point, file) work unit.
type UnitState int

const (
	Pending UnitState = iota
	Running
	Succeeded
	Failed
)

// String returns the lowercase state name.
func (s UnitState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("UnitState(%d)", int(s))
}

// UnitResult is the terminal record of one (point, file) unit. Failed
// units carry a diagnostic in Err and a nil Stats; succeeded units the
// reverse.
type UnitResult struct {
	PointID string
	Lat     float64
	Lon     float64
	File    string
	Date    string
	State   UnitState
	Stats   *ndvi.StatsRecord
	Err     string
	Elapsed time.Duration
}

// Options holds the extraction parameters of a batch run.
type Options struct {
	RegionKm float64
	Band1    string
	Band2    string
	LatVar   string
	LonVar   string
	Workers  int

	// OutputDir, when non-empty, receives per-point stats sidecar files
	// under point_<No>/<date>_ndvi_stats.csv.
	OutputDir string
}

// Runner executes batch runs against a raster reader.
type Runner struct {
	Reader  raster.Reader
	FS      fsutil.FileSystem
	Clock   timeutil.Clock
	Metrics *metrics.Collector
	Opts    Options
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

type unit struct {
	point points.Point
	file  string
}

// Run processes every point against every file and returns one
// UnitResult per unit. A unit failure never aborts its siblings; the
// worker count bounds parallelism, and Workers <= 1 runs strictly
// sequentially. Cancellation via ctx stops dispatching new units and
// fails the remainder.
func (r *Runner) Run(ctx context.Context, pts []points.Point, files []string) []UnitResult {
	units := make([]unit, 0, len(pts)*len(files))
	for _, p := range pts {
		for _, f := range files {
			units = append(units, unit{point: p, file: f})
		}
	}

	start := r.clock().Now()
	var results []UnitResult
	if r.Opts.Workers <= 1 {
		results = r.runSequential(ctx, units)
	} else {
		results = r.runParallel(ctx, units)
	}
	r.Metrics.RecordRun(r.clock().Since(start))

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.State == Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	log.Printf("batch: run complete: %d units, %d succeeded, %d failed", len(results), succeeded, failed)
	return results
}

func (r *Runner) runSequential(ctx context.Context, units []unit) []UnitResult {
	results := make([]UnitResult, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			results = append(results, r.cancelledResult(u, err))
			continue
		}
		results = append(results, r.runUnit(u))
	}
	return results
}

func (r *Runner) runParallel(ctx context.Context, units []unit) []UnitResult {
	out := make(chan UnitResult, len(units))

	var g errgroup.Group
	g.SetLimit(r.Opts.Workers)
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			out <- r.cancelledResult(u, err)
			continue
		}
		g.Go(func() error {
			out <- r.runUnit(u)
			return nil
		})
	}
	g.Wait()
	close(out)

	results := make([]UnitResult, 0, len(units))
	for res := range out {
		results = append(results, res)
	}
	return results
}

func (r *Runner) cancelledResult(u unit, err error) UnitResult {
	res := UnitResult{
		PointID: u.point.No,
		Lat:     u.point.Lat,
		Lon:     u.point.Lon,
		File:    u.file,
		Date:    DateToken(u.file),
		State:   Failed,
		Err:     fmt.Sprintf("cancelled: %v", err),
	}
	r.Metrics.RecordUnit(res.State.String(), 0)
	return res
}

// runUnit takes one unit from Pending through Running to a terminal
// state. Errors are folded into the result, never propagated.
func (r *Runner) runUnit(u unit) UnitResult {
	res := UnitResult{
		PointID: u.point.No,
		Lat:     u.point.Lat,
		Lon:     u.point.Lon,
		File:    u.file,
		Date:    DateToken(u.file),
		State:   Running,
	}

	start := r.clock().Now()
	rec, err := r.extract(u.point, u.file, res.Date)
	res.Elapsed = r.clock().Since(start)

	if err != nil {
		res.State = Failed
		res.Err = err.Error()
		log.Printf("batch: point %s file %s: %v", u.point.No, filepath.Base(u.file), err)
	} else {
		res.State = Succeeded
		res.Stats = rec
	}
	r.Metrics.RecordUnit(res.State.String(), res.Elapsed)
	return res
}

func (r *Runner) extract(pt points.Point, file, date string) (*ndvi.StatsRecord, error) {
	ds, err := r.Reader.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer ds.Close()

	lats, err := ds.Axis(r.Opts.LatVar)
	if err != nil {
		return nil, err
	}
	lons, err := ds.Axis(r.Opts.LonVar)
	if err != nil {
		return nil, err
	}
	v1, err := ds.Variable(r.Opts.Band1)
	if err != nil {
		return nil, err
	}
	v2, err := ds.Variable(r.Opts.Band2)
	if err != nil {
		return nil, err
	}

	latIdx, lonIdx := geo.RegionIndices(lats, lons, pt.Lat, pt.Lon, r.Opts.RegionKm)
	if len(latIdx) == 0 || len(lonIdx) == 0 {
		// Region misses the grid entirely (or region size is zero);
		// fall back to the full extent so coarse rasters still yield a
		// value, as the source pipeline does.
		log.Printf("batch: point %s: empty %gkm region in %s, using full extent",
			pt.No, r.Opts.RegionKm, filepath.Base(file))
		latIdx = fullRange(len(lats))
		lonIdx = fullRange(len(lons))
	}

	g1 := v1.Grid.Subset(latIdx, lonIdx)
	g2 := v2.Grid.Subset(latIdx, lonIdx)

	index, err := ndvi.ComputeIndex(g1, g2, v1.Meta, v2.Meta)
	if err != nil {
		return nil, err
	}

	rec, err := ndvi.Summarize(index, ndvi.SummaryContext{
		PointID:  pt.No,
		Lat:      pt.Lat,
		Lon:      pt.Lon,
		Date:     date,
		RegionKm: r.Opts.RegionKm,
	})
	if err != nil {
		return nil, err
	}

	if r.Opts.OutputDir != "" {
		if err := r.writeStatsSidecar(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func fullRange(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

var sidecarHeader = []string{
	"point_no", "lat", "lon", "date", "region_km",
	"mean", "max", "min", "median", "std_dev",
	"valid_count", "total_count", "valid_percent",
}

// writeStatsSidecar writes the per-unit stats CSV under the point's
// output directory. Units are unique per (point, date), so writes need
// no coordination.
func (r *Runner) writeStatsSidecar(rec *ndvi.StatsRecord) error {
	dir := filepath.Join(r.Opts.OutputDir, "point_"+rec.PointID)
	if err := r.fs().MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("sidecar dir: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sidecarHeader); err != nil {
		return err
	}
	row := []string{
		rec.PointID,
		formatFloat(rec.Lat),
		formatFloat(rec.Lon),
		rec.Date,
		formatFloat(rec.RegionKm),
		formatFloat(rec.Mean),
		formatFloat(rec.Max),
		formatFloat(rec.Min),
		formatFloat(rec.Median),
		formatFloat(rec.StdDev),
		strconv.Itoa(rec.ValidCount),
		strconv.Itoa(rec.TotalCount),
		formatFloat(rec.ValidPercent),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	path := filepath.Join(dir, rec.Date+"_ndvi_stats.csv")
	if err := r.fs().WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("sidecar write: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
