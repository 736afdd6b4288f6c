// Command ndvi runs the batch vegetation-index extraction pipeline: it
// reads an observation point list, processes every point against every
// raster file in a directory, writes per-point stats files plus wide and
// long summary tables, and optionally records the run in sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/vegetation.report/internal/batch"
	"github.com/banshee-data/vegetation.report/internal/config"
	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/points"
	"github.com/banshee-data/vegetation.report/internal/raster"
	"github.com/banshee-data/vegetation.report/internal/store"
	"github.com/banshee-data/vegetation.report/internal/summary"
	"github.com/banshee-data/vegetation.report/internal/timeutil"
)

var (
	pointsPath = flag.String("points", "", "CSV of observation points (No,Lat,Lon)")
	rasterDir  = flag.String("dir", "", "Directory of NetCDF raster files")
	outputDir  = flag.String("output", "", "Output directory (default from config)")
	regionSize = flag.Float64("region-size", 0, "Region edge length in km (default from config)")
	workers    = flag.Int("workers", 0, "Parallel workers (default from config)")
	band1      = flag.String("band1", "", "Visible band variable name (default from config)")
	band2      = flag.String("band2", "", "Near-infrared band variable name (default from config)")
	writeSum   = flag.Bool("summary", true, "Write wide and long summary CSVs")
	dbPath     = flag.String("db", "", "Record the run in this sqlite database (empty disables)")
	testMode   = flag.Bool("test", false, "Process only the first point and first file")
	configPath = flag.String("config", "", "JSON pipeline config file")
)

func main() {
	flag.Parse()

	if *pointsPath == "" {
		log.Fatal("-points is required")
	}
	if *rasterDir == "" {
		log.Fatal("-dir is required")
	}

	cfg := &config.PipelineConfig{}
	if *configPath != "" {
		loaded, err := config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags win over the config file.
	opts := batch.Options{
		RegionKm:  cfg.GetRegionKm(),
		Band1:     cfg.GetBand1(),
		Band2:     cfg.GetBand2(),
		LatVar:    cfg.GetLatVar(),
		LonVar:    cfg.GetLonVar(),
		Workers:   cfg.GetWorkers(),
		OutputDir: cfg.GetOutputDir(),
	}
	if *regionSize > 0 {
		opts.RegionKm = *regionSize
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *band1 != "" {
		opts.Band1 = *band1
	}
	if *band2 != "" {
		opts.Band2 = *band2
	}
	if *outputDir != "" {
		opts.OutputDir = *outputDir
	}

	fs := fsutil.OSFileSystem{}

	pts, err := points.Load(fs, *pointsPath)
	if err != nil {
		log.Fatalf("failed to load points: %v", err)
	}
	if len(pts) == 0 {
		log.Fatal("no valid points loaded")
	}

	files, err := batch.ListRasterFiles(fs, *rasterDir)
	if err != nil {
		log.Fatalf("failed to list raster files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no raster files found in %s", *rasterDir)
	}

	if *testMode {
		log.Printf("test mode: truncating to first point and first file")
		pts = pts[:1]
		files = files[:1]
	}
	log.Printf("processing %d points x %d files with %d workers (region %.1f km)",
		len(pts), len(files), opts.Workers, opts.RegionKm)

	if err := fs.MkdirAll(opts.OutputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &batch.Runner{
		Reader:  raster.NetCDFReader{},
		FS:      fs,
		Clock:   timeutil.RealClock{},
		Metrics: metrics.NewCollector("ndvi", nil),
		Opts:    opts,
	}

	started := time.Now().UTC()
	results := runner.Run(ctx, pts, files)

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.State == batch.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}

	if *dbPath != "" {
		if err := recordRun(*dbPath, started, opts, pts, files, succeeded, failed, results); err != nil {
			log.Printf("failed to record run: %v", err)
		}
	}

	if *writeSum {
		wide, long, err := summary.Aggregate(results)
		if errors.Is(err, summary.ErrNoSummary) {
			log.Printf("no successful units; skipping summary tables")
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("failed to aggregate results: %v", err)
		}
		widePath := filepath.Join(opts.OutputDir, "ndvi_summary.csv")
		if err := summary.WriteWideCSV(fs, widePath, wide); err != nil {
			log.Fatalf("failed to write wide summary: %v", err)
		}
		longPath := filepath.Join(opts.OutputDir, "ndvi_long.csv")
		if err := summary.WriteLongCSV(fs, longPath, long); err != nil {
			log.Fatalf("failed to write long summary: %v", err)
		}
		log.Printf("wrote %s and %s", widePath, longPath)
	}

	if failed > 0 {
		log.Printf("completed with %d failed units", failed)
		os.Exit(1)
	}
}

func recordRun(dbPath string, started time.Time, opts batch.Options,
	pts []points.Point, files []string, succeeded, failed int, results []batch.UnitResult) error {

	s, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runID := store.NewRunID()
	if err := s.InsertRun(store.Run{
		ID:         runID,
		StartedAt:  started,
		RegionKm:   opts.RegionKm,
		Workers:    opts.Workers,
		PointCount: len(pts),
		FileCount:  len(files),
		Succeeded:  succeeded,
		Failed:     failed,
	}); err != nil {
		return err
	}
	if err := s.InsertResults(runID, results); err != nil {
		return err
	}
	log.Printf("recorded run %s in %s", runID, dbPath)
	return nil
}
