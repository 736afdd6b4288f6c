// Command ndvi-fetch downloads surface-reflectance NetCDF files from an
// archive directory listing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/vegetation.report/internal/config"
	"github.com/banshee-data/vegetation.report/internal/fetch"
	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/timeutil"
)

var (
	archiveURL = flag.String("url", "", "Archive directory listing URL (default from config)")
	outputDir  = flag.String("output", "nc_files", "Directory to download into")
	limit      = flag.Int("limit", 0, "Maximum number of files to download (0 = all)")
	overwrite  = flag.Bool("overwrite", false, "Re-download files that already exist")
	workers    = flag.Int("workers", 0, "Parallel downloads (default from config)")
	configPath = flag.String("config", "", "JSON pipeline config file")
)

func main() {
	flag.Parse()

	cfg := &config.PipelineConfig{}
	if *configPath != "" {
		loaded, err := config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	url := cfg.GetArchiveURL()
	if *archiveURL != "" {
		url = *archiveURL
	}
	downloadWorkers := cfg.GetDownloadWorkers()
	if *workers > 0 {
		downloadWorkers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &fetch.Client{
		FS:        fsutil.OSFileSystem{},
		Clock:     timeutil.RealClock{},
		Metrics:   metrics.NewCollector("ndvi_fetch", nil),
		Workers:   downloadWorkers,
		Overwrite: *overwrite,
	}

	log.Printf("listing %s", url)
	urls, err := client.ListFiles(ctx, url)
	if err != nil {
		log.Fatalf("failed to list archive: %v", err)
	}
	log.Printf("found %d files", len(urls))

	if *limit > 0 && *limit < len(urls) {
		urls = urls[:*limit]
		log.Printf("limiting to first %d files", *limit)
	}

	res, err := client.Download(ctx, urls, *outputDir)
	if err != nil {
		log.Fatalf("download interrupted: %v", err)
	}
	if res.Failed > 0 {
		log.Printf("completed with %d failed downloads", res.Failed)
		os.Exit(1)
	}
}
