// Command ndvi-server serves recorded extraction runs, summaries and
// time-series charts over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/vegetation.report/internal/api"
	"github.com/banshee-data/vegetation.report/internal/config"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/store"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db", "", "Sqlite database of recorded runs (default from config)")
	migrations = flag.String("migrations", "migrations", "Schema migrations directory")
	migrate    = flag.Bool("migrate", false, "Apply pending schema migrations before serving")
	configPath = flag.String("config", "", "JSON pipeline config file")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := &config.PipelineConfig{}
	if *configPath != "" {
		loaded, err := config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}

	s, err := store.NewStore(path)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", path, err)
	}
	defer s.Close()

	if *migrate {
		if err := s.MigrateUp(*migrations); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("migrations applied")
	}

	ws := api.NewWebServer(api.WebServerConfig{
		Address: *listen,
		Store:   s,
		Metrics: metrics.NewCollector("ndvi_server", nil),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ws.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
