// Package config loads pipeline configuration from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PipelineConfig holds tunable pipeline parameters. All fields are
// pointers so that a partial JSON file only overrides what it names; the
// Get* accessors supply defaults for everything else. The schema doubles
// as the CLI's -config file format.
type PipelineConfig struct {
	// Extraction params
	RegionKm *float64 `json:"region_km,omitempty"`
	Workers  *int     `json:"workers,omitempty"`
	Band1    *string  `json:"band1,omitempty"`
	Band2    *string  `json:"band2,omitempty"`
	LatVar   *string  `json:"lat_var,omitempty"`
	LonVar   *string  `json:"lon_var,omitempty"`

	// Output params
	OutputDir    *string `json:"output_dir,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`

	// Archive params
	ArchiveURL      *string `json:"archive_url,omitempty"`
	DownloadWorkers *int    `json:"download_workers,omitempty"`
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. Fields
// omitted from the file retain their defaults, so partial configs are
// safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *PipelineConfig) Validate() error {
	if c.RegionKm != nil && *c.RegionKm < 0 {
		return fmt.Errorf("region_km must be non-negative, got %f", *c.RegionKm)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.DownloadWorkers != nil && *c.DownloadWorkers < 1 {
		return fmt.Errorf("download_workers must be at least 1, got %d", *c.DownloadWorkers)
	}
	if c.Band1 != nil && *c.Band1 == "" {
		return fmt.Errorf("band1 must not be empty")
	}
	if c.Band2 != nil && *c.Band2 == "" {
		return fmt.Errorf("band2 must not be empty")
	}
	return nil
}

// GetRegionKm returns the region edge length or the default.
func (c *PipelineConfig) GetRegionKm() float64 {
	if c.RegionKm == nil {
		return 20.0 // default
	}
	return *c.RegionKm
}

// GetWorkers returns the worker count or the default.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1 // default: sequential
	}
	return *c.Workers
}

// GetBand1 returns the visible-band variable name or the default.
func (c *PipelineConfig) GetBand1() string {
	if c.Band1 == nil {
		return "SREFL_CH1"
	}
	return *c.Band1
}

// GetBand2 returns the near-infrared-band variable name or the default.
func (c *PipelineConfig) GetBand2() string {
	if c.Band2 == nil {
		return "SREFL_CH2"
	}
	return *c.Band2
}

// GetLatVar returns the latitude axis variable name or the default.
func (c *PipelineConfig) GetLatVar() string {
	if c.LatVar == nil {
		return "latitude"
	}
	return *c.LatVar
}

// GetLonVar returns the longitude axis variable name or the default.
func (c *PipelineConfig) GetLonVar() string {
	if c.LonVar == nil {
		return "longitude"
	}
	return *c.LonVar
}

// GetOutputDir returns the output directory name or the default.
func (c *PipelineConfig) GetOutputDir() string {
	if c.OutputDir == nil {
		return "ndvi_results"
	}
	return *c.OutputDir
}

// GetDatabasePath returns the sqlite database path or the default.
func (c *PipelineConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "ndvi.db"
	}
	return *c.DatabasePath
}

// GetArchiveURL returns the surface-reflectance archive URL or the default.
func (c *PipelineConfig) GetArchiveURL() string {
	if c.ArchiveURL == nil {
		return "https://www.ncei.noaa.gov/data/land-surface-reflectance/access/1990/"
	}
	return *c.ArchiveURL
}

// GetDownloadWorkers returns the parallel download count or the default.
func (c *PipelineConfig) GetDownloadWorkers() int {
	if c.DownloadWorkers == nil {
		return 3
	}
	return *c.DownloadWorkers
}
