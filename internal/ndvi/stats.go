package ndvi

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/banshee-data/vegetation.report/internal/raster"
)

// ErrEmptyRegion reports that a region contained no valid pixels. Callers
// must treat this distinctly from a successful zero-valued summary.
var ErrEmptyRegion = errors.New("ndvi: no valid pixels in region")

// SummaryContext identifies the unit a summary belongs to.
type SummaryContext struct {
	PointID  string
	Lat      float64
	Lon      float64
	Date     string // "unknown" when the file name carried no date token
	RegionKm float64
}

// StatsRecord holds the descriptive statistics of one (point, file) unit.
// Records are immutable once produced.
type StatsRecord struct {
	PointID      string  `json:"point_no"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Date         string  `json:"date"`
	RegionKm     float64 `json:"region_km"`
	Mean         float64 `json:"mean"`
	Max          float64 `json:"max"`
	Min          float64 `json:"min"`
	Median       float64 `json:"median"`
	StdDev       float64 `json:"std_dev"`
	ValidCount   int     `json:"valid_count"`
	TotalCount   int     `json:"total_count"`
	ValidPercent float64 `json:"valid_percent"`
}

// Summarize reduces the unmasked pixels of an index grid to descriptive
// statistics. An all-masked grid returns ErrEmptyRegion rather than NaN
// statistics.
func Summarize(index *raster.Grid, sc SummaryContext) (*StatsRecord, error) {
	valid := make([]float64, 0, index.Size())
	for i, v := range index.Values {
		if !index.Mask[i] {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return nil, ErrEmptyRegion
	}

	mean, err := stats.Mean(valid)
	if err != nil {
		return nil, fmt.Errorf("ndvi: mean: %w", err)
	}
	maxVal, err := stats.Max(valid)
	if err != nil {
		return nil, fmt.Errorf("ndvi: max: %w", err)
	}
	minVal, err := stats.Min(valid)
	if err != nil {
		return nil, fmt.Errorf("ndvi: min: %w", err)
	}
	median, err := stats.Median(valid)
	if err != nil {
		return nil, fmt.Errorf("ndvi: median: %w", err)
	}
	stdDev, err := stats.StandardDeviationPopulation(valid)
	if err != nil {
		return nil, fmt.Errorf("ndvi: stddev: %w", err)
	}

	total := index.Size()
	return &StatsRecord{
		PointID:      sc.PointID,
		Lat:          sc.Lat,
		Lon:          sc.Lon,
		Date:         sc.Date,
		RegionKm:     sc.RegionKm,
		Mean:         mean,
		Max:          maxVal,
		Min:          minVal,
		Median:       median,
		StdDev:       stdDev,
		ValidCount:   len(valid),
		TotalCount:   total,
		ValidPercent: float64(len(valid)) / float64(total) * 100,
	}, nil
}
