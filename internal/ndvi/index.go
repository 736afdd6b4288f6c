// Package ndvi computes the normalised difference vegetation index from
// two reflectance bands and reduces masked index regions to summary
// statistics.
package ndvi

import (
	"fmt"

	"github.com/banshee-data/vegetation.report/internal/raster"
)

// ComputeIndex builds (band2 - band1) / (band2 + band1) from two raw
// reflectance grids. In order: fill-value masking (the fill value is
// shared between both bands, and a pixel masked in either band is masked
// in the output), per-band scale/offset applied only when the band
// carries a scale factor, zero-denominator pixels masked with value 0,
// and finally clipping to [-1, 1].
//
// Out-of-range ratios are clipped rather than masked; downstream
// statistics rely on that. A zero value at a masked pixel is only
// meaningful together with the mask.
func ComputeIndex(band1, band2 *raster.Grid, meta1, meta2 raster.VarMeta) (*raster.Grid, error) {
	if band1.Rows != band2.Rows || band1.Cols != band2.Cols {
		return nil, fmt.Errorf("ndvi: band shape mismatch: %dx%d vs %dx%d",
			band1.Rows, band1.Cols, band2.Rows, band2.Cols)
	}

	// The archives declare the fill value on the first band and use it
	// for both.
	fill, hasFill := meta1.FillValue, meta1.HasFill
	if !hasFill {
		fill, hasFill = meta2.FillValue, meta2.HasFill
	}

	out := raster.NewGrid(band1.Rows, band1.Cols)
	for i := range out.Values {
		v1, v2 := band1.Values[i], band2.Values[i]

		if band1.Mask[i] || band2.Mask[i] || (hasFill && (v1 == fill || v2 == fill)) {
			out.Mask[i] = true
			continue
		}

		if meta1.HasScale {
			v1 = v1*meta1.ScaleFactor + meta1.AddOffset
		}
		if meta2.HasScale {
			v2 = v2*meta2.ScaleFactor + meta2.AddOffset
		}

		denom := v2 + v1
		if denom == 0 {
			// Zero instead of NaN keeps downstream folds finite; the
			// mask is what marks the pixel invalid.
			out.Mask[i] = true
			continue
		}

		v := (v2 - v1) / denom
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out.Values[i] = v
	}
	return out, nil
}
