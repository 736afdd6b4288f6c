// Package geo converts physical distances around a point into index
// selections over raster coordinate axes.
package geo

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	// KmPerDegreeLat is the approximate length of one degree of latitude.
	// One degree of longitude shrinks with cos(latitude).
	KmPerDegreeLat = 111.0
)

// RegionIndices returns the indices into lats and lons that fall inside a
// square region of edge sizeKm centred on (centerLat, centerLon). The
// bounds use a flat-earth approximation, which stays within a few percent
// of the great-circle distance for regions up to ~100 km at mid-latitudes.
//
// An empty selection is a valid result, not an error; the caller decides
// how to degrade. Near the poles the longitude degree length collapses,
// so a finite span is meaningless there and the whole longitude axis is
// selected instead.
func RegionIndices(lats, lons []float64, centerLat, centerLon, sizeKm float64) (latIdx, lonIdx []int) {
	radius := sizeKm / 2
	latRange := radius / KmPerDegreeLat

	latIdx = indicesWithin(lats, centerLat-latRange, centerLat+latRange)

	cosLat := math.Cos(centerLat * math.Pi / 180)
	if math.Abs(cosLat) < 1e-9 {
		if sizeKm <= 0 {
			return latIdx, nil
		}
		lonIdx = make([]int, len(lons))
		for i := range lons {
			lonIdx[i] = i
		}
		return latIdx, lonIdx
	}

	lonRange := math.Abs(radius / (KmPerDegreeLat * cosLat))
	lonIdx = indicesWithin(lons, centerLon-lonRange, centerLon+lonRange)
	return latIdx, lonIdx
}

// indicesWithin returns the indices of coords whose values lie in
// [lo, hi], preserving axis order.
func indicesWithin(coords []float64, lo, hi float64) []int {
	var idx []int
	for i, v := range coords {
		if v >= lo && v <= hi {
			idx = append(idx, i)
		}
	}
	return idx
}

// Haversine returns the great-circle distance in kilometres between two
// points given in degrees. It is used for validating the flat-earth
// approximation, not on the index-selection path.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}
