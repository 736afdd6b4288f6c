package raster

import (
	"fmt"
	"io/fs"
)

// MemoryReader serves pre-built datasets from a map keyed by path. Use it
// in tests in place of the NetCDF reader.
type MemoryReader struct {
	Datasets map[string]*MemoryDataset
}

// NewMemoryReader creates an empty in-memory reader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{Datasets: make(map[string]*MemoryDataset)}
}

// Add registers a dataset under the given path.
func (r *MemoryReader) Add(path string, ds *MemoryDataset) {
	r.Datasets[path] = ds
}

// Open returns the dataset registered under path, or fs.ErrNotExist.
func (r *MemoryReader) Open(path string) (Dataset, error) {
	ds, ok := r.Datasets[path]
	if !ok {
		return nil, fmt.Errorf("raster: open %s: %w", path, fs.ErrNotExist)
	}
	return ds, nil
}

// MemoryDataset is an in-memory Dataset.
type MemoryDataset struct {
	Axes map[string][]float64
	Vars map[string]*Variable
}

// NewMemoryDataset creates an empty in-memory dataset.
func NewMemoryDataset() *MemoryDataset {
	return &MemoryDataset{
		Axes: make(map[string][]float64),
		Vars: make(map[string]*Variable),
	}
}

// SetAxis stores a 1-D coordinate variable.
func (d *MemoryDataset) SetAxis(name string, coords []float64) {
	d.Axes[name] = coords
}

// SetVariable stores a 2-D data variable.
func (d *MemoryDataset) SetVariable(name string, g *Grid, meta VarMeta) {
	d.Vars[name] = &Variable{Name: name, Grid: g, Meta: meta}
}

// Axis implements Dataset.
func (d *MemoryDataset) Axis(name string) ([]float64, error) {
	coords, ok := d.Axes[name]
	if !ok {
		return nil, fmt.Errorf("raster: no axis %q", name)
	}
	return coords, nil
}

// Variable implements Dataset. The returned variable shares storage with
// the dataset; callers treat it as read-only input.
func (d *MemoryDataset) Variable(name string) (*Variable, error) {
	v, ok := d.Vars[name]
	if !ok {
		return nil, fmt.Errorf("raster: no variable %q", name)
	}
	return v, nil
}

// Close implements Dataset.
func (d *MemoryDataset) Close() error { return nil }

// UniformDataset builds a dataset whose two reflectance bands hold
// constant raw values everywhere on the given coordinate axes. Handy for
// end-to-end pipeline tests with a known index value.
func UniformDataset(lats, lons []float64, band1Name string, band1 float64, band2Name string, band2 float64, meta VarMeta) *MemoryDataset {
	ds := NewMemoryDataset()
	ds.SetAxis("latitude", lats)
	ds.SetAxis("longitude", lons)

	g1 := NewGrid(len(lats), len(lons))
	g2 := NewGrid(len(lats), len(lons))
	for i := range g1.Values {
		g1.Values[i] = band1
		g2.Values[i] = band2
	}
	ds.SetVariable(band1Name, g1, meta)
	ds.SetVariable(band2Name, g2, meta)
	return ds
}
