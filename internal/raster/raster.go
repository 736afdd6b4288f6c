// Package raster defines the data-access layer for surface-reflectance
// rasters: named 2-D numeric arrays with per-variable masking and scaling
// metadata, opened by path through a Reader.
package raster

import "fmt"

// Grid is a dense row-major 2-D float64 array with a per-pixel validity
// mask. Mask[i] == true marks pixel i invalid.
type Grid struct {
	Rows, Cols int
	Values     []float64
	Mask       []bool
}

// NewGrid allocates an all-valid, zero-filled grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{
		Rows:   rows,
		Cols:   cols,
		Values: make([]float64, rows*cols),
		Mask:   make([]bool, rows*cols),
	}
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Values[row*g.Cols+col] }

// Set stores a value at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Values[row*g.Cols+col] = v }

// Masked reports whether the pixel at (row, col) is masked.
func (g *Grid) Masked(row, col int) bool { return g.Mask[row*g.Cols+col] }

// SetMasked marks the pixel at (row, col) masked or unmasked.
func (g *Grid) SetMasked(row, col int, masked bool) { g.Mask[row*g.Cols+col] = masked }

// Size returns the total pixel count.
func (g *Grid) Size() int { return g.Rows * g.Cols }

// Subset extracts the sub-grid addressed by the given row and column
// index sets, in the order given. Index sets come from geo.RegionIndices
// and are already within bounds.
func (g *Grid) Subset(rowIdx, colIdx []int) *Grid {
	out := NewGrid(len(rowIdx), len(colIdx))
	for i, r := range rowIdx {
		for j, c := range colIdx {
			out.Values[i*out.Cols+j] = g.Values[r*g.Cols+c]
			out.Mask[i*out.Cols+j] = g.Mask[r*g.Cols+c]
		}
	}
	return out
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Values, g.Values)
	copy(out.Mask, g.Mask)
	return out
}

// VarMeta carries the masking and scaling attributes of a raster
// variable. The Has* fields record attribute presence: scaling is applied
// only when a scale factor attribute exists on the variable, matching the
// storage convention of the source archives.
type VarMeta struct {
	FillValue   float64
	HasFill     bool
	ScaleFactor float64
	AddOffset   float64
	HasScale    bool
}

// Variable is a named 2-D data variable holding raw (unscaled, unmasked)
// values plus the metadata needed to interpret them.
type Variable struct {
	Name string
	Grid *Grid
	Meta VarMeta
}

// Dataset is one opened raster file.
type Dataset interface {
	// Axis returns a 1-D coordinate variable such as "latitude".
	Axis(name string) ([]float64, error)

	// Variable returns a 2-D data variable. A 3-D variable with a
	// leading singleton band axis is reduced by selecting band 0.
	Variable(name string) (*Variable, error)

	// Close releases the underlying file.
	Close() error
}

// Reader opens raster datasets by path.
type Reader interface {
	Open(path string) (Dataset, error)
}

// shapeError reports a variable with unusable dimensions.
func shapeError(name string, dims []int) error {
	return fmt.Errorf("raster: variable %q has unsupported shape %v", name, dims)
}
