package raster

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Attribute names used by the surface-reflectance archives.
const (
	attrFillValue   = "_FillValue"
	attrScaleFactor = "scale_factor"
	attrAddOffset   = "add_offset"
)

// NetCDFReader opens NetCDF files through the pure-Go decoder. The
// decoder hands back typed Go slices (e.g. [][]int16); values are widened
// to float64 here and left raw, so masking and scaling stay with the
// index extractor.
type NetCDFReader struct{}

// Open implements Reader.
func (NetCDFReader) Open(path string) (Dataset, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	return &netcdfDataset{group: group}, nil
}

type netcdfDataset struct {
	group api.Group
}

func (d *netcdfDataset) Close() error {
	d.group.Close()
	return nil
}

// Axis returns a 1-D coordinate variable widened to float64.
func (d *netcdfDataset) Axis(name string) ([]float64, error) {
	v, err := d.group.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("raster: axis %q: %w", name, err)
	}

	val := reflect.ValueOf(v.Values)
	dims := sliceShape(val)
	if len(dims) != 1 {
		return nil, shapeError(name, dims)
	}

	out := make([]float64, dims[0])
	for i := 0; i < dims[0]; i++ {
		f, ok := numericValue(val.Index(i))
		if !ok {
			return nil, fmt.Errorf("raster: axis %q is not numeric", name)
		}
		out[i] = f
	}
	return out, nil
}

// Variable returns a 2-D data variable. A leading singleton band or time
// axis on a 3-D variable is dropped by selecting element 0.
func (d *netcdfDataset) Variable(name string) (*Variable, error) {
	v, err := d.group.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("raster: variable %q: %w", name, err)
	}

	val := reflect.ValueOf(v.Values)
	dims := sliceShape(val)
	switch {
	case len(dims) == 3 && dims[0] == 1:
		val = val.Index(0)
		dims = dims[1:]
	case len(dims) == 2:
		// already 2-D
	default:
		return nil, shapeError(name, dims)
	}

	grid := NewGrid(dims[0], dims[1])
	for r := 0; r < dims[0]; r++ {
		row := val.Index(r)
		if row.Kind() == reflect.Interface {
			row = row.Elem()
		}
		if row.Len() != dims[1] {
			return nil, fmt.Errorf("raster: variable %q has ragged rows", name)
		}
		for c := 0; c < dims[1]; c++ {
			f, ok := numericValue(row.Index(c))
			if !ok {
				return nil, fmt.Errorf("raster: variable %q is not numeric", name)
			}
			grid.Values[r*grid.Cols+c] = f
		}
	}

	return &Variable{
		Name: name,
		Grid: grid,
		Meta: metaFromAttributes(v.Attributes),
	}, nil
}

// metaFromAttributes extracts fill/scale/offset attributes, tolerating
// the scalar-vs-single-element-slice variation between writers.
func metaFromAttributes(attrs api.AttributeMap) VarMeta {
	var m VarMeta
	if attrs == nil {
		return m
	}
	if raw, has := attrs.Get(attrFillValue); has {
		if f, ok := attrFloat(raw); ok {
			m.FillValue = f
			m.HasFill = true
		}
	}
	if raw, has := attrs.Get(attrScaleFactor); has {
		if f, ok := attrFloat(raw); ok {
			m.ScaleFactor = f
			m.HasScale = true
		}
	}
	if raw, has := attrs.Get(attrAddOffset); has {
		if f, ok := attrFloat(raw); ok {
			m.AddOffset = f
		}
	}
	return m
}

// sliceShape walks nested slices and returns the dimension lengths.
func sliceShape(v reflect.Value) []int {
	var dims []int
	for {
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return dims
		}
		dims = append(dims, v.Len())
		if v.Len() == 0 {
			return dims
		}
		v = v.Index(0)
	}
}

// numericValue widens any integer or float value to float64.
func numericValue(v reflect.Value) (float64, bool) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// attrFloat converts an attribute payload, which may arrive as a scalar
// or a one-element slice, to float64.
func attrFloat(raw any) (float64, bool) {
	v := reflect.ValueOf(raw)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			return 0, false
		}
		v = v.Index(0)
	}
	return numericValue(v)
}
