package interp

import (
	"fmt"
	"math"

	"go.ngs.io/tidemodel/internal/grid"
)

// Method selects the regular-grid interpolation scheme.
type Method string

const (
	// MethodSpline selects degree-1 bivariate spline interpolation.
	MethodSpline Method = "spline"
	// MethodLinear selects regular-grid multilinear interpolation.
	MethodLinear Method = "linear"
	// MethodNearest selects regular-grid nearest-node lookup.
	MethodNearest Method = "nearest"
	// MethodBilinear selects quick bilinear interpolation.
	MethodBilinear Method = "bilinear"
)

// Valid reports whether m names a supported interpolation method.
func (m Method) Valid() bool {
	switch m {
	case MethodSpline, MethodLinear, MethodNearest, MethodBilinear:
		return true
	}
	return false
}

// nearestIndex returns the axis index nearest to q, or ok=false when q is
// outside the axis range.
func nearestIndex(a grid.Axis, q float64) (int, bool) {
	i, ok := cellIndex(a, q)
	if !ok {
		return 0, false
	}
	if q-a[i] > a[i+1]-q {
		return i + 1, true
	}
	return i, true
}

// RegularGrid interpolates a masked real field on a regular grid with the
// linear or nearest method. Queries outside the axes are masked and hold
// the fill sentinel.
func RegularGrid(x, y grid.Axis, f *grid.Field, xq, yq []float64, method Method) (*Values, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out := newValues(len(xq))
	for k := range xq {
		switch method {
		case MethodNearest:
			j, okx := nearestIndex(x, xq[k])
			i, oky := nearestIndex(y, yq[k])
			if !okx || !oky || f.Masked(i, j) {
				out.Data[k] = grid.FillValue
				out.Mask[k] = true
				continue
			}
			out.Data[k] = f.Values.Get(i, j)
		case MethodLinear:
			j, okx := cellIndex(x, xq[k])
			i, oky := cellIndex(y, yq[k])
			if !okx || !oky {
				out.Data[k] = grid.FillValue
				out.Mask[k] = true
				continue
			}
			m := linearAt(x, y, f.Mask.Get, i, j, xq[k], yq[k])
			if math.Ceil(m) > 0 {
				out.Data[k] = grid.FillValue
				out.Mask[k] = true
				continue
			}
			out.Data[k] = linearAt(x, y, f.Values.Get, i, j, xq[k], yq[k])
		default:
			return nil, fmt.Errorf("unsupported regular-grid method %q", method)
		}
	}
	return out, nil
}

// RegularGridComplex interpolates a masked complex field on a regular grid
// with the linear or nearest method.
func RegularGridComplex(x, y grid.Axis, f *grid.ComplexField, xq, yq []float64, method Method) (*ComplexValues, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out := newComplexValues(len(xq))
	for k := range xq {
		switch method {
		case MethodNearest:
			j, okx := nearestIndex(x, xq[k])
			i, oky := nearestIndex(y, yq[k])
			if !okx || !oky || f.Masked(i, j) {
				out.Data[k] = complex(grid.FillValue, grid.FillValue)
				out.Mask[k] = true
				continue
			}
			out.Data[k] = complex(f.Re.Get(i, j), f.Im.Get(i, j))
		case MethodLinear:
			j, okx := cellIndex(x, xq[k])
			i, oky := cellIndex(y, yq[k])
			if !okx || !oky {
				out.Data[k] = complex(grid.FillValue, grid.FillValue)
				out.Mask[k] = true
				continue
			}
			m := linearAt(x, y, f.Mask.Get, i, j, xq[k], yq[k])
			if math.Ceil(m) > 0 {
				out.Data[k] = complex(grid.FillValue, grid.FillValue)
				out.Mask[k] = true
				continue
			}
			re := linearAt(x, y, f.Re.Get, i, j, xq[k], yq[k])
			im := linearAt(x, y, f.Im.Get, i, j, xq[k], yq[k])
			out.Data[k] = complex(re, im)
		default:
			return nil, fmt.Errorf("unsupported regular-grid method %q", method)
		}
	}
	return out, nil
}

// linearAt evaluates multilinear interpolation of the plane within the
// cell (i, j). The accessor is variadic so DenseArray.Get method values
// can be passed directly.
func linearAt(x, y grid.Axis, get func(index ...int) float64, i, j int, xq, yq float64) float64 {
	t := (xq - x[j]) / (x[j+1] - x[j])
	u := (yq - y[i]) / (y[i+1] - y[i])
	return (1-t)*(1-u)*get(i, j) +
		t*(1-u)*get(i, j+1) +
		(1-t)*u*get(i+1, j) +
		t*u*get(i+1, j+1)
}
