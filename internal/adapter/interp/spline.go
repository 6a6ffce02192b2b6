package interp

import (
	"fmt"
	"math"

	"go.ngs.io/tidemodel/internal/grid"
)

// clampedCell returns the cell index for q clamped into [0, len(a)-2],
// together with the normalized cell coordinate. Queries outside the axis
// produce coordinates beyond [0, 1], which linearly extrapolates from the
// edge cell.
func clampedCell(a grid.Axis, q float64) (int, float64) {
	i, ok := cellIndex(a, q)
	if !ok {
		if q < a[0] {
			i = 0
		} else {
			i = len(a) - 2
		}
	}
	return i, (q - a[i]) / (a[i+1] - a[i])
}

// splineAt evaluates a degree-1 bivariate spline of the plane at a single
// query point. With unit degree the spline is exactly piecewise-bilinear
// inside the grid and linear extrapolation outside it. The accessor is
// variadic so DenseArray.Get method values can be passed directly.
func splineAt(x, y grid.Axis, get func(index ...int) float64, xq, yq float64) float64 {
	j, t := clampedCell(x, xq)
	i, u := clampedCell(y, yq)
	return (1-t)*(1-u)*get(i, j) +
		t*(1-u)*get(i, j+1) +
		(1-t)*u*get(i+1, j) +
		t*u*get(i+1, j+1)
}

// Spline interpolates a masked real field with a degree-1 bivariate
// spline. The data plane is interpolated as stored; the mask plane is
// interpolated alongside it and any nonzero contribution marks the result
// invalid.
func Spline(x, y grid.Axis, f *grid.Field, xq, yq []float64) (*Values, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("spline: %w", err)
	}
	out := newValues(len(xq))
	for k := range xq {
		m := splineAt(x, y, f.Mask.Get, xq[k], yq[k])
		if math.Ceil(m) > 0 {
			out.Data[k] = grid.FillValue
			out.Mask[k] = true
			continue
		}
		out.Data[k] = splineAt(x, y, f.Values.Get, xq[k], yq[k])
	}
	return out, nil
}

// SplineComplex interpolates a masked complex field with a degree-1
// bivariate spline, evaluating the real and imaginary planes separately.
func SplineComplex(x, y grid.Axis, f *grid.ComplexField, xq, yq []float64) (*ComplexValues, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("spline: %w", err)
	}
	out := newComplexValues(len(xq))
	for k := range xq {
		m := splineAt(x, y, f.Mask.Get, xq[k], yq[k])
		if math.Ceil(m) > 0 {
			out.Data[k] = complex(grid.FillValue, grid.FillValue)
			out.Mask[k] = true
			continue
		}
		re := splineAt(x, y, f.Re.Get, xq[k], yq[k])
		im := splineAt(x, y, f.Im.Get, xq[k], yq[k])
		out.Data[k] = complex(re, im)
	}
	return out, nil
}
