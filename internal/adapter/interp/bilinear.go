// Package interp provides masked interpolation primitives for regular
// model grids: quick bilinear, degree-1 bivariate spline, regular-grid
// linear/nearest, and nearest-source extrapolation near coastlines.
//
// All functions operate on coordinate axes plus a masked scalar or complex
// field, evaluated at slices of query coordinates. Invalid results are
// reported through the output mask; they are never errors.
package interp

import (
	"fmt"
	"math"

	"go.ngs.io/tidemodel/internal/grid"
)

// Values holds real interpolation results with a validity mask
// (true = invalid).
type Values struct {
	Data []float64
	Mask []bool
}

// ComplexValues holds complex interpolation results with a validity mask
// (true = invalid).
type ComplexValues struct {
	Data []complex128
	Mask []bool
}

func newValues(n int) *Values {
	return &Values{Data: make([]float64, n), Mask: make([]bool, n)}
}

func newComplexValues(n int) *ComplexValues {
	return &ComplexValues{Data: make([]complex128, n), Mask: make([]bool, n)}
}

// validateAxes checks axes against the field shape.
func validateAxes(x, y grid.Axis, ny, nx int) error {
	if err := x.Validate(); err != nil {
		return fmt.Errorf("x axis: %w", err)
	}
	if err := y.Validate(); err != nil {
		return fmt.Errorf("y axis: %w", err)
	}
	if len(x) != nx || len(y) != ny {
		return fmt.Errorf("field shape [%d, %d] does not match axes (%d, %d)", ny, nx, len(y), len(x))
	}
	return nil
}

// cellIndex returns the index i of the grid cell with a[i] <= q <= a[i+1],
// or ok=false when q lies outside the axis range.
func cellIndex(a grid.Axis, q float64) (int, bool) {
	if q < a[0] || q > a[len(a)-1] {
		return 0, false
	}
	lo, hi := 0, len(a)-1
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if a[mid] <= q {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, true
}

// Bilinear performs quick bilinear interpolation of a masked real field at
// the query points. Queries outside the axes, or touching a masked corner,
// are masked in the result and hold the fill sentinel.
func Bilinear(x, y grid.Axis, f *grid.Field, xq, yq []float64) (*Values, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("bilinear: %w", err)
	}
	out := newValues(len(xq))
	for k := range xq {
		j, okx := cellIndex(x, xq[k])
		i, oky := cellIndex(y, yq[k])
		if !okx || !oky {
			out.Data[k] = grid.FillValue
			out.Mask[k] = true
			continue
		}
		t := (xq[k] - x[j]) / (x[j+1] - x[j])
		u := (yq[k] - y[i]) / (y[i+1] - y[i])
		v := (1-t)*(1-u)*corner(f, i, j) +
			t*(1-u)*corner(f, i, j+1) +
			(1-t)*u*corner(f, i+1, j) +
			t*u*corner(f, i+1, j+1)
		if math.IsNaN(v) {
			out.Data[k] = grid.FillValue
			out.Mask[k] = true
		} else {
			out.Data[k] = v
		}
	}
	return out, nil
}

// corner returns the field value at (i, j), NaN-poisoned when masked so
// that invalid corners propagate into the interpolated result.
func corner(f *grid.Field, i, j int) float64 {
	if f.Masked(i, j) {
		return math.NaN()
	}
	v := f.Values.Get(i, j)
	if v == grid.FillValue {
		return math.NaN()
	}
	return v
}

// BilinearComplex performs quick bilinear interpolation of a masked
// complex field, interpolating the real and imaginary planes with shared
// weights.
func BilinearComplex(x, y grid.Axis, f *grid.ComplexField, xq, yq []float64) (*ComplexValues, error) {
	ny, nx := f.Shape()
	if err := validateAxes(x, y, ny, nx); err != nil {
		return nil, fmt.Errorf("bilinear: %w", err)
	}
	out := newComplexValues(len(xq))
	for k := range xq {
		j, okx := cellIndex(x, xq[k])
		i, oky := cellIndex(y, yq[k])
		if !okx || !oky {
			out.Data[k] = complex(grid.FillValue, grid.FillValue)
			out.Mask[k] = true
			continue
		}
		t := (xq[k] - x[j]) / (x[j+1] - x[j])
		u := (yq[k] - y[i]) / (y[i+1] - y[i])
		w := [4]float64{(1 - t) * (1 - u), t * (1 - u), (1 - t) * u, t * u}
		re := w[0]*complexCorner(f, i, j, false) +
			w[1]*complexCorner(f, i, j+1, false) +
			w[2]*complexCorner(f, i+1, j, false) +
			w[3]*complexCorner(f, i+1, j+1, false)
		im := w[0]*complexCorner(f, i, j, true) +
			w[1]*complexCorner(f, i, j+1, true) +
			w[2]*complexCorner(f, i+1, j, true) +
			w[3]*complexCorner(f, i+1, j+1, true)
		if math.IsNaN(re) || math.IsNaN(im) {
			out.Data[k] = complex(grid.FillValue, grid.FillValue)
			out.Mask[k] = true
		} else {
			out.Data[k] = complex(re, im)
		}
	}
	return out, nil
}

func complexCorner(f *grid.ComplexField, i, j int, imag bool) float64 {
	if f.Masked(i, j) {
		return math.NaN()
	}
	var v float64
	if imag {
		v = f.Im.Get(i, j)
	} else {
		v = f.Re.Get(i, j)
	}
	if v == grid.FillValue {
		return math.NaN()
	}
	return v
}
