package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// ErrOutsideGrid reports a bounding box or query that lies entirely outside
// the grid coverage.
var ErrOutsideGrid = errors.New("grid: bounds entirely outside grid coverage")

// Bounds is a bounding region [xmin, xmax, ymin, ymax].
type Bounds [4]float64

// XMin returns the western edge of the region.
func (b Bounds) XMin() float64 { return b[0] }

// XMax returns the eastern edge of the region.
func (b Bounds) XMax() float64 { return b[1] }

// YMin returns the southern edge of the region.
func (b Bounds) YMin() float64 { return b[2] }

// YMax returns the northern edge of the region.
func (b Bounds) YMax() float64 { return b[3] }

// Direction selects which side of a shifted grid the cyclic width is
// applied to.
type Direction string

const (
	// East adds a full cycle to the wrapped tail of the axis.
	East Direction = "east"
	// West subtracts a full cycle from the head of the axis.
	West Direction = "west"
)

// Shift re-bases a periodic longitude axis to start near x0, rotating the
// matrix columns by the same index offset. The cyclic width (360 for
// geographic grids) is added to or removed from the wrapped values so the
// shifted axis stays monotonic.
func Shift(m *sparse.DenseArray, x Axis, x0, cyclic float64, direction Direction) (*sparse.DenseArray, Axis) {
	n := len(x)
	// When the axis already spans the full cycle the duplicated seam column
	// is skipped while rotating.
	offset := 0
	if math.Abs(x[n-1]-x[0]-cyclic) <= 1e-4 {
		offset = 1
	}
	// Index of the axis value closest to the new origin.
	i0 := 0
	for i, v := range x {
		if math.Abs(v-x0) < math.Abs(x[i0]-x0) {
			i0 = i
		}
	}

	sx := make(Axis, n)
	copy(sx[:n-i0], x[i0:])
	copy(sx[n-i0:], x[offset:i0+offset])
	switch direction {
	case East:
		for i := n - i0; i < n; i++ {
			sx[i] += cyclic
		}
	case West:
		for i := 0; i < n-i0; i++ {
			sx[i] -= cyclic
		}
	}

	ny, nx := m.Shape[0], m.Shape[1]
	out := sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx-i0; j++ {
			out.Set(m.Get(i, j+i0), i, j)
		}
		for j := nx - i0; j < nx; j++ {
			out.Set(m.Get(i, j-(nx-i0)+offset), i, j)
		}
	}
	return out, sx
}

// Crop selects the contiguous index range of m whose axis values fall
// within the buffered bounds, re-anchoring the longitude axis first when
// the bounds and the grid use mismatched -180/180 vs 0/360 conventions.
// It returns ErrOutsideGrid when the box does not intersect the grid.
func Crop(m *sparse.DenseArray, x, y Axis, bounds Bounds, buffer float64, isGeographic bool) (*sparse.DenseArray, Axis, Axis, error) {
	// Reconcile longitude conventions between the bounds and the grid.
	if isGeographic && math.Min(bounds.XMin(), bounds.XMax()) < 0 && x.Max() > 180 {
		m, x = Shift(m, x, 180, 360, West)
	} else if isGeographic && math.Max(bounds.XMin(), bounds.XMax()) > 180 && x.Min() < 0 {
		m, x = Shift(m, x, 0, 360, East)
	}

	xmin := bounds.XMin() - buffer
	xmax := bounds.XMax() + buffer
	ymin := bounds.YMin() - buffer
	ymax := bounds.YMax() + buffer

	j0, j1, ok := indexRange(x, xmin, xmax)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: x %v", ErrOutsideGrid, bounds)
	}
	i0, i1, ok := indexRange(y, ymin, ymax)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: y %v", ErrOutsideGrid, bounds)
	}

	ny, nx := i1-i0+1, j1-j0+1
	out := sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			out.Set(m.Get(i+i0, j+j0), i, j)
		}
	}
	cx := make(Axis, nx)
	copy(cx, x[j0:j1+1])
	cy := make(Axis, ny)
	copy(cy, y[i0:i1+1])
	return out, cx, cy, nil
}

// indexRange returns the first and last axis indices whose values fall in
// [lo, hi].
func indexRange(a Axis, lo, hi float64) (int, int, bool) {
	first, last := -1, -1
	for i, v := range a {
		if v >= lo && v <= hi {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, last, true
}

// ExtendMatrix appends one wrap column at each end of a global matrix,
// copying the opposite edge, so interpolation near the date line seam never
// falls outside the covered domain. Pair with Axis.Extend.
func ExtendMatrix(m *sparse.DenseArray) *sparse.DenseArray {
	ny, nx := m.Shape[0], m.Shape[1]
	out := sparse.ZerosDense(ny, nx+2)
	for i := 0; i < ny; i++ {
		out.Set(m.Get(i, nx-1), i, 0)
		for j := 0; j < nx; j++ {
			out.Set(m.Get(i, j), i, j+1)
		}
		out.Set(m.Get(i, 0), i, nx+1)
	}
	return out
}

// Crop crops both planes of the field to the buffered bounds.
func (f *Field) Crop(x, y Axis, bounds Bounds, buffer float64, isGeographic bool) (*Field, Axis, Axis, error) {
	values, cx, cy, err := Crop(f.Values, x, y, bounds, buffer, isGeographic)
	if err != nil {
		return nil, nil, nil, err
	}
	mask, _, _, err := Crop(f.Mask, x, y, bounds, buffer, isGeographic)
	if err != nil {
		return nil, nil, nil, err
	}
	return &Field{Values: values, Mask: mask}, cx, cy, nil
}

// Extend returns the field extended by one wrap column at each end.
func (f *Field) Extend() *Field {
	return &Field{Values: ExtendMatrix(f.Values), Mask: ExtendMatrix(f.Mask)}
}

// Crop crops all three planes of the complex field to the buffered bounds.
func (f *ComplexField) Crop(x, y Axis, bounds Bounds, buffer float64, isGeographic bool) (*ComplexField, Axis, Axis, error) {
	re, cx, cy, err := Crop(f.Re, x, y, bounds, buffer, isGeographic)
	if err != nil {
		return nil, nil, nil, err
	}
	im, _, _, err := Crop(f.Im, x, y, bounds, buffer, isGeographic)
	if err != nil {
		return nil, nil, nil, err
	}
	mask, _, _, err := Crop(f.Mask, x, y, bounds, buffer, isGeographic)
	if err != nil {
		return nil, nil, nil, err
	}
	return &ComplexField{Re: re, Im: im, Mask: mask}, cx, cy, nil
}

// Extend returns the complex field extended by one wrap column at each end.
func (f *ComplexField) Extend() *ComplexField {
	return &ComplexField{
		Re:   ExtendMatrix(f.Re),
		Im:   ExtendMatrix(f.Im),
		Mask: ExtendMatrix(f.Mask),
	}
}
