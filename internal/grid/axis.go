// Package grid provides coordinate axes and masked 2D fields for tide model
// grids, along with the domain operations (crop, shift, extend) and the
// Arakawa C-grid staggering used by transport variables.
package grid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FillValue marks invalid samples in field data. Masks are authoritative;
// the sentinel only guards against accidental use of masked values. It is
// exactly representable as a float32 so it survives binary round trips.
const FillValue = 1e30

// Axis is an ordered sequence of cell-center coordinates along one grid
// dimension. Values are strictly increasing with a uniform step.
type Axis []float64

// CellCenters builds an axis of n cell centers between the grid-cell edges
// min and max. floats.Span requires at least two destination elements, so
// a single-cell dimension is handled directly.
func CellCenters(min, max float64, n int) Axis {
	step := (max - min) / float64(n)
	if n == 1 {
		return Axis{min + step/2}
	}
	a := make(Axis, n)
	floats.Span(a, min+step/2, max-step/2)
	return a
}

// Step returns the grid spacing implied by the first two elements.
func (a Axis) Step() float64 {
	if len(a) < 2 {
		return 0
	}
	return a[1] - a[0]
}

// Min returns the first axis value.
func (a Axis) Min() float64 { return a[0] }

// Max returns the last axis value.
func (a Axis) Max() float64 { return a[len(a)-1] }

// Validate checks that the axis is strictly increasing.
func (a Axis) Validate() error {
	if len(a) < 2 {
		return fmt.Errorf("axis must have at least 2 coordinates")
	}
	for i := 1; i < len(a); i++ {
		if a[i] <= a[i-1] {
			return fmt.Errorf("axis coordinates must be strictly increasing")
		}
	}
	return nil
}

// Extend returns a copy of the axis with one extra value prepended and
// appended, offset by step. Used together with ExtendMatrix to make a
// global longitude belt seamless across the date line.
func (a Axis) Extend(step float64) Axis {
	out := make(Axis, len(a)+2)
	out[0] = a[0] - step
	copy(out[1:len(out)-1], a)
	out[len(out)-1] = a[len(a)-1] + step
	return out
}

// IsGlobal reports whether the axis spans a full 360 degree longitude belt
// missing only the wrap seam (x[n-1]-x[0] == 360-dx).
func (a Axis) IsGlobal() bool {
	if len(a) < 2 {
		return false
	}
	const tol = 1e-4
	span := a.Max() - a.Min()
	return span > 360.0-a.Step()-tol && span < 360.0-a.Step()+tol
}

// Shifted returns a copy of the axis offset by delta. Used to move u-node
// and v-node coordinates half a cell off the zeta nodes.
func (a Axis) Shifted(delta float64) Axis {
	out := make(Axis, len(a))
	for i, v := range a {
		out[i] = v + delta
	}
	return out
}
