// Package atlas composes global and localized ATLAS tidal solutions into
// a single high-resolution grid. The coarse global solution is resampled
// with a degree-1 bivariate spline onto a uniform fine grid, then each
// localized patch overwrites the cells it covers.
package atlas

import (
	"math"
	"sort"

	"github.com/ctessum/sparse"

	"go.ngs.io/tidemodel/internal/grid"
)

// DefaultSpacing is the 2 arc-minute spacing of ATLAS localized
// solutions.
const DefaultSpacing = 1.0 / 30.0

// Patch is a localized high-resolution solution anchored at its
// southwest corner. Z holds elevation or transport solutions, Depth holds
// bathymetry; exactly one is set.
type Patch struct {
	Lon0, Lat0 float64
	Z          *grid.ComplexField
	Depth      *grid.Field
}

func (p *Patch) shape() (ny, nx int) {
	if p.Z != nil {
		return p.Z.Shape()
	}
	return p.Depth.Shape()
}

func (p *Patch) masked(i, j int) bool {
	if p.Z != nil {
		return p.Z.Masked(i, j)
	}
	return p.Depth.Masked(i, j)
}

// Axes returns the high-resolution cell-center axes covering the global
// domain at the given spacing.
func Axes(spacing float64) (x, y grid.Axis) {
	nx := int(math.Round(360 / spacing))
	ny := int(math.Round(180 / spacing))
	return grid.CellCenters(0, 360, nx), grid.CellCenters(-90, 90, ny)
}

// axisWeights precomputes, for every target coordinate, the source cell
// index and the normalized coordinate within it. Targets outside the
// source axis extrapolate linearly from the edge cell.
func axisWeights(src, dst grid.Axis) (idx []int, w []float64) {
	idx = make([]int, len(dst))
	w = make([]float64, len(dst))
	for k, q := range dst {
		i := sort.SearchFloat64s(src, q)
		if i > 0 {
			i--
		}
		if i > len(src)-2 {
			i = len(src) - 2
		}
		idx[k] = i
		w[k] = (q - src[i]) / (src[i+1] - src[i])
	}
	return idx, w
}

// resamplePlane evaluates the separable degree-1 spline of one plane on
// the target axes.
func resamplePlane(src *sparse.DenseArray, xi, yi []int, xw, yw []float64) *sparse.DenseArray {
	out := sparse.ZerosDense(len(yi), len(xi))
	for i := range yi {
		i0, u := yi[i], yw[i]
		for j := range xi {
			j0, t := xi[j], xw[j]
			v := (1-t)*(1-u)*src.Get(i0, j0) +
				t*(1-u)*src.Get(i0, j0+1) +
				(1-t)*u*src.Get(i0+1, j0) +
				t*u*src.Get(i0+1, j0+1)
			out.Set(v, i, j)
		}
	}
	return out
}

// Resample interpolates a global complex solution onto the
// high-resolution axes.
func Resample(x, y grid.Axis, f *grid.ComplexField, spacing float64) (grid.Axis, grid.Axis, *grid.ComplexField) {
	xs, ys := Axes(spacing)
	xi, xw := axisWeights(x, xs)
	yi, yw := axisWeights(y, ys)
	out := &grid.ComplexField{
		Re:   resamplePlane(f.Re, xi, yi, xw, yw),
		Im:   resamplePlane(f.Im, xi, yi, xw, yw),
		Mask: sparse.ZerosDense(len(ys), len(xs)),
	}
	return xs, ys, out
}

// ResampleReal interpolates a global real solution onto the
// high-resolution axes.
func ResampleReal(x, y grid.Axis, f *grid.Field, spacing float64) (grid.Axis, grid.Axis, *grid.Field) {
	xs, ys := Axes(spacing)
	xi, xw := axisWeights(x, xs)
	yi, yw := axisWeights(y, ys)
	out := &grid.Field{
		Values: resamplePlane(f.Values, xi, yi, xw, yw),
		Mask:   sparse.ZerosDense(len(ys), len(xs)),
	}
	return xs, ys, out
}

// sortedNames iterates patches in a fixed order so overlapping solutions
// compose deterministically.
func sortedNames(patches map[string]*Patch) []string {
	names := make([]string, 0, len(patches))
	for name := range patches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// overlay calls set for every valid node of every patch with its
// high-resolution grid indices. Later patches overwrite earlier ones.
func overlay(xs, ys grid.Axis, patches map[string]*Patch, spacing float64, set func(name string, pi, pj, i, j int)) {
	for _, name := range sortedNames(patches) {
		p := patches[name]
		ny, nx := p.shape()
		// Re-anchor the patch origin on the fine grid.
		lon0 := math.Floor(p.Lon0/spacing) * spacing
		lat0 := math.Floor(p.Lat0/spacing) * spacing
		for pi := 0; pi < ny; pi++ {
			yi := lat0 + float64(pi)*spacing
			i := int(math.Floor((yi - ys[0]) / spacing))
			if i < 0 || i >= len(ys) {
				continue
			}
			for pj := 0; pj < nx; pj++ {
				if p.masked(pi, pj) {
					continue
				}
				xi := lon0 + float64(pj)*spacing
				// Patches stored in the -180:180 convention wrap east.
				if xi <= 0 {
					xi += 360
				}
				j := int(math.Floor((xi - xs[0]) / spacing))
				if j < 0 || j >= len(xs) {
					continue
				}
				set(name, pi, pj, i, j)
			}
		}
	}
}

// Combine resamples a global complex solution and overwrites it with the
// localized patches.
func Combine(x, y grid.Axis, f *grid.ComplexField, patches map[string]*Patch, spacing float64) (grid.Axis, grid.Axis, *grid.ComplexField) {
	xs, ys, out := Resample(x, y, f, spacing)
	overlay(xs, ys, patches, spacing, func(name string, pi, pj, i, j int) {
		out.SetAt(i, j, patches[name].Z.At(pi, pj))
	})
	return xs, ys, out
}

// CombineReal resamples a global real solution and overwrites it with the
// localized patches.
func CombineReal(x, y grid.Axis, f *grid.Field, patches map[string]*Patch, spacing float64) (grid.Axis, grid.Axis, *grid.Field) {
	xs, ys, out := ResampleReal(x, y, f, spacing)
	overlay(xs, ys, patches, spacing, func(name string, pi, pj, i, j int) {
		out.Set(patches[name].Depth.Values.Get(pi, pj), i, j)
	})
	return xs, ys, out
}

// Mask builds the high-resolution land/water mask: the global mask
// resampled by nearest node, with every valid patch node marked wet.
func Mask(x, y grid.Axis, mz *sparse.DenseArray, patches map[string]*Patch, spacing float64) (grid.Axis, grid.Axis, *sparse.DenseArray) {
	xs, ys := Axes(spacing)
	out := sparse.ZerosDense(len(ys), len(xs))
	xIdx := nearestIndices(x, xs)
	yIdx := nearestIndices(y, ys)
	for i := range ys {
		for j := range xs {
			out.Set(mz.Get(yIdx[i], xIdx[j]), i, j)
		}
	}
	overlay(xs, ys, patches, spacing, func(_ string, _, _, i, j int) {
		out.Set(1, i, j)
	})
	return xs, ys, out
}

// nearestIndices maps every target coordinate to the nearest source node,
// clipped to the axis range. Half-way coordinates round to the even
// index so a fine node sitting exactly between two coarse nodes picks
// the same neighbor on both sides of the grid.
func nearestIndices(src, dst grid.Axis) []int {
	n := len(src)
	idx := make([]int, len(dst))
	for k, q := range dst {
		c := float64(n-1) * (q - src[0]) / (src[n-1] - src[0])
		c = math.Max(0, math.Min(float64(n-1), c))
		idx[k] = int(math.RoundToEven(c))
	}
	return idx
}
