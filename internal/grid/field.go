package grid

import (
	"math"

	"github.com/ctessum/sparse"
)

// Field is a real-valued 2D field (rows = y, cols = x) with a validity
// mask. Mask values are 0 or 1, with 1 marking an invalid (land or fill)
// cell, mirroring the convention of masked bathymetry grids.
type Field struct {
	Values *sparse.DenseArray
	Mask   *sparse.DenseArray
}

// NewField allocates a field of shape [ny, nx] with an all-valid mask.
func NewField(ny, nx int) *Field {
	return &Field{
		Values: sparse.ZerosDense(ny, nx),
		Mask:   sparse.ZerosDense(ny, nx),
	}
}

// Shape returns the (ny, nx) dimensions of the field.
func (f *Field) Shape() (int, int) {
	return f.Values.Shape[0], f.Values.Shape[1]
}

// Set stores v at cell (i, j). Assigns through Elements because
// DenseArray.Set silently drops zero values.
func (f *Field) Set(v float64, i, j int) {
	f.Values.Elements[f.Values.Index1d(i, j)] = v
}

// Masked reports whether cell (i, j) is invalid.
func (f *Field) Masked(i, j int) bool {
	return f.Mask.Get(i, j) != 0
}

// SetMasked marks cell (i, j) invalid.
func (f *Field) SetMasked(i, j int) {
	f.Mask.Set(1, i, j)
}

// ClearMasked marks cell (i, j) valid again.
func (f *Field) ClearMasked(i, j int) {
	f.Mask.Elements[f.Mask.Index1d(i, j)] = 0
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	return &Field{Values: cloneDense(f.Values), Mask: cloneDense(f.Mask)}
}

// OrMask marks invalid every cell that is invalid in mask.
func (f *Field) OrMask(mask *sparse.DenseArray) {
	for i, v := range mask.Elements {
		if v != 0 {
			f.Mask.Elements[i] = 1
		}
	}
}

// ComplexField is a complex-valued 2D field stored as separate real and
// imaginary planes, plus a validity mask (1 = invalid). The split planes
// match the interleaved real/imaginary layout of the model files.
type ComplexField struct {
	Re   *sparse.DenseArray
	Im   *sparse.DenseArray
	Mask *sparse.DenseArray
}

// NewComplexField allocates a complex field of shape [ny, nx] with an
// all-valid mask.
func NewComplexField(ny, nx int) *ComplexField {
	return &ComplexField{
		Re:   sparse.ZerosDense(ny, nx),
		Im:   sparse.ZerosDense(ny, nx),
		Mask: sparse.ZerosDense(ny, nx),
	}
}

// Shape returns the (ny, nx) dimensions of the field.
func (f *ComplexField) Shape() (int, int) {
	return f.Re.Shape[0], f.Re.Shape[1]
}

// At returns the complex value at cell (i, j).
func (f *ComplexField) At(i, j int) complex128 {
	return complex(f.Re.Get(i, j), f.Im.Get(i, j))
}

// SetAt stores a complex value at cell (i, j). Assigns through Elements
// because DenseArray.Set silently drops zero values.
func (f *ComplexField) SetAt(i, j int, v complex128) {
	p := f.Re.Index1d(i, j)
	f.Re.Elements[p] = real(v)
	f.Im.Elements[p] = imag(v)
}

// Masked reports whether cell (i, j) is invalid.
func (f *ComplexField) Masked(i, j int) bool {
	return f.Mask.Get(i, j) != 0
}

// SetMasked marks cell (i, j) invalid and stores the fill sentinel.
func (f *ComplexField) SetMasked(i, j int) {
	f.Mask.Set(1, i, j)
	f.Re.Set(FillValue, i, j)
	f.Im.Set(FillValue, i, j)
}

// ClearMasked marks cell (i, j) valid again.
func (f *ComplexField) ClearMasked(i, j int) {
	f.Mask.Elements[f.Mask.Index1d(i, j)] = 0
}

// MaskNaN marks invalid every cell whose decoded value is NaN, replacing
// the stored value with the fill sentinel.
func (f *ComplexField) MaskNaN() {
	for i, re := range f.Re.Elements {
		if math.IsNaN(re) || math.IsNaN(f.Im.Elements[i]) {
			f.Mask.Elements[i] = 1
			f.Re.Elements[i] = FillValue
			f.Im.Elements[i] = FillValue
		}
	}
}

// OrMask marks invalid every cell that is invalid in mask.
func (f *ComplexField) OrMask(mask *sparse.DenseArray) {
	for i, v := range mask.Elements {
		if v != 0 {
			f.Mask.Elements[i] = 1
		}
	}
}

// Scale multiplies every valid cell by the matching cell of sf, marking
// invalid any cell that is invalid in sf. Used to apply ice-shelf flexure
// scale factors to elevation constituents.
func (f *ComplexField) Scale(sf *Field) {
	for i := range f.Re.Elements {
		if f.Mask.Elements[i] != 0 {
			continue
		}
		if sf.Mask.Elements[i] != 0 {
			f.Mask.Elements[i] = 1
			f.Re.Elements[i] = FillValue
			f.Im.Elements[i] = FillValue
			continue
		}
		s := sf.Values.Elements[i]
		f.Re.Elements[i] *= s
		f.Im.Elements[i] *= s
	}
}

// Clone returns a deep copy.
func (f *ComplexField) Clone() *ComplexField {
	return &ComplexField{
		Re:   cloneDense(f.Re),
		Im:   cloneDense(f.Im),
		Mask: cloneDense(f.Mask),
	}
}

func cloneDense(a *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(a.Shape...)
	copy(out.Elements, a.Elements)
	return out
}
