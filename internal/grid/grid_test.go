package grid

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/google/go-cmp/cmp"
)

func TestCellCenters(t *testing.T) {
	a := CellCenters(0, 360, 4)
	want := Axis{45, 135, 225, 315}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("cell centers mismatch (-want +got):\n%s", diff)
	}
	if got := a.Step(); got != 90 {
		t.Errorf("Step() = %v, want 90", got)
	}
}

func TestCellCentersSingleCell(t *testing.T) {
	a := CellCenters(-90, 90, 1)
	want := Axis{0}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("single cell center mismatch (-want +got):\n%s", diff)
	}
}

func TestAxisExtend(t *testing.T) {
	// A global 1-degree belt of cell centers.
	a := CellCenters(0, 360, 360)
	if !a.IsGlobal() {
		t.Fatalf("axis spanning 360-dx should be global")
	}
	dx := a.Step()
	ext := a.Extend(dx)
	if len(ext) != len(a)+2 {
		t.Fatalf("extended length = %d, want %d", len(ext), len(a)+2)
	}
	if math.Abs(ext[0]-(a[0]-dx)) > 1e-12 {
		t.Errorf("extended[0] = %v, want %v", ext[0], a[0]-dx)
	}
	if math.Abs(ext[len(ext)-1]-(a.Max()+dx)) > 1e-12 {
		t.Errorf("extended[-1] = %v, want %v", ext[len(ext)-1], a.Max()+dx)
	}
}

func TestAxisIsGlobalRegional(t *testing.T) {
	a := CellCenters(0, 90, 90)
	if a.IsGlobal() {
		t.Errorf("regional axis reported as global")
	}
}

func TestExtendMatrix(t *testing.T) {
	m := sparse.ZerosDense(2, 3)
	vals := []float64{1, 2, 3, 4, 5, 6}
	copy(m.Elements, vals)
	ext := ExtendMatrix(m)
	if ext.Shape[1] != 5 {
		t.Fatalf("extended nx = %d, want 5", ext.Shape[1])
	}
	// First column copies the last, last column copies the first.
	if ext.Get(0, 0) != 3 || ext.Get(1, 0) != 6 {
		t.Errorf("leading wrap column = [%v %v], want [3 6]", ext.Get(0, 0), ext.Get(1, 0))
	}
	if ext.Get(0, 4) != 1 || ext.Get(1, 4) != 4 {
		t.Errorf("trailing wrap column = [%v %v], want [1 4]", ext.Get(0, 4), ext.Get(1, 4))
	}
	if ext.Get(0, 2) != 2 {
		t.Errorf("interior shifted by one column: got %v, want 2", ext.Get(0, 2))
	}
}

func TestInterpolateMaskAllWet(t *testing.T) {
	mz := sparse.ZerosDense(4, 4)
	for i := range mz.Elements {
		mz.Elements[i] = 1
	}
	mu, mv := InterpolateMask(mz, true)
	for i := range mu.Elements {
		if mu.Elements[i] != 1 || mv.Elements[i] != 1 {
			t.Fatalf("all-wet center mask must give all-ones u/v masks")
		}
	}
}

func TestInterpolateMaskAllDry(t *testing.T) {
	mz := sparse.ZerosDense(4, 4)
	mu, mv := InterpolateMask(mz, true)
	for i := range mu.Elements {
		if mu.Elements[i] != 0 || mv.Elements[i] != 0 {
			t.Fatalf("all-dry center mask must give all-zero u/v masks")
		}
	}
}

func TestInterpolateMaskCoast(t *testing.T) {
	// One dry cell at (1,1) in a 3x3 wet grid.
	mz := sparse.ZerosDense(3, 3)
	for i := range mz.Elements {
		mz.Elements[i] = 1
	}
	mz.Elements[mz.Index1d(1, 1)] = 0
	mu, mv := InterpolateMask(mz, false)
	// u node at (1,1) needs (1,0) and (1,1) wet; (1,1) is dry.
	if mu.Get(1, 1) != 0 {
		t.Errorf("mu(1,1) = %v, want 0", mu.Get(1, 1))
	}
	// u node at (1,2) needs (1,1) and (1,2); (1,1) is dry.
	if mu.Get(1, 2) != 0 {
		t.Errorf("mu(1,2) = %v, want 0", mu.Get(1, 2))
	}
	// v node at (2,1) needs (1,1) and (2,1); (1,1) is dry.
	if mv.Get(2, 1) != 0 {
		t.Errorf("mv(2,1) = %v, want 0", mv.Get(2, 1))
	}
	// Away from the dry cell the nodes stay wet.
	if mu.Get(0, 1) != 1 || mv.Get(0, 0) != 1 {
		t.Errorf("nodes away from the dry cell should remain wet")
	}
}

func TestInterpolateMaskWrap(t *testing.T) {
	// Dry western edge: with wrap the u mask at column 0 looks at the
	// eastern edge; with edge replication it looks at itself.
	mz := sparse.ZerosDense(1, 4)
	mz.Elements[0] = 0
	mz.Elements[1] = 1
	mz.Elements[2] = 1
	mz.Elements[3] = 1
	muWrap, _ := InterpolateMask(mz, true)
	if muWrap.Get(0, 0) != 0 {
		t.Errorf("wrapped mu(0,0) = %v, want 0 (west neighbor is column 3 but cell 0 is dry)", muWrap.Get(0, 0))
	}
	// Column 1's west neighbor is the dry column 0 either way.
	if muWrap.Get(0, 1) != 0 {
		t.Errorf("mu(0,1) = %v, want 0", muWrap.Get(0, 1))
	}
	if muWrap.Get(0, 2) != 1 {
		t.Errorf("mu(0,2) = %v, want 1", muWrap.Get(0, 2))
	}
}

func TestInterpolateZeta(t *testing.T) {
	hz := sparse.ZerosDense(2, 3)
	copy(hz.Elements, []float64{10, 20, 30, 40, 50, 60})
	hu, hv := InterpolateZeta(hz, false)
	// Interior u node averages west and center cells.
	if got := hu.Get(0, 1); got != 15 {
		t.Errorf("hu(0,1) = %v, want 15", got)
	}
	// v node averages south and center cells.
	if got := hv.Get(1, 0); got != 25 {
		t.Errorf("hv(1,0) = %v, want 25", got)
	}
	// Edge nodes replicate and so equal the center value.
	if got := hu.Get(0, 0); got != 10 {
		t.Errorf("hu(0,0) = %v, want 10", got)
	}
}

func TestShiftWest(t *testing.T) {
	// 0..350 in 10-degree steps (cell centers 5..355).
	x := CellCenters(0, 360, 36)
	m := sparse.ZerosDense(1, 36)
	for j := 0; j < 36; j++ {
		m.Elements[j] = float64(j)
	}
	out, sx, err := func() (*sparse.DenseArray, Axis, error) {
		o, s := Shift(m, x, 180, 360, West)
		return o, s, s.Validate()
	}()
	if err != nil {
		t.Fatalf("shifted axis not monotonic: %v", err)
	}
	// The center nearest 180 is 175 (index 17); after the westward shift
	// the axis starts at 175-360.
	if math.Abs(sx[0]-(-185)) > 1e-9 {
		t.Errorf("shifted axis start = %v, want -185", sx[0])
	}
	// Data columns rotated by the same offset.
	if out.Get(0, 0) != 17 {
		t.Errorf("first shifted column holds value %v, want 17", out.Get(0, 0))
	}
}

func TestCropConventionReanchor(t *testing.T) {
	// Grid on 0..360, bounds on -20..20: the grid must be re-anchored to
	// -180..180 before cropping.
	x := CellCenters(0, 360, 36)
	y := CellCenters(-90, 90, 18)
	m := sparse.ZerosDense(18, 36)
	for i := range m.Elements {
		m.Elements[i] = float64(i)
	}
	out, cx, cy, err := Crop(m, x, y, Bounds{-20, 20, -30, 30}, 0, true)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if cx.Min() < -20 || cx.Max() > 20 {
		t.Errorf("cropped x range [%v, %v] outside bounds", cx.Min(), cx.Max())
	}
	if cy.Min() < -30 || cy.Max() > 30 {
		t.Errorf("cropped y range [%v, %v] outside bounds", cy.Min(), cy.Max())
	}
	if out.Shape[0] != len(cy) || out.Shape[1] != len(cx) {
		t.Errorf("cropped shape %v does not match axes (%d, %d)", out.Shape, len(cy), len(cx))
	}
}

func TestCropOutside(t *testing.T) {
	x := CellCenters(0, 90, 9)
	y := CellCenters(0, 45, 9)
	m := sparse.ZerosDense(9, 9)
	if _, _, _, err := Crop(m, x, y, Bounds{100, 120, 50, 60}, 0, false); err == nil {
		t.Fatalf("expected ErrOutsideGrid for disjoint bounds")
	}
}

func TestCropBuffer(t *testing.T) {
	x := CellCenters(0, 10, 10)
	y := CellCenters(0, 10, 10)
	m := sparse.ZerosDense(10, 10)
	_, cx, _, err := Crop(m, x, y, Bounds{4, 6, 4, 6}, 2, false)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	// Buffered window [2, 8] holds centers 2.5..7.5.
	if len(cx) != 6 {
		t.Errorf("buffered crop selected %d columns, want 6", len(cx))
	}
}

func TestFieldZeroStores(t *testing.T) {
	// DenseArray.Set ignores zero values, so the field setters must
	// store zeros and clear mask bits through Elements.
	f := NewField(2, 2)
	f.Set(5, 0, 1)
	f.Set(0, 0, 1)
	if got := f.Values.Get(0, 1); got != 0 {
		t.Errorf("stored value = %v, want 0", got)
	}
	f.SetMasked(1, 1)
	f.ClearMasked(1, 1)
	if f.Masked(1, 1) {
		t.Error("cell should be valid after ClearMasked")
	}
}

func TestComplexFieldZeroStores(t *testing.T) {
	f := NewComplexField(2, 2)
	f.SetMasked(0, 0)
	f.SetAt(0, 0, complex(0, 0))
	f.ClearMasked(0, 0)
	if f.Masked(0, 0) {
		t.Error("cell should be valid after ClearMasked")
	}
	if got := f.At(0, 0); got != 0 {
		t.Errorf("stored value = %v, want 0", got)
	}
}

func TestComplexFieldScaleMask(t *testing.T) {
	f := NewComplexField(1, 2)
	f.SetAt(0, 0, complex(2, 1))
	f.SetAt(0, 1, complex(2, 1))
	sf := NewField(1, 2)
	sf.Set(0.5, 0, 0)
	sf.SetMasked(0, 1)
	f.Scale(sf)
	if got := f.At(0, 0); got != complex(1, 0.5) {
		t.Errorf("scaled value = %v, want (1+0.5i)", got)
	}
	if !f.Masked(0, 1) {
		t.Error("cell under a masked scale factor should be masked")
	}
}
