package tmd3

import (
	"path/filepath"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/google/go-cmp/cmp"

	"go.ngs.io/tidemodel/internal/grid"
)

// createModelNC writes a minimal TMD3 model file: a 2x2 grid with two
// constituents, rows stored north to south.
func createModelNC(t *testing.T, path string) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	cDim, _ := f.AddDim("constituents", 2)
	yDim, _ := f.AddDim("y", 2)
	xDim, _ := f.AddDim("x", 2)
	vx, _ := f.AddVar("x", netcdf.DOUBLE, []netcdf.Dim{xDim})
	vy, _ := f.AddVar("y", netcdf.DOUBLE, []netcdf.Dim{yDim})
	vwct, _ := f.AddVar("wct", netcdf.DOUBLE, []netcdf.Dim{yDim, xDim})
	vmask, _ := f.AddVar("mask", netcdf.INT, []netcdf.Dim{yDim, xDim})
	vflex, _ := f.AddVar("flexure", netcdf.DOUBLE, []netcdf.Dim{yDim, xDim})
	vcons, _ := f.AddVar("constituents", netcdf.INT, []netcdf.Dim{cDim})
	vhre, _ := f.AddVar("hRe", netcdf.DOUBLE, []netcdf.Dim{cDim, yDim, xDim})
	vhim, _ := f.AddVar("hIm", netcdf.DOUBLE, []netcdf.Dim{cDim, yDim, xDim})
	vure, _ := f.AddVar("URe", netcdf.DOUBLE, []netcdf.Dim{cDim, yDim, xDim})
	vuim, _ := f.AddVar("UIm", netcdf.DOUBLE, []netcdf.Dim{cDim, yDim, xDim})

	if err := vcons.Attr("constituent_order").WriteBytes([]byte("m2 s2")); err != nil {
		t.Fatalf("write constituent_order: %v", err)
	}
	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}

	if err := vx.WriteFloat64s([]float64{10, 11}); err != nil {
		t.Fatal(err)
	}
	// y is stored descending.
	if err := vy.WriteFloat64s([]float64{61, 60}); err != nil {
		t.Fatal(err)
	}
	// Northern row first: wct[0] is the y=61 row.
	if err := vwct.WriteFloat64s([]float64{100, 200, 0, 400}); err != nil {
		t.Fatal(err)
	}
	if err := vmask.WriteInt32s([]int32{1, 1, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := vflex.WriteFloat64s([]float64{100, 50, 0, 100}); err != nil {
		t.Fatal(err)
	}
	if err := vcons.WriteInt32s([]int32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := vhre.WriteFloat64s([]float64{
		1, 2, 3, 4, // m2, north row first
		10, 20, 30, 40, // s2
	}); err != nil {
		t.Fatal(err)
	}
	if err := vhim.WriteFloat64s([]float64{
		-1, -2, -3, -4,
		-10, -20, -30, -40,
	}); err != nil {
		t.Fatal(err)
	}
	if err := vure.WriteFloat64s([]float64{
		5, 6, 7, 8,
		50, 60, 70, 80,
	}); err != nil {
		t.Fatal(err)
	}
	if err := vuim.WriteFloat64s([]float64{
		-5, -6, -7, -8,
		-50, -60, -70, -80,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestReadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.nc")
	createModelNC(t, path)

	g, err := ReadGrid(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(grid.Axis{10, 11}, g.X); diff != "" {
		t.Errorf("x axis mismatch (-want +got):\n%s", diff)
	}
	// y ascends after the flip.
	if diff := cmp.Diff(grid.Axis{60, 61}, g.Y); diff != "" {
		t.Errorf("y axis mismatch (-want +got):\n%s", diff)
	}
	// Stored row 1 (y=60) becomes row 0.
	if !g.Depth.Masked(0, 0) {
		t.Error("zero water column thickness should be masked")
	}
	if g.Depth.Values.Get(0, 1) != 400 {
		t.Errorf("depth(0,1) = %v, want 400", g.Depth.Values.Get(0, 1))
	}
	if g.Depth.Values.Get(1, 0) != 100 {
		t.Errorf("depth(1,0) = %v, want 100", g.Depth.Values.Get(1, 0))
	}
	if g.Mask.Get(0, 0) != 0 || g.Mask.Get(1, 1) != 1 {
		t.Error("land/water mask not flipped correctly")
	}
	// Flexure converts from percent to a scale factor.
	if g.Flexure.Values.Get(1, 1) != 0.5 {
		t.Errorf("flexure(1,1) = %v, want 0.5", g.Flexure.Values.Get(1, 1))
	}
	if !g.Flexure.Masked(0, 0) {
		t.Error("zero flexure should be masked")
	}
}

func TestReadConstituentNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.nc")
	createModelNC(t, path)

	names, err := ReadConstituentNames(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"m2", "s2"}, names); diff != "" {
		t.Errorf("constituents mismatch (-want +got):\n%s", diff)
	}
}

func TestReadConstituent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.nc")
	createModelNC(t, path)

	h, err := ReadConstituent(path, 1, "z")
	if err != nil {
		t.Fatal(err)
	}
	// Row 0 after the flip is the stored southern row, and the imaginary
	// component flips sign.
	if got, want := h.At(0, 0), complex(30, 30); got != want {
		t.Errorf("h(0,0) = %v, want %v", got, want)
	}
	if got, want := h.At(1, 1), complex(20, 20); got != want {
		t.Errorf("h(1,1) = %v, want %v", got, want)
	}

	u, err := ReadConstituent(path, 0, "U")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := u.At(1, 0), complex(5, 5); got != want {
		t.Errorf("u(1,0) = %v, want %v", got, want)
	}

	if _, err := ReadConstituent(path, 5, "z"); err == nil {
		t.Error("out-of-range constituent index should error")
	}
	if _, err := ReadConstituent(path, 0, "w"); err == nil {
		t.Error("unknown tidal variable should error")
	}
}
