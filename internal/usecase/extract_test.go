package usecase

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"

	"go.ngs.io/tidemodel/internal/adapter/interp"
	"go.ngs.io/tidemodel/internal/adapter/store/otis"
	"go.ngs.io/tidemodel/internal/grid"
)

func constDense(t *testing.T, ny, nx int, v float64) *sparse.DenseArray {
	t.Helper()
	a := sparse.ZerosDense(ny, nx)
	for i := range a.Elements {
		a.Elements[i] = v
	}
	return a
}

func constComplex(t *testing.T, ny, nx int, v complex128) *grid.ComplexField {
	t.Helper()
	f := grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			f.SetAt(i, j, v)
		}
	}
	return f
}

// dryCell turns one grid cell into land: zero depth, land-mask bit, zero
// constituent. Zero stores go through Elements because Set drops them.
func dryCell(hz, mz *sparse.DenseArray, h *grid.ComplexField, i, j int) {
	hz.Elements[hz.Index1d(i, j)] = 0
	mz.Elements[mz.Index1d(i, j)] = 0
	h.SetAt(i, j, 0)
}

// writeModel writes a small OTIS grid and elevation file pair and
// returns their paths.
func writeModel(t *testing.T, xlim, ylim [2]float64, hz, mz *sparse.DenseArray, h *grid.ComplexField) (string, string) {
	t.Helper()
	dir := t.TempDir()
	gridFile := filepath.Join(dir, "grid")
	modelFile := filepath.Join(dir, "h")
	if err := otis.WriteGrid(gridFile, xlim, ylim, hz, mz, nil, 12.0); err != nil {
		t.Fatalf("WriteGrid: %v", err)
	}
	err := otis.WriteElevation(modelFile, []*grid.ComplexField{h}, xlim, ylim, []string{"m2"})
	if err != nil {
		t.Fatalf("WriteElevation: %v", err)
	}
	return gridFile, modelFile
}

func elevationConfig(gridFile, modelFile string) Config {
	return Config{
		GridFile:   gridFile,
		ModelFiles: []string{modelFile},
		Format:     FormatOTIS,
		Kind:       KindElevation,
		Method:     interp.MethodBilinear,
	}
}

func TestExtractConstantsElevation(t *testing.T) {
	// 4x4 all-wet grid with one degree cells and a constant constituent.
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, -1))
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	e, err := NewExtractor(elevationConfig(gridFile, modelFile))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{1.5}, []float64{2.5})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}

	if len(r.Constituents) != 1 || r.Constituents[0] != "m2" {
		t.Fatalf("constituents = %v, want [m2]", r.Constituents)
	}
	if r.Mask[0][0] {
		t.Fatal("interior point masked")
	}
	if got, want := r.Amplitude[0][0], math.Sqrt2; math.Abs(got-want) > 1e-12 {
		t.Errorf("amplitude = %v, want %v", got, want)
	}
	if got, want := r.Phase[0][0], 45.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("phase = %v, want %v", got, want)
	}
	if r.DepthMask[0] || math.Abs(r.Depth[0]-100) > 1e-9 {
		t.Errorf("depth = %v masked=%v, want 100 unmasked", r.Depth[0], r.DepthMask[0])
	}
}

func TestExtractConstantsWrapsLongitude(t *testing.T) {
	// Global 10 degree grid on the 0:360 convention. A query at -10
	// re-bases to 350 and lands inside the seam extension.
	hz := constDense(t, 4, 36, 1000)
	mz := constDense(t, 4, 36, 1)
	h := constComplex(t, 4, 36, complex(2, 0))
	gridFile, modelFile := writeModel(t, [2]float64{0, 360}, [2]float64{0, 40}, hz, mz, h)

	e, err := NewExtractor(elevationConfig(gridFile, modelFile))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{-10}, []float64{20})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if r.Mask[0][0] {
		t.Fatal("wrapped point masked")
	}
	if got := r.Amplitude[0][0]; math.Abs(got-2) > 1e-12 {
		t.Errorf("amplitude = %v, want 2", got)
	}
	if got := r.Phase[0][0]; math.Abs(got) > 1e-12 {
		t.Errorf("phase = %v, want 0", got)
	}
}

func TestExtractConstantsMasksLand(t *testing.T) {
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, 0))
	// dry out the cell centered at (1.5, 1.5)
	dryCell(hz, mz, h, 1, 1)
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	e, err := NewExtractor(elevationConfig(gridFile, modelFile))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	// One stencil touches the dry cell, the other does not.
	r, err := e.ExtractConstants([]float64{2.0, 3.0}, []float64{2.0, 3.0})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if !r.Mask[0][0] {
		t.Error("stencil over dry cell not masked")
	}
	if r.Mask[1][0] {
		t.Error("wet stencil masked")
	}
}

func TestExtractConstantsExtrapolates(t *testing.T) {
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, 0))
	dryCell(hz, mz, h, 1, 1)
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	cfg := elevationConfig(gridFile, modelFile)
	cfg.Extrapolate = true
	cfg.Cutoff = math.Inf(1)
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{2.0}, []float64{2.0})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if r.Mask[0][0] {
		t.Fatal("extrapolated point still masked")
	}
	if got := r.Amplitude[0][0]; math.Abs(got-1) > 1e-12 {
		t.Errorf("amplitude = %v, want 1", got)
	}
}

func TestExtractConstantsExtrapolateSkipsZeroCells(t *testing.T) {
	// The dry cell at (1,1) is ringed by wet cells whose constituent is
	// stored as zero. Extrapolation must treat those zeros as fill and
	// reach past them to the nearest real solution.
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, 0))
	dryCell(hz, mz, h, 1, 1)
	for _, n := range [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 0}, {2, 1}, {2, 2}} {
		h.SetAt(n[0], n[1], 0)
	}
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	cfg := elevationConfig(gridFile, modelFile)
	cfg.Method = interp.MethodSpline
	cfg.Extrapolate = true
	cfg.Cutoff = math.Inf(1)
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{1.5}, []float64{1.5})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if r.Mask[0][0] {
		t.Fatal("extrapolated point still masked")
	}
	if got := r.Amplitude[0][0]; math.Abs(got-1) > 1e-12 {
		t.Errorf("amplitude = %v, want 1", got)
	}
}

func TestExtractConstantsOutsideDomain(t *testing.T) {
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, 0))
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	cfg := elevationConfig(gridFile, modelFile)
	cfg.Method = interp.MethodSpline
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{50}, []float64{50})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if !r.Mask[0][0] {
		t.Error("point outside the domain not masked")
	}
}

func TestConstituentNamesMultiFile(t *testing.T) {
	// Single-constituent model files sometimes keep spare IDs in the
	// header; the last one names the solution the file stores.
	dir := t.TempDir()
	xlim, ylim := [2]float64{0, 4}, [2]float64{0, 4}
	h := constComplex(t, 4, 4, complex(1, 0))
	f1 := filepath.Join(dir, "h_q1")
	if err := otis.WriteElevation(f1, []*grid.ComplexField{h, h}, xlim, ylim, []string{"2n2", "q1"}); err != nil {
		t.Fatalf("WriteElevation: %v", err)
	}
	f2 := filepath.Join(dir, "h_m2")
	if err := otis.WriteElevation(f2, []*grid.ComplexField{h}, xlim, ylim, []string{"m2"}); err != nil {
		t.Fatalf("WriteElevation: %v", err)
	}
	cfg := Config{ModelFiles: []string{f1, f2}, Format: FormatOTIS, Kind: KindElevation}
	names, err := constituentNames(&cfg)
	if err != nil {
		t.Fatalf("constituentNames: %v", err)
	}
	if len(names) != 2 || names[0] != "q1" || names[1] != "m2" {
		t.Errorf("names = %v, want [q1 m2]", names)
	}
}

func TestExtractConstantsCurrents(t *testing.T) {
	dir := t.TempDir()
	xlim, ylim := [2]float64{0, 4}, [2]float64{0, 4}
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	u := constComplex(t, 4, 4, complex(50, 0))
	v := constComplex(t, 4, 4, complex(0, 0))
	gridFile := filepath.Join(dir, "grid")
	modelFile := filepath.Join(dir, "uv")
	if err := otis.WriteGrid(gridFile, xlim, ylim, hz, mz, nil, 12.0); err != nil {
		t.Fatalf("WriteGrid: %v", err)
	}
	err := otis.WriteTransport(modelFile, []*grid.ComplexField{u}, []*grid.ComplexField{v}, xlim, ylim, []string{"m2"})
	if err != nil {
		t.Fatalf("WriteTransport: %v", err)
	}

	e, err := NewExtractor(Config{
		GridFile:   gridFile,
		ModelFiles: []string{modelFile},
		Format:     FormatOTIS,
		Kind:       KindCurrentU,
		Method:     interp.MethodBilinear,
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	r, err := e.ExtractConstants([]float64{2.0}, []float64{2.0})
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}
	if r.Mask[0][0] {
		t.Fatal("interior point masked")
	}
	// 50 m^2/s transport over 100 m of water is 50 cm/s.
	if got := r.Amplitude[0][0]; math.Abs(got-50) > 1e-9 {
		t.Errorf("amplitude = %v, want 50", got)
	}
}

func TestInterpolateMatchesExtract(t *testing.T) {
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(3, -4))
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	cfg := elevationConfig(gridFile, modelFile)
	cfg.Method = interp.MethodSpline
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	lon := []float64{1.5, 2.25}
	lat := []float64{2.5, 1.75}
	want, err := e.ExtractConstants(lon, lat)
	if err != nil {
		t.Fatalf("ExtractConstants: %v", err)
	}

	m, err := e.ReadConstants()
	if err != nil {
		t.Fatalf("ReadConstants: %v", err)
	}
	// Staging keeps the node coordinates in geographic form; on a
	// geographic grid they match the node axes directly.
	if m.Lon == nil || m.Lat == nil {
		t.Fatal("staged model is missing node coordinates")
	}
	if got, want := m.Lon.Get(2, 1), m.Constituents.X[1]; math.Abs(got-want) > 1e-9 {
		t.Errorf("node longitude = %v, want %v", got, want)
	}
	if got, want := m.Lat.Get(2, 1), m.Constituents.Y[2]; math.Abs(got-want) > 1e-9 {
		t.Errorf("node latitude = %v, want %v", got, want)
	}
	got, err := m.Interpolate(lon, lat, InterpolateOptions{Method: interp.MethodSpline})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	for p := range lon {
		if got.Mask[p][0] != want.Mask[p][0] {
			t.Fatalf("point %d: mask mismatch: %v != %v", p, got.Mask[p][0], want.Mask[p][0])
		}
		if math.Abs(got.Amplitude[p][0]-want.Amplitude[p][0]) > 1e-9 {
			t.Errorf("point %d: amplitude %v != %v", p, got.Amplitude[p][0], want.Amplitude[p][0])
		}
		if math.Abs(got.Phase[p][0]-want.Phase[p][0]) > 1e-9 {
			t.Errorf("point %d: phase %v != %v", p, got.Phase[p][0], want.Phase[p][0])
		}
	}
}

func TestInterpolateLeavesModelIntact(t *testing.T) {
	hz := constDense(t, 4, 4, 100)
	mz := constDense(t, 4, 4, 1)
	h := constComplex(t, 4, 4, complex(1, -1))
	gridFile, modelFile := writeModel(t, [2]float64{0, 4}, [2]float64{0, 4}, hz, mz, h)

	e, err := NewExtractor(elevationConfig(gridFile, modelFile))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	m, err := e.ReadConstants()
	if err != nil {
		t.Fatalf("ReadConstants: %v", err)
	}
	field, err := m.Constituents.Get("m2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	before := field.Clone()

	// Bilinear sampling masks zero cells internally; the staged field
	// must not observe that.
	_, err = m.Interpolate([]float64{1.5}, []float64{2.5}, InterpolateOptions{Method: interp.MethodBilinear})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	ny, nx := field.Shape()
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			if field.At(i, j) != before.At(i, j) || field.Masked(i, j) != before.Masked(i, j) {
				t.Fatalf("staged field mutated at (%d,%d)", i, j)
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		GridFile:   "grid",
		ModelFiles: []string{"h"},
		Format:     FormatOTIS,
		Kind:       KindElevation,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing grid", func(c *Config) { c.GridFile = "" }},
		{"missing model files", func(c *Config) { c.ModelFiles = nil }},
		{"bad format", func(c *Config) { c.Format = "FES" }},
		{"bad kind", func(c *Config) { c.Kind = "w" }},
		{"bad method", func(c *Config) { c.Method = "cubic" }},
		{"negative cutoff", func(c *Config) { c.Cutoff = -1 }},
		{"netcdf file list", func(c *Config) {
			c.Format = FormatTMD3
			c.ModelFiles = []string{"a", "b"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExtractConstantsMissingGrid(t *testing.T) {
	e, err := NewExtractor(Config{
		GridFile:   filepath.Join(t.TempDir(), "missing"),
		ModelFiles: []string{"h"},
		Format:     FormatOTIS,
		Kind:       KindElevation,
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if _, err := e.ExtractConstants([]float64{0}, []float64{0}); err == nil {
		t.Fatal("expected error for missing grid file")
	}
}
