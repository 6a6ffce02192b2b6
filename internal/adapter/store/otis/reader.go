// Package otis reads and writes OTIS and ATLAS format tide model files.
//
// The binary layout is big-endian Fortran sequential access: every record
// is framed by 4-byte length markers. Grid files carry bathymetry and the
// land/water mask, elevation and transport files carry one interleaved
// real/imaginary record per constituent. ATLAS files append localized
// high-resolution solutions after the global records.
package otis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/ctessum/sparse"

	"go.ngs.io/tidemodel/internal/grid"
)

// Grid holds the contents of an OTIS grid file.
type Grid struct {
	X, Y     grid.Axis
	Depth    *grid.Field        // bathymetry, masked where zero
	Mask     *sparse.DenseArray // land/water mask, 1 = wet
	Boundary [][2]int32         // open boundary node indices
	TimeStep float64
}

// DepthPatch is a localized bathymetry solution from an ATLAS grid file.
type DepthPatch struct {
	LonLim, LatLim [2]float64
	Depth          *grid.Field
}

// AtlasGrid holds the global solution of an ATLAS grid file together with
// its localized patches.
type AtlasGrid struct {
	Grid
	PatchMask *sparse.DenseArray // nonzero where a local solution applies
	Patches   map[string]*DepthPatch
}

// ElevationPatch is a localized elevation solution from an ATLAS
// elevation file.
type ElevationPatch struct {
	LonLim, LatLim [2]float64
	Z              *grid.ComplexField
}

// TransportPatch is a localized transport solution from an ATLAS
// transport file.
type TransportPatch struct {
	LonLim, LatLim [2]float64
	U, V           *grid.ComplexField
}

// cursor wraps a seekable reader with sticky-error big-endian decoding.
type cursor struct {
	r   io.ReadSeeker
	err error
}

func (c *cursor) i4() int32 {
	var v int32
	if c.err == nil {
		c.err = binary.Read(c.r, binary.BigEndian, &v)
	}
	return v
}

func (c *cursor) f4() float64 {
	var v float32
	if c.err == nil {
		c.err = binary.Read(c.r, binary.BigEndian, &v)
	}
	return float64(v)
}

func (c *cursor) i4s(n int) []int32 {
	v := make([]int32, n)
	if c.err == nil {
		c.err = binary.Read(c.r, binary.BigEndian, v)
	}
	return v
}

func (c *cursor) f4s(n int) []float32 {
	v := make([]float32, n)
	if c.err == nil {
		c.err = binary.Read(c.r, binary.BigEndian, v)
	}
	return v
}

func (c *cursor) bytes(n int) []byte {
	b := make([]byte, n)
	if c.err == nil {
		_, c.err = io.ReadFull(c.r, b)
	}
	return b
}

func (c *cursor) skip(n int64) {
	if c.err == nil {
		_, c.err = c.r.Seek(n, io.SeekCurrent)
	}
}

func (c *cursor) tell() int64 {
	if c.err != nil {
		return 0
	}
	pos, err := c.r.Seek(0, io.SeekCurrent)
	c.err = err
	return pos
}

// ReadGrid reads an OTIS grid file. Cell-center axes are derived from the
// grid limits, and negative longitude limits of geographic grids are
// normalized to [0, 360).
func ReadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grid file: %w", err)
	}
	defer f.Close()

	c := &cursor{r: f}
	c.skip(4)
	nx := int(c.i4())
	ny := int(c.i4())
	ylim := [2]float64{c.f4(), c.f4()}
	xlim := [2]float64{c.f4(), c.f4()}
	dt := c.f4()
	nob := int(c.i4())
	if c.err != nil {
		return nil, fmt.Errorf("reading grid header from %s: %w", path, c.err)
	}
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions (%d, %d) in %s", nx, ny, path)
	}

	var boundary [][2]int32
	if nob == 0 {
		c.skip(20)
	} else {
		c.skip(8)
		iob := c.i4s(2 * nob)
		c.skip(8)
		boundary = make([][2]int32, nob)
		for i := range boundary {
			boundary[i] = [2]int32{iob[2*i], iob[2*i+1]}
		}
	}

	hz := c.f4s(nx * ny)
	c.skip(8)
	mz := c.i4s(nx * ny)
	if c.err != nil {
		return nil, fmt.Errorf("reading grid data from %s: %w", path, c.err)
	}

	// Geographic grids stored with negative longitude limits are shifted
	// into the [0, 360) convention. A nonpositive time step marks a
	// projected grid, which is left alone.
	if xlim[0] < 0 && xlim[1] < 0 && dt > 0 {
		xlim[0] += 360
		xlim[1] += 360
	}

	g := &Grid{
		X:        grid.CellCenters(xlim[0], xlim[1], nx),
		Y:        grid.CellCenters(ylim[0], ylim[1], ny),
		Depth:    grid.NewField(ny, nx),
		Mask:     sparse.ZerosDense(ny, nx),
		Boundary: boundary,
		TimeStep: dt,
	}
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			d := float64(hz[i*nx+j])
			if d == 0 {
				g.Depth.SetMasked(i, j)
			} else {
				g.Depth.Values.Set(d, i, j)
			}
			g.Mask.Set(float64(mz[i*nx+j]), i, j)
		}
	}
	return g, nil
}

// ReadAtlasGrid reads an ATLAS grid file: the coarse global solution, the
// patch coverage mask, and every localized bathymetry patch keyed by its
// solution name.
func ReadAtlasGrid(path string) (*AtlasGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening atlas grid file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating atlas grid file: %w", err)
	}

	c := &cursor{r: f}
	c.skip(4)
	nx := int(c.i4())
	ny := int(c.i4())
	ylim := [2]float64{c.f4(), c.f4()}
	xlim := [2]float64{c.f4(), c.f4()}
	dt := c.f4()
	nob := int(c.i4())
	if c.err != nil {
		return nil, fmt.Errorf("reading atlas grid header from %s: %w", path, c.err)
	}

	var boundary [][2]int32
	if nob == 0 {
		c.skip(20)
	} else {
		c.skip(8)
		iob := c.i4s(2 * nob)
		c.skip(8)
		boundary = make([][2]int32, nob)
		for i := range boundary {
			boundary[i] = [2]int32{iob[2*i], iob[2*i+1]}
		}
	}

	hz := c.f4s(nx * ny)
	c.skip(8)
	mz := c.i4s(nx * ny)
	c.skip(8)
	pmask := c.i4s(nx * ny)
	c.skip(4)
	if c.err != nil {
		return nil, fmt.Errorf("reading atlas grid data from %s: %w", path, c.err)
	}

	ag := &AtlasGrid{
		Grid: Grid{
			X:        grid.CellCenters(xlim[0], xlim[1], nx),
			Y:        grid.CellCenters(ylim[0], ylim[1], ny),
			Depth:    grid.NewField(ny, nx),
			Mask:     sparse.ZerosDense(ny, nx),
			Boundary: boundary,
			TimeStep: dt,
		},
		PatchMask: sparse.ZerosDense(ny, nx),
		Patches:   make(map[string]*DepthPatch),
	}
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			d := float64(hz[i*nx+j])
			if d == 0 {
				ag.Depth.SetMasked(i, j)
			} else {
				ag.Depth.Values.Set(d, i, j)
			}
			ag.Mask.Set(float64(mz[i*nx+j]), i, j)
			ag.PatchMask.Set(float64(pmask[i*nx+j]), i, j)
		}
	}

	// Localized solutions follow until the end of the file.
	for c.tell() < info.Size() && c.err == nil {
		c.skip(4)
		nx1 := int(c.i4())
		ny1 := int(c.i4())
		nd := int(c.i4())
		latLim := [2]float64{c.f4(), c.f4()}
		lonLim := [2]float64{c.f4(), c.f4()}
		name := patchName(c.bytes(20))
		c.skip(8)
		iz := c.i4s(nd)
		jz := c.i4s(nd)
		c.skip(8)
		vals := c.f4s(nd)
		c.skip(4)
		if c.err != nil {
			return nil, fmt.Errorf("reading atlas grid patch %d from %s: %w", len(ag.Patches), path, c.err)
		}
		depth := grid.NewField(ny1, nx1)
		for i := 0; i < ny1; i++ {
			for j := 0; j < nx1; j++ {
				depth.SetMasked(i, j)
			}
		}
		// Scattered node indices are 1-based.
		for k := 0; k < nd; k++ {
			i, j := int(jz[k])-1, int(iz[k])-1
			depth.Set(float64(vals[k]), i, j)
			depth.ClearMasked(i, j)
		}
		ag.Patches[name] = &DepthPatch{LonLim: lonLim, LatLim: latLim, Depth: depth}
	}
	return ag, nil
}

func patchName(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00 "))
}

// ReadConstituentNames reads the constituent ID list from the header of
// an OTIS or ATLAS elevation or transport file.
func ReadConstituentNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	c := &cursor{r: f}
	c.i4() // header record length
	c.i4() // nx
	c.i4() // ny
	nc := int(c.i4())
	c.skip(16)
	raw := c.bytes(nc * 4)
	if c.err != nil {
		return nil, fmt.Errorf("reading constituents from %s: %w", path, c.err)
	}
	names := make([]string, nc)
	for i := 0; i < nc; i++ {
		names[i] = strings.TrimSpace(string(raw[4*i : 4*i+4]))
	}
	return names, nil
}

// header reads the leading record of an elevation or transport file and
// returns the header record length plus the grid dimensions.
func header(c *cursor, path string) (ll, nx, ny, nc int, err error) {
	ll = int(c.i4())
	nx = int(c.i4())
	ny = int(c.i4())
	nc = int(c.i4())
	c.skip(16) // ylim, xlim
	if c.err != nil {
		return 0, 0, 0, 0, fmt.Errorf("reading header from %s: %w", path, c.err)
	}
	return ll, nx, ny, nc, nil
}

// ReadElevation reads the complex elevation of constituent ic from an
// OTIS elevation file. NaN nodes are masked.
func ReadElevation(path string, ic int) (*grid.ComplexField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening elevation file: %w", err)
	}
	defer f.Close()

	c := &cursor{r: f}
	ll, nx, ny, nc, err := header(c, path)
	if err != nil {
		return nil, err
	}
	if ic < 0 || ic >= nc {
		return nil, fmt.Errorf("constituent index %d out of range [0, %d) in %s", ic, nc, path)
	}
	c.skip(int64(ic*(nx*ny*8+8) + 8 + ll - 28))
	vals := c.f4s(2 * nx * ny)
	if c.err != nil {
		return nil, fmt.Errorf("reading elevation from %s: %w", path, c.err)
	}

	h := grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			re := float64(vals[2*(i*nx+j)])
			im := float64(vals[2*(i*nx+j)+1])
			if math.IsNaN(re) || math.IsNaN(im) {
				h.SetMasked(i, j)
				continue
			}
			h.SetAt(i, j, complex(re, im))
		}
	}
	return h, nil
}

// ReadTransport reads the complex zonal and meridional transports of
// constituent ic from an OTIS transport file. NaN nodes are masked.
func ReadTransport(path string, ic int) (u, v *grid.ComplexField, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening transport file: %w", err)
	}
	defer f.Close()

	c := &cursor{r: f}
	ll, nx, ny, nc, err := header(c, path)
	if err != nil {
		return nil, nil, err
	}
	if ic < 0 || ic >= nc {
		return nil, nil, fmt.Errorf("constituent index %d out of range [0, %d) in %s", ic, nc, path)
	}
	c.skip(int64(ic*(nx*ny*16+8) + 8 + ll - 28))
	vals := c.f4s(4 * nx * ny)
	if c.err != nil {
		return nil, nil, fmt.Errorf("reading transport from %s: %w", path, c.err)
	}

	u = grid.NewComplexField(ny, nx)
	v = grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			base := 4 * (i*nx + j)
			setComplex(u, i, j, vals[base], vals[base+1])
			setComplex(v, i, j, vals[base+2], vals[base+3])
		}
	}
	return u, v, nil
}

func setComplex(f *grid.ComplexField, i, j int, re, im float32) {
	if math.IsNaN(float64(re)) || math.IsNaN(float64(im)) {
		f.SetMasked(i, j)
		return
	}
	f.SetAt(i, j, complex(float64(re), float64(im)))
}

// ReadAtlasElevation reads the global elevation of constituent ic from an
// ATLAS elevation file, plus every localized patch that resolves the
// named constituent.
func ReadAtlasElevation(path string, ic int, constituent string) (*grid.ComplexField, map[string]*ElevationPatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening atlas elevation file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stating atlas elevation file: %w", err)
	}

	c := &cursor{r: f}
	_, nx, ny, nc, err := header(c, path)
	if err != nil {
		return nil, nil, err
	}
	if ic < 0 || ic >= nc {
		return nil, nil, fmt.Errorf("constituent index %d out of range [0, %d) in %s", ic, nc, path)
	}
	c.skip(int64(8 + nc*4 + ic*(nx*ny*8+8)))
	vals := c.f4s(2 * nx * ny)
	c.skip(int64((nc-ic-1)*(nx*ny*8+8) + 4))
	if c.err != nil {
		return nil, nil, fmt.Errorf("reading atlas elevation from %s: %w", path, c.err)
	}

	h := grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			setComplex(h, i, j, vals[2*(i*nx+j)], vals[2*(i*nx+j)+1])
		}
	}

	patches := make(map[string]*ElevationPatch)
	for c.tell() < info.Size() && c.err == nil {
		c.skip(4)
		nx1 := int(c.i4())
		ny1 := int(c.i4())
		nc1 := int(c.i4())
		nz := int(c.i4())
		latLim := [2]float64{c.f4(), c.f4()}
		lonLim := [2]float64{c.f4(), c.f4()}
		cons := constituentList(c.bytes(nc1 * 4))
		ic1 := indexOf(cons, constituent)
		if ic1 < 0 {
			// Local model does not resolve this constituent.
			c.skip(int64(40 + 16*nz + (nc1-1)*(8*nz+8)))
			continue
		}
		name := patchName(c.bytes(20))
		c.skip(8)
		iz := c.i4s(nz)
		jz := c.i4s(nz)
		c.skip(int64(8 + ic1*(8*nz+8)))
		temp := c.f4s(2 * nz)
		c.skip(int64((nc1-ic1-1)*(8*nz+8) + 4))
		if c.err != nil {
			return nil, nil, fmt.Errorf("reading atlas elevation patch from %s: %w", path, c.err)
		}
		z := newMaskedComplex(ny1, nx1)
		for k := 0; k < nz; k++ {
			i, j := int(jz[k])-1, int(iz[k])-1
			z.SetAt(i, j, complex(float64(temp[2*k]), float64(temp[2*k+1])))
			z.ClearMasked(i, j)
		}
		patches[name] = &ElevationPatch{LonLim: lonLim, LatLim: latLim, Z: z}
	}
	if c.err != nil {
		return nil, nil, fmt.Errorf("reading atlas elevation patches from %s: %w", path, c.err)
	}
	return h, patches, nil
}

// ReadAtlasTransport reads the global transports of constituent ic from
// an ATLAS transport file, plus every localized patch that resolves the
// named constituent.
func ReadAtlasTransport(path string, ic int, constituent string) (u, v *grid.ComplexField, patches map[string]*TransportPatch, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening atlas transport file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stating atlas transport file: %w", err)
	}

	c := &cursor{r: f}
	_, nx, ny, nc, err := header(c, path)
	if err != nil {
		return nil, nil, nil, err
	}
	if ic < 0 || ic >= nc {
		return nil, nil, nil, fmt.Errorf("constituent index %d out of range [0, %d) in %s", ic, nc, path)
	}
	c.skip(int64(8 + nc*4 + ic*(nx*ny*16+8)))
	vals := c.f4s(4 * nx * ny)
	c.skip(int64((nc-ic-1)*(nx*ny*16+8) + 4))
	if c.err != nil {
		return nil, nil, nil, fmt.Errorf("reading atlas transport from %s: %w", path, c.err)
	}

	u = grid.NewComplexField(ny, nx)
	v = grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			base := 4 * (i*nx + j)
			setComplex(u, i, j, vals[base], vals[base+1])
			setComplex(v, i, j, vals[base+2], vals[base+3])
		}
	}

	patches = make(map[string]*TransportPatch)
	for c.tell() < info.Size() && c.err == nil {
		c.skip(4)
		nx1 := int(c.i4())
		ny1 := int(c.i4())
		nc1 := int(c.i4())
		nu := int(c.i4())
		nv := int(c.i4())
		latLim := [2]float64{c.f4(), c.f4()}
		lonLim := [2]float64{c.f4(), c.f4()}
		cons := constituentList(c.bytes(nc1 * 4))
		ic1 := indexOf(cons, constituent)
		if ic1 < 0 {
			c.skip(int64(56 + 16*nu + 16*nv + (nc1-1)*(8*nu+8*nv+16)))
			continue
		}
		name := patchName(c.bytes(20))
		c.skip(8)
		iu := c.i4s(nu)
		ju := c.i4s(nu)
		c.skip(8)
		iv := c.i4s(nv)
		jv := c.i4s(nv)
		c.skip(int64(8 + ic1*(8*nu+8*nv+16)))
		tmpu := c.f4s(2 * nu)
		c.skip(8)
		tmpv := c.f4s(2 * nv)
		c.skip(int64((nc1-ic1-1)*(8*nu+8*nv+16) + 4))
		if c.err != nil {
			return nil, nil, nil, fmt.Errorf("reading atlas transport patch from %s: %w", path, c.err)
		}
		u1 := newMaskedComplex(ny1, nx1)
		for k := 0; k < nu; k++ {
			i, j := int(ju[k])-1, int(iu[k])-1
			u1.SetAt(i, j, complex(float64(tmpu[2*k]), float64(tmpu[2*k+1])))
			u1.ClearMasked(i, j)
		}
		v1 := newMaskedComplex(ny1, nx1)
		for k := 0; k < nv; k++ {
			i, j := int(jv[k])-1, int(iv[k])-1
			v1.SetAt(i, j, complex(float64(tmpv[2*k]), float64(tmpv[2*k+1])))
			v1.ClearMasked(i, j)
		}
		patches[name] = &TransportPatch{LonLim: lonLim, LatLim: latLim, U: u1, V: v1}
	}
	if c.err != nil {
		return nil, nil, nil, fmt.Errorf("reading atlas transport patches from %s: %w", path, c.err)
	}
	return u, v, patches, nil
}

// newMaskedComplex returns a complex field with every node masked.
func newMaskedComplex(ny, nx int) *grid.ComplexField {
	f := grid.NewComplexField(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			f.Mask.Set(1, i, j)
		}
	}
	return f
}

func constituentList(b []byte) []string {
	var names []string
	for i := 0; i+4 <= len(b); i += 4 {
		name := strings.TrimSpace(string(b[i : i+4]))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
