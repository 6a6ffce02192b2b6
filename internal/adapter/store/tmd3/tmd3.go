// Package tmd3 reads TMD3-format netCDF4 tide model files. A single file
// carries the model grid (water column thickness, land/water mask, ice
// flexure scaling) together with every constituent's complex amplitudes.
//
// Rows are stored north to south and are flipped on read so the y axis
// ascends. Imaginary components are stored with opposite sign and are
// negated on read.
package tmd3

import (
	"fmt"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/tidemodel/internal/grid"
)

// Grid holds the model grid of a TMD3 file.
type Grid struct {
	X, Y    grid.Axis
	Depth   *grid.Field        // water column thickness, masked where zero
	Mask    *sparse.DenseArray // land/water mask, 1 = wet
	Flexure *grid.Field        // ice flexure scaling factor, masked where zero
}

// ReadGrid reads the grid variables from a TMD3 model file.
func ReadGrid(path string) (*Grid, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer nc.Close()

	x, err := readAxis(nc, "x")
	if err != nil {
		return nil, fmt.Errorf("reading x from %s: %w", path, err)
	}
	y, err := readAxis(nc, "y")
	if err != nil {
		return nil, fmt.Errorf("reading y from %s: %w", path, err)
	}
	ny, nx := len(y), len(x)

	wct, err := readPlane(nc, "wct", ny, nx)
	if err != nil {
		return nil, fmt.Errorf("reading wct from %s: %w", path, err)
	}
	mask, err := readPlane(nc, "mask", ny, nx)
	if err != nil {
		return nil, fmt.Errorf("reading mask from %s: %w", path, err)
	}
	flexure, err := readPlane(nc, "flexure", ny, nx)
	if err != nil {
		return nil, fmt.Errorf("reading flexure from %s: %w", path, err)
	}

	g := &Grid{
		X:       grid.Axis(x),
		Y:       reverse(y),
		Depth:   grid.NewField(ny, nx),
		Mask:    sparse.ZerosDense(ny, nx),
		Flexure: grid.NewField(ny, nx),
	}
	for i := 0; i < ny; i++ {
		src := ny - 1 - i // flip row order so y ascends
		for j := 0; j < nx; j++ {
			d := wct[src*nx+j]
			if d == 0 {
				g.Depth.SetMasked(i, j)
			} else {
				g.Depth.Values.Set(d, i, j)
			}
			g.Mask.Set(mask[src*nx+j], i, j)
			// Flexure is stored in percent.
			sf := flexure[src*nx+j] / 100
			if sf == 0 {
				g.Flexure.SetMasked(i, j)
			} else {
				g.Flexure.Values.Set(sf, i, j)
			}
		}
	}
	return g, nil
}

// ReadConstituentNames reads the ordered constituent IDs from the
// constituent_order attribute.
func ReadConstituentNames(path string) ([]string, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer nc.Close()

	v, err := nc.Var("constituents")
	if err != nil {
		return nil, fmt.Errorf("constituents variable not found in %s: %w", path, err)
	}
	a := v.Attr("constituent_order")
	n, err := a.Len()
	if err != nil {
		return nil, fmt.Errorf("constituent_order attribute not found in %s: %w", path, err)
	}
	b := make([]byte, n)
	if err := a.ReadBytes(b); err != nil {
		return nil, fmt.Errorf("reading constituent_order from %s: %w", path, err)
	}
	return strings.Fields(string(b)), nil
}

// variable name prefixes by tidal variable
var componentPrefix = map[string]string{
	"z": "h",
	"u": "U",
	"U": "U",
	"v": "V",
	"V": "V",
}

// ReadConstituent reads the complex field of constituent ic for the given
// tidal variable (z, u, U, v or V).
func ReadConstituent(path string, ic int, variable string) (*grid.ComplexField, error) {
	prefix, ok := componentPrefix[variable]
	if !ok {
		return nil, fmt.Errorf("unsupported tidal variable %q", variable)
	}
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer nc.Close()

	re, nyc, nx, err := readCube(nc, prefix+"Re")
	if err != nil {
		return nil, fmt.Errorf("reading %sRe from %s: %w", prefix, path, err)
	}
	im, _, _, err := readCube(nc, prefix+"Im")
	if err != nil {
		return nil, fmt.Errorf("reading %sIm from %s: %w", prefix, path, err)
	}
	nc2 := len(re) / (nyc * nx)
	if ic < 0 || ic >= nc2 {
		return nil, fmt.Errorf("constituent index %d out of range [0, %d) in %s", ic, nc2, path)
	}

	f := grid.NewComplexField(nyc, nx)
	base := ic * nyc * nx
	for i := 0; i < nyc; i++ {
		src := nyc - 1 - i
		for j := 0; j < nx; j++ {
			k := base + src*nx + j
			// The imaginary component is stored negated.
			f.SetAt(i, j, complex(re[k], -im[k]))
		}
	}
	return f, nil
}

func reverse(a []float64) grid.Axis {
	out := make(grid.Axis, len(a))
	for i, v := range a {
		out[len(a)-1-i] = v
	}
	return out
}

// readAxis reads a 1D coordinate variable as float64.
func readAxis(nc netcdf.Dataset, name string) ([]float64, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found: %w", name, err)
	}
	n, err := varLen(v)
	if err != nil {
		return nil, err
	}
	return readFloat64s(v, n)
}

// readPlane reads a 2D variable as a flat float64 slice in row-major
// storage order.
func readPlane(nc netcdf.Dataset, name string, ny, nx int) ([]float64, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found: %w", name, err)
	}
	n, err := varLen(v)
	if err != nil {
		return nil, err
	}
	if n != ny*nx {
		return nil, fmt.Errorf("variable %s has %d values, want %d", name, n, ny*nx)
	}
	return readFloat64s(v, n)
}

// readCube reads a 3D constituent variable and returns its flat values
// plus the trailing plane dimensions.
func readCube(nc netcdf.Dataset, name string) ([]float64, int, int, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("variable %s not found: %w", name, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("getting dimensions of %s: %w", name, err)
	}
	if len(dims) != 3 {
		return nil, 0, 0, fmt.Errorf("variable %s is %dD, want 3D", name, len(dims))
	}
	ny, err := dims[1].Len()
	if err != nil {
		return nil, 0, 0, err
	}
	nx, err := dims[2].Len()
	if err != nil {
		return nil, 0, 0, err
	}
	n, err := varLen(v)
	if err != nil {
		return nil, 0, 0, err
	}
	vals, err := readFloat64s(v, n)
	if err != nil {
		return nil, 0, 0, err
	}
	return vals, int(ny), int(nx), nil
}

func varLen(v netcdf.Var) (int, error) {
	dims, err := v.Dims()
	if err != nil {
		return 0, fmt.Errorf("getting dimensions: %w", err)
	}
	n := 1
	for _, d := range dims {
		l, err := d.Len()
		if err != nil {
			return 0, fmt.Errorf("getting dimension length: %w", err)
		}
		n *= int(l)
	}
	return n, nil
}

// readFloat64s reads n values from v, converting from the stored type.
func readFloat64s(v netcdf.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("getting variable type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %v", t)
	}
}
