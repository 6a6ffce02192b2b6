// Package usecase orchestrates reading tide models and sampling their
// harmonic constants at query coordinates.
package usecase

import (
	"fmt"
	"os"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"go.ngs.io/tidemodel/internal/adapter/crs"
	"go.ngs.io/tidemodel/internal/adapter/interp"
	"go.ngs.io/tidemodel/internal/adapter/store/otis"
	"go.ngs.io/tidemodel/internal/adapter/store/tmd3"
	"go.ngs.io/tidemodel/internal/atlas"
	"go.ngs.io/tidemodel/internal/domain"
	"go.ngs.io/tidemodel/internal/grid"
)

// Extractor samples harmonic constants from one configured tide model.
type Extractor struct {
	cfg Config
}

// NewExtractor validates the configuration and creates an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg}, nil
}

// gridData is a model grid loaded from file, with the wet mask inverted
// so nonzero marks invalid cells.
type gridData struct {
	x, y grid.Axis
	hz   *grid.Field
	mz   *sparse.DenseArray
	sf   *grid.Field // ice flexure scaling, TMD3 only

	// coarse axes of the global solution, kept for composing the
	// constituent patches of ATLAS models
	ax, ay grid.Axis
}

func loadGrid(cfg *Config) (*gridData, error) {
	if _, err := os.Stat(cfg.GridFile); err != nil {
		return nil, fmt.Errorf("grid file: %w", err)
	}
	switch cfg.Format {
	case FormatATLAS:
		ag, err := otis.ReadAtlasGrid(cfg.GridFile)
		if err != nil {
			return nil, err
		}
		patches := depthPatches(ag.Patches)
		x, y, hz := atlas.CombineReal(ag.X, ag.Y, ag.Depth, patches, atlas.DefaultSpacing)
		_, _, wet := atlas.Mask(ag.X, ag.Y, ag.Mask, patches, atlas.DefaultSpacing)
		return &gridData{x: x, y: y, hz: hz, mz: invertMask(wet), ax: ag.X, ay: ag.Y}, nil
	case FormatTMD3:
		g, err := tmd3.ReadGrid(cfg.GridFile)
		if err != nil {
			return nil, err
		}
		return &gridData{x: g.X, y: g.Y, hz: g.Depth, mz: invertMask(g.Mask), sf: g.Flexure}, nil
	default:
		g, err := otis.ReadGrid(cfg.GridFile)
		if err != nil {
			return nil, err
		}
		return &gridData{x: g.X, y: g.Y, hz: g.Depth, mz: invertMask(g.Mask)}, nil
	}
}

// invertMask flips a wet mask (nonzero = water) into an invalid mask
// (nonzero = land).
func invertMask(wet *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(wet.Shape...)
	for i, v := range wet.Elements {
		if v == 0 {
			out.Elements[i] = 1
		}
	}
	return out
}

func depthPatches(in map[string]*otis.DepthPatch) map[string]*atlas.Patch {
	out := make(map[string]*atlas.Patch, len(in))
	for name, p := range in {
		out[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Depth: p.Depth}
	}
	return out
}

func elevationPatches(in map[string]*otis.ElevationPatch) map[string]*atlas.Patch {
	out := make(map[string]*atlas.Patch, len(in))
	for name, p := range in {
		out[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Z: p.Z}
	}
	return out
}

func transportPatches(in map[string]*otis.TransportPatch, uNode bool) map[string]*atlas.Patch {
	out := make(map[string]*atlas.Patch, len(in))
	for name, p := range in {
		z := p.V
		if uNode {
			z = p.U
		}
		out[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Z: z}
	}
	return out
}

// constituentNames lists the model constituents in file order.
func constituentNames(cfg *Config) ([]string, error) {
	if len(cfg.ModelFiles) > 1 {
		names := make([]string, len(cfg.ModelFiles))
		for i, path := range cfg.ModelFiles {
			ns, err := otis.ReadConstituentNames(path)
			if err != nil {
				return nil, err
			}
			if len(ns) == 0 {
				return nil, fmt.Errorf("%s: no constituents in model file", path)
			}
			names[i] = ns[len(ns)-1]
		}
		return names, nil
	}
	if cfg.Format == FormatTMD3 {
		return tmd3.ReadConstituentNames(cfg.ModelFiles[0])
	}
	return otis.ReadConstituentNames(cfg.ModelFiles[0])
}

// loadConstituent reads the ic-th constituent field for the configured
// kind, composing ATLAS patches onto the global solution.
func (e *Extractor) loadConstituent(gd *gridData, ic int, name string) (*grid.ComplexField, error) {
	cfg := &e.cfg
	path := cfg.ModelFiles[0]
	if len(cfg.ModelFiles) > 1 {
		// one constituent per file
		path = cfg.ModelFiles[ic]
		ic = 0
	}
	switch {
	case cfg.Kind == KindElevation:
		switch cfg.Format {
		case FormatATLAS:
			z0, local, err := otis.ReadAtlasElevation(path, ic, name)
			if err != nil {
				return nil, err
			}
			_, _, hc := atlas.Combine(gd.ax, gd.ay, z0, elevationPatches(local), atlas.DefaultSpacing)
			return hc, nil
		case FormatTMD3:
			hc, err := tmd3.ReadConstituent(path, ic, "z")
			if err != nil {
				return nil, err
			}
			if cfg.ApplyFlexure {
				hc.Scale(gd.sf)
			}
			return hc, nil
		default:
			return otis.ReadElevation(path, ic)
		}
	case cfg.Kind.uNode():
		switch cfg.Format {
		case FormatATLAS:
			u0, _, local, err := otis.ReadAtlasTransport(path, ic, name)
			if err != nil {
				return nil, err
			}
			_, _, hc := atlas.Combine(gd.ax, gd.ay, u0, transportPatches(local, true), atlas.DefaultSpacing)
			return hc, nil
		case FormatTMD3:
			return tmd3.ReadConstituent(path, ic, "u")
		default:
			u, _, err := otis.ReadTransport(path, ic)
			return u, err
		}
	default:
		switch cfg.Format {
		case FormatATLAS:
			_, v0, local, err := otis.ReadAtlasTransport(path, ic, name)
			if err != nil {
				return nil, err
			}
			_, _, hc := atlas.Combine(gd.ax, gd.ay, v0, transportPatches(local, false), atlas.DefaultSpacing)
			return hc, nil
		case FormatTMD3:
			return tmd3.ReadConstituent(path, ic, "v")
		default:
			_, v, err := otis.ReadTransport(path, ic)
			return v, err
		}
	}
}

// stageNodes moves the bathymetry and mask onto the nodes of the
// requested variable. Elevations sample the cell centers directly;
// transports sample the staggered u or v nodes, shifting the matching
// axis half a cell. The returned field carries the combined invalid
// mask, and its matrices are seam-extended when the grid is global.
func stageNodes(kind Kind, x, y grid.Axis, hz *grid.Field, mz *sparse.DenseArray, isGlobal bool) (grid.Axis, grid.Axis, *grid.Field) {
	var h, wet *sparse.DenseArray
	switch {
	case kind.uNode():
		wet, _ = grid.MaskNodes(hz.Values, isGlobal)
		h, _ = grid.InterpolateZeta(hz.Values, isGlobal)
		x = x.Shifted(-x.Step() / 2)
	case kind.vNode():
		_, wet = grid.MaskNodes(hz.Values, isGlobal)
		_, h = grid.InterpolateZeta(hz.Values, isGlobal)
		y = y.Shifted(-y.Step() / 2)
	default:
		h = hz.Values
		wet = invertMask(mz)
	}
	if isGlobal {
		h = grid.ExtendMatrix(h)
		wet = grid.ExtendMatrix(wet)
	}
	// dry where the depth is zero or the node mask says land
	mask := sparse.ZerosDense(h.Shape...)
	for i, v := range h.Elements {
		if v == 0 || wet.Elements[i] == 0 {
			mask.Elements[i] = 1
		}
	}
	return x, y, &grid.Field{Values: h, Mask: mask}
}

// outsidePoints flags query points beyond the node axis coverage.
func outsidePoints(x, y grid.Axis, xq, yq []float64) []bool {
	out := make([]bool, len(xq))
	for i := range xq {
		out[i] = xq[i] < x.Min() || xq[i] > x.Max() || yq[i] < y.Min() || yq[i] > y.Max()
	}
	return out
}

// interpolateDepth samples the node bathymetry at the query points.
func interpolateDepth(method interp.Method, x, y grid.Axis, bath *grid.Field, xq, yq []float64) (*interp.Values, error) {
	switch method {
	case interp.MethodBilinear:
		return interp.Bilinear(x, y, bath, xq, yq)
	case interp.MethodSpline:
		return interp.Spline(x, y, bath, xq, yq)
	default:
		return interp.RegularGrid(x, y, bath, xq, yq, method)
	}
}

// maskZeros marks complex-zero cells invalid, so land cells stored as
// zeros never leak into an interpolation stencil.
func maskZeros(hc *grid.ComplexField) {
	for i, re := range hc.Re.Elements {
		if re == 0 && hc.Im.Elements[i] == 0 {
			hc.Mask.Elements[i] = 1
			hc.Re.Elements[i] = grid.FillValue
			hc.Im.Elements[i] = grid.FillValue
		}
	}
}

// interpolateField samples one constituent at the query points and folds
// the bathymetry mask into the result. With replaceMask the bathymetry
// mask overrides the interpolation mask instead of joining it, matching
// the staged-model sampling of spline interpolation.
func interpolateField(method interp.Method, x, y grid.Axis, hc *grid.ComplexField, xq, yq []float64, d *interp.Values, replaceMask bool) (*interp.ComplexValues, error) {
	var hci *interp.ComplexValues
	var err error
	switch method {
	case interp.MethodBilinear:
		hci, err = interp.BilinearComplex(x, y, hc, xq, yq)
	case interp.MethodSpline:
		hci, err = interp.SplineComplex(x, y, hc, xq, yq)
	default:
		hci, err = interp.RegularGridComplex(x, y, hc, xq, yq, method)
	}
	if err != nil {
		return nil, err
	}
	for p := range hci.Mask {
		if replaceMask && method == interp.MethodSpline {
			hci.Mask[p] = d.Mask[p]
		} else {
			hci.Mask[p] = hci.Mask[p] || d.Mask[p]
		}
		if hci.Mask[p] {
			hci.Data[p] = complex(grid.FillValue, grid.FillValue)
		}
	}
	return hci, nil
}

// fillColumn converts one interpolated constituent into amplitude and
// phase columns of the result.
func fillColumn(r *Result, ic int, kind Kind, hci *interp.ComplexValues, d *interp.Values, invalid []bool) {
	for p := range hci.Data {
		if hci.Mask[p] || invalid[p] {
			r.Mask[p][ic] = true
			r.Amplitude[p][ic] = grid.FillValue
			r.Phase[p][ic] = grid.FillValue
			continue
		}
		amp, ph := domain.AmplitudePhase(hci.Data[p])
		if kind.current() {
			// transports are m^2/s; depth converts them to cm/s
			amp /= d.Data[p] / 100.0
		}
		r.Amplitude[p][ic] = amp
		r.Phase[p][ic] = ph
	}
}

// ExtractConstants reads the model files and samples the amplitude and
// phase of every constituent at the given geographic coordinates.
func (e *Extractor) ExtractConstants(lon, lat []float64) (*Result, error) {
	cfg := &e.cfg
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("lon and lat lengths differ: %d != %d", len(lon), len(lat))
	}
	if len(lon) == 0 {
		return nil, fmt.Errorf("no query points")
	}
	gd, err := loadGrid(cfg)
	if err != nil {
		return nil, err
	}
	ref, err := crs.New(cfg.Projection)
	if err != nil {
		return nil, err
	}
	xq, yq, err := ref.Forward(lon, lat)
	if err != nil {
		return nil, err
	}
	isGeo := ref.IsGeographic()

	x, y, hz, mz := gd.x, gd.y, gd.hz, gd.mz
	dx := x.Step()
	bounds := grid.Bounds{floats.Min(xq), floats.Max(xq), floats.Min(yq), floats.Max(yq)}
	if cfg.Bounds != nil {
		bounds = *cfg.Bounds
	}
	buffer := 4 * dx
	if cfg.Buffer != nil {
		buffer = *cfg.Buffer
	}

	// Crop the domain, or re-base the query longitudes onto the model
	// convention. The eastward shift below applies in either case.
	var mx, my grid.Axis
	if cfg.Crop {
		mx, my = x, y
		mz, x, y, err = grid.Crop(mz, mx, my, bounds, buffer, isGeo)
		if err != nil {
			return nil, err
		}
		hz, _, _, err = hz.Crop(mx, my, bounds, buffer, isGeo)
		if err != nil {
			return nil, err
		}
	} else if isGeo && floats.Min(xq) < x.Min() {
		for i := range xq {
			if xq[i] < 0 {
				xq[i] += 360
			}
		}
	}
	if isGeo && floats.Max(xq) > x.Max() {
		for i := range xq {
			if xq[i] > 180 {
				xq[i] -= 360
			}
		}
	}

	isGlobal := isGeo && x.IsGlobal()
	if isGlobal {
		x = x.Extend(dx)
	}
	invalid := outsidePoints(x, y, xq, yq)

	nodeX, nodeY, bath := stageNodes(cfg.Kind, x, y, hz, mz, isGlobal)
	d, err := interpolateDepth(cfg.method(), nodeX, nodeY, bath, xq, yq)
	if err != nil {
		return nil, err
	}

	names, err := constituentNames(cfg)
	if err != nil {
		return nil, err
	}
	r := newResult(names, len(xq))
	r.Depth = d.Data
	r.DepthMask = d.Mask
	for i, c := range names {
		hc, err := e.loadConstituent(gd, i, c)
		if err != nil {
			return nil, err
		}
		if cfg.Crop {
			hc, _, _, err = hc.Crop(mx, my, bounds, buffer, isGeo)
			if err != nil {
				return nil, err
			}
		}
		if isGlobal {
			hc = hc.Extend()
		}
		hc.OrMask(bath.Mask)
		if cfg.method() == interp.MethodBilinear {
			maskZeros(hc)
		}
		hci, err := interpolateField(cfg.method(), nodeX, nodeY, hc, xq, yq, d, false)
		if err != nil {
			return nil, err
		}
		if cfg.Extrapolate {
			// Nearest-neighbor filling never sources from a zero cell,
			// whichever interpolation method ran first.
			maskZeros(hc)
			interp.Extrapolate(nodeX, nodeY, hc, xq, yq, hci, cfg.cutoff(), isGeo)
		}
		fillColumn(r, i, cfg.Kind, hci, d, invalid)
	}
	return r, nil
}
