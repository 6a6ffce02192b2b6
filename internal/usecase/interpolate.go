package usecase

import (
	"fmt"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"go.ngs.io/tidemodel/internal/adapter/crs"
	"go.ngs.io/tidemodel/internal/adapter/interp"
	"go.ngs.io/tidemodel/internal/domain"
	"go.ngs.io/tidemodel/internal/grid"
)

// Model is a tide model staged in memory, ready for repeated sampling
// without re-reading its files.
type Model struct {
	Constituents *domain.Constituents
	Kind         Kind
	CRS          *crs.Ref

	// Lon and Lat hold the geographic coordinates of every node, for
	// callers that need the staged grid in longitude and latitude.
	Lon, Lat *sparse.DenseArray
}

// nodeCoordinates converts the node axes back to geographic coordinates,
// one meshgrid row at a time.
func nodeCoordinates(ref *crs.Ref, x, y grid.Axis) (lon, lat *sparse.DenseArray, err error) {
	lon = sparse.ZerosDense(len(y), len(x))
	lat = sparse.ZerosDense(len(y), len(x))
	row := make([]float64, len(x))
	for i, yv := range y {
		for j := range row {
			row[j] = yv
		}
		lo, la, err := ref.Inverse(x, row)
		if err != nil {
			return nil, nil, err
		}
		copy(lon.Elements[i*len(x):(i+1)*len(x)], lo)
		copy(lat.Elements[i*len(x):(i+1)*len(x)], la)
	}
	return lon, lat, nil
}

// ReadConstants reads and composes the model files once, returning the
// constituent fields on the node grid. Use Model.Interpolate to sample
// the staged fields.
func (e *Extractor) ReadConstants() (*Model, error) {
	cfg := &e.cfg
	gd, err := loadGrid(cfg)
	if err != nil {
		return nil, err
	}
	ref, err := crs.New(cfg.Projection)
	if err != nil {
		return nil, err
	}
	isGeo := ref.IsGeographic()

	x, y, hz, mz := gd.x, gd.y, gd.hz, gd.mz
	dx := x.Step()
	// Staging has no query points to derive bounds from, so cropping
	// requires explicit bounds and defaults to no buffer.
	crop := cfg.Crop && cfg.Bounds != nil
	var buffer float64
	if cfg.Buffer != nil {
		buffer = *cfg.Buffer
	}
	var mx, my grid.Axis
	if crop {
		mx, my = x, y
		mz, x, y, err = grid.Crop(mz, mx, my, *cfg.Bounds, buffer, isGeo)
		if err != nil {
			return nil, err
		}
		hz, _, _, err = hz.Crop(mx, my, *cfg.Bounds, buffer, isGeo)
		if err != nil {
			return nil, err
		}
	}

	isGlobal := isGeo && x.IsGlobal()
	if isGlobal {
		x = x.Extend(dx)
	}
	nodeX, nodeY, bath := stageNodes(cfg.Kind, x, y, hz, mz, isGlobal)
	coll := domain.NewConstituents(nodeX, nodeY, bath)

	names, err := constituentNames(cfg)
	if err != nil {
		return nil, err
	}
	for i, c := range names {
		hc, err := e.loadConstituent(gd, i, c)
		if err != nil {
			return nil, err
		}
		if crop {
			hc, _, _, err = hc.Crop(mx, my, *cfg.Bounds, buffer, isGeo)
			if err != nil {
				return nil, err
			}
		}
		if isGlobal {
			hc = hc.Extend()
		}
		hc.OrMask(bath.Mask)
		coll.Append(c, hc)
	}
	lonGrid, latGrid, err := nodeCoordinates(ref, nodeX, nodeY)
	if err != nil {
		return nil, err
	}
	return &Model{Constituents: coll, Kind: cfg.Kind, CRS: ref, Lon: lonGrid, Lat: latGrid}, nil
}

// InterpolateOptions selects how staged constituents are sampled.
type InterpolateOptions struct {
	// Method selects the interpolation scheme. Empty defaults to spline.
	Method interp.Method

	// Extrapolate fills masked points from the nearest wet model node.
	Extrapolate bool

	// Cutoff is the extrapolation distance limit in kilometers. Zero
	// defaults to 10; +Inf extrapolates every point.
	Cutoff float64
}

func (o *InterpolateOptions) method() interp.Method {
	if o.Method == "" {
		return interp.MethodSpline
	}
	return o.Method
}

func (o *InterpolateOptions) cutoff() float64 {
	if o.Cutoff == 0 {
		return defaultCutoff
	}
	return o.Cutoff
}

// Interpolate samples the staged constituents at the given geographic
// coordinates. The model fields are left untouched, so one staged model
// serves concurrent read-only callers.
func (m *Model) Interpolate(lon, lat []float64, opts InterpolateOptions) (*Result, error) {
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("lon and lat lengths differ: %d != %d", len(lon), len(lat))
	}
	if len(lon) == 0 {
		return nil, fmt.Errorf("no query points")
	}
	if opts.Method != "" && !opts.Method.Valid() {
		return nil, fmt.Errorf("unknown interpolation method %q", opts.Method)
	}
	method := opts.method()

	xq, yq, err := m.CRS.Forward(lon, lat)
	if err != nil {
		return nil, err
	}
	isGeo := m.CRS.IsGeographic()
	coll := m.Constituents
	x, y := coll.X, coll.Y

	// Re-base the query longitudes onto the model convention.
	if isGeo && floats.Min(xq) < x.Min() {
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
	invalid := outsidePoints(x, y, xq, yq)

	d, err := interpolateDepth(method, x, y, coll.Depth, xq, yq)
	if err != nil {
		return nil, err
	}

	names := coll.Names()
	r := newResult(names, len(xq))
	r.Depth = d.Data
	r.DepthMask = d.Mask
	for i, c := range names {
		field, err := coll.Get(c)
		if err != nil {
			return nil, err
		}
		// Zero masking and extrapolation mutate the field, so sample a
		// copy and keep the staged constituent intact.
		hc := field.Clone()
		if method != interp.MethodSpline {
			maskZeros(hc)
		}
		hci, err := interpolateField(method, x, y, hc, xq, yq, d, true)
		if err != nil {
			return nil, err
		}
		if opts.Extrapolate {
			// Nearest-neighbor filling never sources from a zero cell,
			// whichever interpolation method ran first.
			maskZeros(hc)
			interp.Extrapolate(x, y, hc, xq, yq, hci, opts.cutoff(), isGeo)
		}
		fillColumn(r, i, m.Kind, hci, d, invalid)
	}
	return r, nil
}
