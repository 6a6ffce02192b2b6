package usecase

import (
	"fmt"

	"go.ngs.io/tidemodel/internal/adapter/interp"
	"go.ngs.io/tidemodel/internal/grid"
)

// Format identifies the tide model file layout.
type Format string

const (
	// FormatOTIS is a combined global or regional binary solution.
	FormatOTIS Format = "OTIS"
	// FormatATLAS is a global binary solution with localized patches.
	FormatATLAS Format = "ATLAS"
	// FormatTMD3 is a combined netCDF4 solution.
	FormatTMD3 Format = "TMD3"
)

// Valid reports whether the format is one of the supported layouts.
func (f Format) Valid() bool {
	switch f {
	case FormatOTIS, FormatATLAS, FormatTMD3:
		return true
	}
	return false
}

// Kind selects the tidal variable to extract.
type Kind string

const (
	// KindElevation is tide heights in meters.
	KindElevation Kind = "z"
	// KindCurrentU is zonal currents in cm/s.
	KindCurrentU Kind = "u"
	// KindTransportU is zonal depth-averaged transport in m^2/s.
	KindTransportU Kind = "U"
	// KindCurrentV is meridional currents in cm/s.
	KindCurrentV Kind = "v"
	// KindTransportV is meridional depth-averaged transport in m^2/s.
	KindTransportV Kind = "V"
)

// Valid reports whether the kind is a supported tidal variable.
func (k Kind) Valid() bool {
	switch k {
	case KindElevation, KindCurrentU, KindTransportU, KindCurrentV, KindTransportV:
		return true
	}
	return false
}

// current reports whether the kind is a velocity, which divides the
// transport amplitudes by the water depth.
func (k Kind) current() bool {
	return k == KindCurrentU || k == KindCurrentV
}

// uNode reports whether the kind lives on the u nodes of the C-grid.
func (k Kind) uNode() bool {
	return k == KindCurrentU || k == KindTransportU
}

// vNode reports whether the kind lives on the v nodes of the C-grid.
func (k Kind) vNode() bool {
	return k == KindCurrentV || k == KindTransportV
}

// defaultCutoff is the nearest-neighbor extrapolation cutoff in
// kilometers when none is configured.
const defaultCutoff = 10.0

// Config describes one tide model and how to sample it.
type Config struct {
	// GridFile is the path of the model grid file.
	GridFile string

	// ModelFiles holds the constituent data. A single entry is a combined
	// multi-constituent file; multiple entries are read as one constituent
	// per file.
	ModelFiles []string

	// Format of the model files.
	Format Format

	// Kind is the tidal variable to extract.
	Kind Kind

	// Method selects the interpolation scheme. Empty defaults to spline.
	Method interp.Method

	// Projection is the PROJ definition of the model coordinate system.
	// Empty means geographic WGS84 coordinates.
	Projection string

	// Crop reduces the model domain to Bounds before interpolating.
	Crop bool

	// Bounds is the crop region [xmin, xmax, ymin, ymax]. Nil defaults to
	// the extent of the query points.
	Bounds *grid.Bounds

	// Buffer widens the crop region. Nil defaults to four grid cells when
	// extracting, and to zero when staging a model with ReadConstants.
	Buffer *float64

	// Extrapolate fills masked points from the nearest wet model node.
	Extrapolate bool

	// Cutoff is the extrapolation distance limit in kilometers. Zero
	// defaults to 10; +Inf extrapolates every point.
	Cutoff float64

	// ApplyFlexure scales elevations by the ice shelf flexure factor.
	// Only meaningful for TMD3 models.
	ApplyFlexure bool
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.GridFile == "" {
		return fmt.Errorf("grid file must be provided")
	}
	if len(c.ModelFiles) == 0 {
		return fmt.Errorf("at least one model file must be provided")
	}
	if !c.Format.Valid() {
		return fmt.Errorf("unknown model format %q", c.Format)
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown variable kind %q", c.Kind)
	}
	if c.Method != "" && !c.Method.Valid() {
		return fmt.Errorf("unknown interpolation method %q", c.Method)
	}
	if c.Format == FormatTMD3 && len(c.ModelFiles) > 1 {
		return fmt.Errorf("netCDF4 models use a single combined file")
	}
	if c.Cutoff < 0 {
		return fmt.Errorf("extrapolation cutoff must not be negative")
	}
	return nil
}

// method returns the configured interpolation method or the default.
func (c *Config) method() interp.Method {
	if c.Method == "" {
		return interp.MethodSpline
	}
	return c.Method
}

// cutoff returns the configured extrapolation cutoff or the default.
func (c *Config) cutoff() float64 {
	if c.Cutoff == 0 {
		return defaultCutoff
	}
	return c.Cutoff
}

// Result holds harmonic constants sampled at query points. Rows are
// points, columns follow the constituent order.
type Result struct {
	// Constituents are the model constituent IDs in file order.
	Constituents []string

	// Amplitude of each constituent at each point, in the units of the
	// extracted kind.
	Amplitude [][]float64

	// Phase lag of each constituent at each point, degrees in [0, 360).
	Phase [][]float64

	// Mask flags points where a constituent could not be sampled.
	Mask [][]bool

	// Depth is the model bathymetry interpolated to the points.
	Depth []float64

	// DepthMask flags points with no valid bathymetry.
	DepthMask []bool
}

func newResult(names []string, npts int) *Result {
	r := &Result{
		Constituents: names,
		Amplitude:    make([][]float64, npts),
		Phase:        make([][]float64, npts),
		Mask:         make([][]bool, npts),
	}
	for p := 0; p < npts; p++ {
		r.Amplitude[p] = make([]float64, len(names))
		r.Phase[p] = make([]float64, len(names))
		r.Mask[p] = make([]bool, len(names))
	}
	return r
}
