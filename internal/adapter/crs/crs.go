// Package crs converts query coordinates between geographic longitude and
// latitude and the native coordinate reference system of a model grid.
package crs

import (
	"fmt"

	"github.com/ctessum/geom/proj"
)

// geographicProj is the reference system query coordinates arrive in.
const geographicProj = "+proj=longlat +datum=WGS84 +no_defs"

// Ref holds the model's spatial reference together with transforms to and
// from geographic coordinates.
type Ref struct {
	model   *proj.SR
	forward proj.Transformer
	inverse proj.Transformer
}

// New parses a proj string into a Ref. An empty string means the model
// grid is itself geographic. Stereographic grids are handled by the
// polar transform in this package; everything else goes through the proj
// library.
func New(projString string) (*Ref, error) {
	if projString == "" {
		projString = geographicProj
	}
	model, err := proj.Parse(projString)
	if err != nil {
		return nil, fmt.Errorf("parsing model projection %q: %w", projString, err)
	}
	if model.Name == "stere" {
		ps, err := newPolarStereo(model)
		if err != nil {
			return nil, fmt.Errorf("building stereographic transform: %w", err)
		}
		return &Ref{model: model, forward: ps.forward, inverse: ps.inverse}, nil
	}
	geo, err := proj.Parse(geographicProj)
	if err != nil {
		return nil, fmt.Errorf("parsing geographic projection: %w", err)
	}
	forward, err := geo.NewTransform(model)
	if err != nil {
		return nil, fmt.Errorf("building forward transform: %w", err)
	}
	inverse, err := model.NewTransform(geo)
	if err != nil {
		return nil, fmt.Errorf("building inverse transform: %w", err)
	}
	return &Ref{model: model, forward: forward, inverse: inverse}, nil
}

// IsGeographic reports whether the model grid uses geographic
// longitude/latitude coordinates.
func (r *Ref) IsGeographic() bool {
	return r.model.Name == "longlat"
}

// Forward converts geographic coordinates to the model reference system.
func (r *Ref) Forward(lon, lat []float64) (x, y []float64, err error) {
	return apply(r.forward, lon, lat)
}

// Inverse converts model coordinates back to geographic
// longitude/latitude.
func (r *Ref) Inverse(x, y []float64) (lon, lat []float64, err error) {
	return apply(r.inverse, x, y)
}

func apply(t proj.Transformer, u, v []float64) ([]float64, []float64, error) {
	if len(u) != len(v) {
		return nil, nil, fmt.Errorf("coordinate slices differ in length: %d != %d", len(u), len(v))
	}
	ou := make([]float64, len(u))
	ov := make([]float64, len(v))
	if t == nil {
		// NewTransform returns a nil Transformer when the source and
		// destination references are equal.
		copy(ou, u)
		copy(ov, v)
		return ou, ov, nil
	}
	for i := range u {
		x, y, err := t(u[i], v[i])
		if err != nil {
			return nil, nil, fmt.Errorf("transforming point (%g, %g): %w", u[i], v[i], err)
		}
		ou[i], ov[i] = x, y
	}
	return ou, ov, nil
}
