package crs

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
)

// The proj library registers transformers for longlat, mercator, and the
// conic projections but not for stereographic, so the polar stereographic
// grids used by high-latitude tide models are handled here. Only the
// polar aspects are supported. Equations follow Snyder, Map Projections:
// A Working Manual (1987), section 21; the south polar aspect reverses
// the signs of the latitudes, longitudes, and easting/northing.

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

type polarStereo struct {
	a     float64 // semi-major axis
	e     float64 // eccentricity
	long0 float64 // central meridian, radians, sign-adjusted for aspect
	x0    float64 // false easting
	y0    float64 // false northing
	south bool
	scale float64 // rho = scale * t
}

func newPolarStereo(sr *proj.SR) (*polarStereo, error) {
	lat0 := sr.Lat0
	if math.IsNaN(lat0) || math.Abs(math.Abs(lat0)-math.Pi/2) > 1e-10 {
		return nil, fmt.Errorf("stereographic projection requires lat_0 of +90 or -90")
	}
	p := &polarStereo{a: sr.A, e: sr.E, south: lat0 < 0}
	if !math.IsNaN(sr.Long0) {
		p.long0 = sr.Long0
	}
	if !math.IsNaN(sr.X0) {
		p.x0 = sr.X0
	}
	if !math.IsNaN(sr.Y0) {
		p.y0 = sr.Y0
	}
	if p.south {
		p.long0 = -p.long0
	}
	switch {
	case !math.IsNaN(sr.LatTS):
		ts := sr.LatTS
		if p.south {
			ts = -ts
		}
		sinTS, cosTS := math.Sin(ts), math.Cos(ts)
		mc := cosTS / math.Sqrt(1-p.e*p.e*sinTS*sinTS)
		p.scale = p.a * mc / p.tsfn(ts)
	default:
		k0 := 1.0
		if !math.IsNaN(sr.K0) {
			k0 = sr.K0
		}
		e := p.e
		p.scale = 2 * p.a * k0 / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
	}
	return p, nil
}

// tsfn is the isometric colatitude function t of Snyder eq. 15-9.
func (p *polarStereo) tsfn(phi float64) float64 {
	esin := p.e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) * math.Pow((1+esin)/(1-esin), p.e/2)
}

func (p *polarStereo) forward(lon, lat float64) (float64, float64, error) {
	phi := lat * deg2rad
	lam := lon * deg2rad
	if p.south {
		phi, lam = -phi, -lam
	}
	if phi > math.Pi/2+1e-10 || phi < -math.Pi/2-1e-10 {
		return math.NaN(), math.NaN(), fmt.Errorf("latitude %g out of range", lat)
	}
	rho := p.scale * p.tsfn(phi)
	dlam := lam - p.long0
	x := rho * math.Sin(dlam)
	y := -rho * math.Cos(dlam)
	if p.south {
		x, y = -x, -y
	}
	return x + p.x0, y + p.y0, nil
}

func (p *polarStereo) inverse(x, y float64) (float64, float64, error) {
	x -= p.x0
	y -= p.y0
	if p.south {
		x, y = -x, -y
	}
	rho := math.Hypot(x, y)
	t := rho / p.scale
	phi, err := p.invTsfn(t)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	lam := p.long0
	if rho > 0 {
		lam += math.Atan2(x, -y)
	}
	if p.south {
		phi, lam = -phi, -lam
	}
	return lam * rad2deg, phi * rad2deg, nil
}

// invTsfn solves tsfn(phi) = t by fixed-point iteration (Snyder eq. 7-9).
func (p *polarStereo) invTsfn(t float64) (float64, error) {
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		esin := p.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-esin)/(1+esin), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			return next, nil
		}
		phi = next
	}
	return math.NaN(), fmt.Errorf("stereographic latitude iteration did not converge")
}
