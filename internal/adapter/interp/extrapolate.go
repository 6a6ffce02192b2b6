package interp

import (
	"math"

	"go.ngs.io/tidemodel/internal/grid"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Extrapolate fills the masked entries of out with the value of the
// nearest valid source node of f, searching no farther than cutoff
// kilometers. A cutoff of +Inf removes the distance limit. Distances are
// great-circle when the axes are geographic and planar (meters scaled to
// kilometers) otherwise. Entries with no source within the cutoff stay
// masked.
func Extrapolate(x, y grid.Axis, f *grid.ComplexField, xq, yq []float64, out *ComplexValues, cutoff float64, isGeographic bool) {
	type source struct {
		x, y   float64
		v      complex128
		sinLat float64
		cosLat float64
	}
	ny, nx := f.Shape()
	var sources []source
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			if f.Masked(i, j) {
				continue
			}
			re, im := f.Re.Get(i, j), f.Im.Get(i, j)
			if math.IsNaN(re) || math.IsNaN(im) {
				continue
			}
			s := source{x: x[j], y: y[i], v: complex(re, im)}
			if isGeographic {
				lat := s.y * math.Pi / 180
				s.sinLat = math.Sin(lat)
				s.cosLat = math.Cos(lat)
			}
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return
	}
	for k := range out.Data {
		if !out.Mask[k] {
			continue
		}
		var (
			qSin, qCos float64
			best       = math.Inf(1)
			bestVal    complex128
		)
		if isGeographic {
			lat := yq[k] * math.Pi / 180
			qSin = math.Sin(lat)
			qCos = math.Cos(lat)
		}
		for _, s := range sources {
			var d float64
			if isGeographic {
				dlon := (xq[k] - s.x) * math.Pi / 180
				// Spherical law of cosines, clamped for roundoff.
				c := qSin*s.sinLat + qCos*s.cosLat*math.Cos(dlon)
				d = earthRadiusKm * math.Acos(math.Min(1, math.Max(-1, c)))
			} else {
				d = math.Hypot(xq[k]-s.x, yq[k]-s.y) / 1000
			}
			if d < best {
				best = d
				bestVal = s.v
			}
		}
		if best <= cutoff {
			out.Data[k] = bestVal
			out.Mask[k] = false
		}
	}
}
