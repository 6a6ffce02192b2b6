package crs

import (
	"math"
	"testing"
)

func TestGeographicIdentity(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsGeographic() {
		t.Fatal("default reference should be geographic")
	}
	lon := []float64{-70.5, 145.25}
	lat := []float64{42.1, -38.9}
	x, y, err := r.Forward(lon, lat)
	if err != nil {
		t.Fatal(err)
	}
	for i := range lon {
		if math.Abs(x[i]-lon[i]) > 1e-9 || math.Abs(y[i]-lat[i]) > 1e-9 {
			t.Errorf("point %d: forward (%v, %v), want (%v, %v)", i, x[i], y[i], lon[i], lat[i])
		}
	}
}

func TestPolarStereographicRoundTrip(t *testing.T) {
	r, err := New("+proj=stere +lat_0=-90 +lat_ts=-71 +lon_0=-70 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	if r.IsGeographic() {
		t.Fatal("stereographic reference should not be geographic")
	}
	lon := []float64{-70, 120}
	lat := []float64{-72, -80}
	x, y, err := r.Forward(lon, lat)
	if err != nil {
		t.Fatal(err)
	}
	// The first point sits on the central meridian, so it projects onto
	// the positive y axis between one and two grid-cell radii of the pole.
	if math.Abs(x[0]) > 1e-6 {
		t.Errorf("central meridian point has x = %v, want 0", x[0])
	}
	if y[0] < 1.9e6 || y[0] > 2.05e6 {
		t.Errorf("central meridian point has y = %v, want about 1.97e6", y[0])
	}
	blon, blat, err := r.Inverse(x, y)
	if err != nil {
		t.Fatal(err)
	}
	for i := range lon {
		if math.Abs(blon[i]-lon[i]) > 1e-6 || math.Abs(blat[i]-lat[i]) > 1e-6 {
			t.Errorf("point %d: round trip (%v, %v), want (%v, %v)", i, blon[i], blat[i], lon[i], lat[i])
		}
	}
}

func TestPolarStereographicNorthScaleFactor(t *testing.T) {
	r, err := New("+proj=stere +lat_0=90 +lon_0=0 +k_0=0.994 +datum=WGS84 +units=m +no_defs")
	if err != nil {
		t.Fatal(err)
	}
	lon := []float64{-45, 10}
	lat := []float64{70, 85}
	x, y, err := r.Forward(lon, lat)
	if err != nil {
		t.Fatal(err)
	}
	blon, blat, err := r.Inverse(x, y)
	if err != nil {
		t.Fatal(err)
	}
	for i := range lon {
		if math.Abs(blon[i]-lon[i]) > 1e-6 || math.Abs(blat[i]-lat[i]) > 1e-6 {
			t.Errorf("point %d: round trip (%v, %v), want (%v, %v)", i, blon[i], blat[i], lon[i], lat[i])
		}
	}
}

func TestObliqueStereographicRejected(t *testing.T) {
	if _, err := New("+proj=stere +lat_0=52.15 +lon_0=5.38 +datum=WGS84 +units=m +no_defs"); err == nil {
		t.Error("oblique stereographic should be rejected")
	}
}

func TestMismatchedSliceLengths(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Forward([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("mismatched slice lengths should error")
	}
}
