// Command otis-convert composes an ATLAS model, which stores a coarse
// global solution plus localized high-resolution patches, into plain
// OTIS binary files on the uniform 1/30 degree grid. The output can be
// cropped to a region so downstream tools only carry the domain they
// need.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"go.ngs.io/tidemodel/internal/adapter/store/otis"
	"go.ngs.io/tidemodel/internal/atlas"
	"go.ngs.io/tidemodel/internal/grid"
)

func main() {
	gridPath := flag.String("grid", "", "Path to the ATLAS grid file")
	elevPath := flag.String("elevation", "", "Path to the ATLAS elevation file (optional)")
	transPath := flag.String("transport", "", "Path to the ATLAS transport file (optional)")
	outDir := flag.String("out", ".", "Output directory for the OTIS files")
	boundsStr := flag.String("bounds", "", "Crop region as xmin,xmax,ymin,ymax (optional)")
	flag.Parse()

	if *gridPath == "" {
		log.Fatal("-grid is required")
	}

	var bounds *grid.Bounds
	if *boundsStr != "" {
		b, err := parseBounds(*boundsStr)
		if err != nil {
			log.Fatalf("Invalid bounds: %v", err)
		}
		bounds = b
	}

	ag, err := otis.ReadAtlasGrid(*gridPath)
	if err != nil {
		log.Fatalf("Reading ATLAS grid: %v", err)
	}
	log.Printf("Read ATLAS grid: %dx%d global cells, %d patches",
		len(ag.X), len(ag.Y), len(ag.Patches))

	patches := make(map[string]*atlas.Patch, len(ag.Patches))
	for name, p := range ag.Patches {
		patches[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Depth: p.Depth}
	}
	x, y, hz := atlas.CombineReal(ag.X, ag.Y, ag.Depth, patches, atlas.DefaultSpacing)
	_, _, wet := atlas.Mask(ag.X, ag.Y, ag.Mask, patches, atlas.DefaultSpacing)

	depth := hz.Values
	if bounds != nil {
		mx, my := x, y
		wet, x, y, err = grid.Crop(wet, mx, my, *bounds, 0, true)
		if err != nil {
			log.Fatalf("Cropping mask: %v", err)
		}
		depth, _, _, err = grid.Crop(depth, mx, my, *bounds, 0, true)
		if err != nil {
			log.Fatalf("Cropping bathymetry: %v", err)
		}
	}
	xlim, ylim := limits(x), limits(y)

	out := filepath.Join(*outDir, "grid_otis")
	if err := otis.WriteGrid(out, xlim, ylim, depth, wet, nil, ag.TimeStep); err != nil {
		log.Fatalf("Writing grid: %v", err)
	}
	log.Printf("Wrote %s (%dx%d cells)", out, len(x), len(y))

	if *elevPath != "" {
		names, fields, err := composeElevation(*elevPath, ag, bounds)
		if err != nil {
			log.Fatalf("Composing elevations: %v", err)
		}
		out := filepath.Join(*outDir, "h_otis")
		if err := otis.WriteElevation(out, fields, xlim, ylim, names); err != nil {
			log.Fatalf("Writing elevations: %v", err)
		}
		log.Printf("Wrote %s (%s)", out, strings.Join(names, ","))
	}

	if *transPath != "" {
		names, us, vs, err := composeTransport(*transPath, ag, bounds)
		if err != nil {
			log.Fatalf("Composing transports: %v", err)
		}
		out := filepath.Join(*outDir, "uv_otis")
		if err := otis.WriteTransport(out, us, vs, xlim, ylim, names); err != nil {
			log.Fatalf("Writing transports: %v", err)
		}
		log.Printf("Wrote %s (%s)", out, strings.Join(names, ","))
	}
}

func parseBounds(s string) (*grid.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, strconv.ErrSyntax
	}
	var b grid.Bounds
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		b[i] = v
	}
	return &b, nil
}

// limits converts cell-center axes back to the cell-edge limits stored in
// OTIS headers.
func limits(a grid.Axis) [2]float64 {
	half := a.Step() / 2
	return [2]float64{a.Min() - half, a.Max() + half}
}

func composeElevation(path string, ag *otis.AtlasGrid, bounds *grid.Bounds) ([]string, []*grid.ComplexField, error) {
	names, err := otis.ReadConstituentNames(path)
	if err != nil {
		return nil, nil, err
	}
	fields := make([]*grid.ComplexField, len(names))
	for i, c := range names {
		z0, local, err := otis.ReadAtlasElevation(path, i, c)
		if err != nil {
			return nil, nil, err
		}
		patches := make(map[string]*atlas.Patch, len(local))
		for name, p := range local {
			patches[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Z: p.Z}
		}
		_, _, hc := atlas.Combine(ag.X, ag.Y, z0, patches, atlas.DefaultSpacing)
		if fields[i], err = maybeCrop(hc, bounds); err != nil {
			return nil, nil, err
		}
	}
	return names, fields, nil
}

func composeTransport(path string, ag *otis.AtlasGrid, bounds *grid.Bounds) ([]string, []*grid.ComplexField, []*grid.ComplexField, error) {
	names, err := otis.ReadConstituentNames(path)
	if err != nil {
		return nil, nil, nil, err
	}
	us := make([]*grid.ComplexField, len(names))
	vs := make([]*grid.ComplexField, len(names))
	for i, c := range names {
		u0, v0, local, err := otis.ReadAtlasTransport(path, i, c)
		if err != nil {
			return nil, nil, nil, err
		}
		up := make(map[string]*atlas.Patch, len(local))
		vp := make(map[string]*atlas.Patch, len(local))
		for name, p := range local {
			up[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Z: p.U}
			vp[name] = &atlas.Patch{Lon0: p.LonLim[0], Lat0: p.LatLim[0], Z: p.V}
		}
		_, _, hu := atlas.Combine(ag.X, ag.Y, u0, up, atlas.DefaultSpacing)
		_, _, hv := atlas.Combine(ag.X, ag.Y, v0, vp, atlas.DefaultSpacing)
		if us[i], err = maybeCrop(hu, bounds); err != nil {
			return nil, nil, nil, err
		}
		if vs[i], err = maybeCrop(hv, bounds); err != nil {
			return nil, nil, nil, err
		}
	}
	return names, us, vs, nil
}

func maybeCrop(hc *grid.ComplexField, bounds *grid.Bounds) (*grid.ComplexField, error) {
	if bounds == nil {
		return hc, nil
	}
	x, y := atlas.Axes(atlas.DefaultSpacing)
	out, _, _, err := hc.Crop(x, y, *bounds, 0, true)
	return out, err
}
