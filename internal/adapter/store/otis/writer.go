package otis

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ctessum/sparse"

	"go.ngs.io/tidemodel/internal/grid"
)

// writer wraps a buffered output stream with sticky-error big-endian
// encoding.
type writer struct {
	w   *bufio.Writer
	err error
}

func (w *writer) i4(v int32) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.BigEndian, v)
	}
}

func (w *writer) f4(v float64) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.BigEndian, float32(v))
	}
}

func (w *writer) f4s(v []float32) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.BigEndian, v)
	}
}

func (w *writer) bytes(b []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(b)
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// WriteGrid writes an OTIS grid file with the given cell-edge limits,
// bathymetry, land/water mask, open boundary nodes and time step.
func WriteGrid(path string, xlim, ylim [2]float64, hz, mz *sparse.DenseArray, boundary [][2]int32, dt float64) error {
	ny, nx := hz.Shape[0], hz.Shape[1]
	if mz.Shape[0] != ny || mz.Shape[1] != nx {
		return fmt.Errorf("mask shape [%d, %d] does not match bathymetry [%d, %d]",
			mz.Shape[0], mz.Shape[1], ny, nx)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating grid file: %w", err)
	}
	defer f.Close()

	w := &writer{w: bufio.NewWriter(f)}
	w.i4(32)
	w.i4(int32(nx))
	w.i4(int32(ny))
	w.f4(ylim[0])
	w.f4(ylim[1])
	w.f4(xlim[0])
	w.f4(xlim[1])
	w.f4(dt)
	w.i4(int32(len(boundary)))
	w.i4(32)
	if len(boundary) == 0 {
		w.i4(4)
		w.i4(0)
		w.i4(4)
	} else {
		reclen := int32(8 * len(boundary))
		w.i4(reclen)
		for _, b := range boundary {
			w.i4(b[0])
			w.i4(b[1])
		}
		w.i4(reclen)
	}
	reclen := int32(4 * nx * ny)
	w.i4(reclen)
	row := make([]float32, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			row[j] = float32(hz.Get(i, j))
		}
		w.f4s(row)
	}
	w.i4(reclen)
	w.i4(reclen)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			w.i4(int32(mz.Get(i, j)))
		}
	}
	w.i4(reclen)
	if err := w.flush(); err != nil {
		return fmt.Errorf("writing grid file %s: %w", path, err)
	}
	return nil
}

// WriteElevation writes an OTIS elevation file holding one complex field
// per constituent.
func WriteElevation(path string, h []*grid.ComplexField, xlim, ylim [2]float64, constituents []string) error {
	if len(h) != len(constituents) {
		return fmt.Errorf("%d fields for %d constituents", len(h), len(constituents))
	}
	if len(h) == 0 {
		return fmt.Errorf("no constituents to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating elevation file: %w", err)
	}
	defer f.Close()

	ny, nx := h[0].Shape()
	w := &writer{w: bufio.NewWriter(f)}
	writeModelHeader(w, nx, ny, xlim, ylim, constituents)
	reclen := int32(8 * nx * ny)
	row := make([]float32, 2*nx)
	for _, field := range h {
		w.i4(reclen)
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				v := field.At(i, j)
				row[2*j] = float32(real(v))
				row[2*j+1] = float32(imag(v))
			}
			w.f4s(row)
		}
		w.i4(reclen)
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("writing elevation file %s: %w", path, err)
	}
	return nil
}

// WriteTransport writes an OTIS transport file holding one pair of
// complex fields per constituent.
func WriteTransport(path string, u, v []*grid.ComplexField, xlim, ylim [2]float64, constituents []string) error {
	if len(u) != len(constituents) || len(v) != len(constituents) {
		return fmt.Errorf("%d/%d fields for %d constituents", len(u), len(v), len(constituents))
	}
	if len(u) == 0 {
		return fmt.Errorf("no constituents to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating transport file: %w", err)
	}
	defer f.Close()

	ny, nx := u[0].Shape()
	w := &writer{w: bufio.NewWriter(f)}
	writeModelHeader(w, nx, ny, xlim, ylim, constituents)
	reclen := int32(16 * nx * ny)
	row := make([]float32, 4*nx)
	for ic := range constituents {
		w.i4(reclen)
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				uv := u[ic].At(i, j)
				vv := v[ic].At(i, j)
				row[4*j] = float32(real(uv))
				row[4*j+1] = float32(imag(uv))
				row[4*j+2] = float32(real(vv))
				row[4*j+3] = float32(imag(vv))
			}
			w.f4s(row)
		}
		w.i4(reclen)
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("writing transport file %s: %w", path, err)
	}
	return nil
}

// writeModelHeader writes the shared elevation/transport header record:
// dimensions, limits and 4-character constituent IDs.
func writeModelHeader(w *writer, nx, ny int, xlim, ylim [2]float64, constituents []string) {
	ll := int32(4 * (7 + len(constituents)))
	w.i4(ll)
	w.i4(int32(nx))
	w.i4(int32(ny))
	w.i4(int32(len(constituents)))
	w.f4(ylim[0])
	w.f4(ylim[1])
	w.f4(xlim[0])
	w.f4(xlim[1])
	for _, c := range constituents {
		name := c
		for len(name) < 4 {
			name += " "
		}
		w.bytes([]byte(name[:4]))
	}
	w.i4(ll)
}
