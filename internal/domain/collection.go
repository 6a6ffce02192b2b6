package domain

import (
	"fmt"

	"go.ngs.io/tidemodel/internal/grid"
)

// Constituents is an ordered collection of complex constituent fields
// sharing one model grid. It is the in-memory form of a tide model after
// reading and composing its files.
type Constituents struct {
	X, Y  grid.Axis
	Depth *grid.Field // bathymetry at the output nodes' staggering

	names  []string
	fields map[string]*grid.ComplexField
}

// NewConstituents creates an empty collection on the given grid.
func NewConstituents(x, y grid.Axis, depth *grid.Field) *Constituents {
	return &Constituents{
		X:      x,
		Y:      y,
		Depth:  depth,
		fields: make(map[string]*grid.ComplexField),
	}
}

// Append adds a constituent field. Appending an existing name replaces
// its field and keeps the original position.
func (c *Constituents) Append(name string, f *grid.ComplexField) {
	if _, ok := c.fields[name]; !ok {
		c.names = append(c.names, name)
	}
	c.fields[name] = f
}

// Get returns the field of the named constituent.
func (c *Constituents) Get(name string) (*grid.ComplexField, error) {
	f, ok := c.fields[name]
	if !ok {
		return nil, fmt.Errorf("constituent %q not in model", name)
	}
	return f, nil
}

// Names returns the constituent IDs in append order.
func (c *Constituents) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of constituents.
func (c *Constituents) Len() int {
	return len(c.names)
}
