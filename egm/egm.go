// Package egm models the facial-morph payload: ordered sets of relative
// per-vertex displacements layered onto a base mesh as extra shape keys.
package egm

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Morph is one displacement set. Deltas are relative to the base mesh
// vertices, one entry per source vertex.
type Morph struct {
	Deltas []mgl64.Vec3
}

// Data is a decoded morph payload, split into the symmetric and asymmetric
// groups the format stores separately.
type Data struct {
	VertexCount int
	SymMorphs   []Morph
	AsymMorphs  []Morph
}

// ApplyScale multiplies every delta in place. The format stores deltas
// pre-divided by a file-level scale factor.
func (d *Data) ApplyScale(s float64) {
	for _, group := range [][]Morph{d.SymMorphs, d.AsymMorphs} {
		for _, m := range group {
			for i := range m.Deltas {
				m.Deltas[i] = m.Deltas[i].Mul(s)
			}
		}
	}
}

// Validate checks that every morph covers exactly the base vertex count.
func (d *Data) Validate() error {
	for i, m := range d.SymMorphs {
		if len(m.Deltas) != d.VertexCount {
			return errors.Errorf("sym morph %d has %d deltas, want %d", i, len(m.Deltas), d.VertexCount)
		}
	}
	for i, m := range d.AsymMorphs {
		if len(m.Deltas) != d.VertexCount {
			return errors.Errorf("asym morph %d has %d deltas, want %d", i, len(m.Deltas), d.VertexCount)
		}
	}
	return nil
}
