package importer

import (
	"strings"

	"github.com/nifkit/nifkit/nif"
)

// Grouping nodes merge their geometry children into one output mesh. The
// original exporters split big meshes across child shapes named after the
// container, so import re-joins them.
const maxGroupedShapes = 16

// groupedChildren returns the tri-shapes merged under b, or nil when b is
// not a grouping node. Children driven by a morph controller are left out
// when animation import is on; merging would lose their shape keys.
func (s *Session) groupedChildren(b nif.AVBlock) []*nif.TriShape {
	if !s.Options.CombineShapes {
		return nil
	}

	if coll, ok := b.(*nif.RootCollisionNode); ok {
		// A collision root groups every tri-shape below it, name or no name.
		var shapes []*nif.TriShape
		var walk func(n []nif.AVBlock)
		walk = func(children []nif.AVBlock) {
			for _, c := range children {
				if sh, ok := c.(*nif.TriShape); ok {
					shapes = append(shapes, sh)
					continue
				}
				walk(childBlocks(c))
			}
		}
		walk(coll.Children)
		return shapes
	}

	n, ok := b.(*nif.Node)
	if !ok {
		// LOD containers hold alternative representations, never merged.
		return nil
	}
	name := stripNonAccum(n.Name)
	if name == "" {
		return nil
	}

	var shapes []*nif.TriShape
	for _, c := range n.Children {
		sh, ok := c.(*nif.TriShape)
		if !ok || !strings.Contains(sh.Name, name) {
			continue
		}
		if s.Options.Animation && hasMorpher(sh) {
			continue
		}
		shapes = append(shapes, sh)
	}
	if len(shapes) == 0 || len(shapes) > maxGroupedShapes {
		return nil
	}
	return shapes
}

// stripNonAccum drops the accumulation-marker suffix from a container name.
// Files spell it both " NonAccum" and " nonaccum".
func stripNonAccum(name string) string {
	const suffix = " nonaccum"
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func hasMorpher(sh *nif.TriShape) bool {
	for _, c := range sh.Controllers {
		if _, ok := c.(*nif.GeomMorpherController); ok {
			return true
		}
	}
	return false
}
