package importer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
)

// Collision-bound visualization. This path is best effort for one engine
// variant: anything inconsistent yields no node instead of an error.

func (s *Session) importBoundingVolume(bv *nif.BoundingVolume, owner string) *scene.Node {
	var mesh *scene.Mesh
	switch bv.Kind {
	case nif.BoundSphere:
		if bv.Radius <= 0 {
			s.warnf("bound on %q has non-positive radius", owner)
			return nil
		}
		mesh = sphereMesh(bv.Center, bv.Radius)
	case nif.BoundBox:
		mesh = boxMesh(bv.Center, bv.Axes, bv.Extent)
	case nif.BoundCapsule:
		if bv.Radius <= 0 || bv.Axis.Len() == 0 {
			s.warnf("bound on %q has a degenerate capsule", owner)
			return nil
		}
		mesh = capsuleMesh(bv.Origin, bv.Axis.Normalize(), bv.Length, bv.Radius)
	default:
		s.warnf("bound on %q has unknown kind %d", owner, bv.Kind)
		return nil
	}

	n := scene.NewNode(s.uniqueName(owner+" bound"), scene.KindBound)
	mesh.Name = n.Name
	n.Mesh = mesh
	return n
}

func (s *Session) boundBoxNode(b *nif.BSBound) *scene.Node {
	n := scene.NewNode(s.uniqueName("BSBound"), scene.KindBound)
	mesh := boxMesh(b.Center, mgl64.Ident3(), b.Dims)
	mesh.Name = n.Name
	n.Mesh = mesh
	return n
}

func boxMesh(center mgl64.Vec3, axes mgl64.Mat3, extent mgl64.Vec3) *scene.Mesh {
	m := &scene.Mesh{}
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				local := mgl64.Vec3{sx * extent[0], sy * extent[1], sz * extent[2]}
				m.Vertices = append(m.Vertices, scene.Vertex{
					Position: center.Add(axes.Mul3x1(local)),
				})
			}
		}
	}
	// Vertex order above: index bits are (x<<2 | y<<1 | z).
	quads := [6][4]int{
		{0, 1, 3, 2}, // -x
		{4, 6, 7, 5}, // +x
		{0, 4, 5, 1}, // -y
		{2, 3, 7, 6}, // +y
		{0, 2, 6, 4}, // -z
		{1, 5, 7, 3}, // +z
	}
	for _, q := range quads {
		m.Polygons = append(m.Polygons,
			scene.Polygon{Indices: []int{q[0], q[1], q[2]}, Material: -1},
			scene.Polygon{Indices: []int{q[0], q[2], q[3]}, Material: -1},
		)
	}
	return m
}

// sphereMesh builds a coarse UV sphere, enough to eyeball the bound.
func sphereMesh(center mgl64.Vec3, radius float64) *scene.Mesh {
	const rings, segments = 6, 8
	m := &scene.Mesh{}

	for r := 0; r <= rings; r++ {
		theta := math.Pi * float64(r) / rings
		for g := 0; g < segments; g++ {
			phi := 2 * math.Pi * float64(g) / segments
			p := mgl64.Vec3{
				radius * math.Sin(theta) * math.Cos(phi),
				radius * math.Sin(theta) * math.Sin(phi),
				radius * math.Cos(theta),
			}
			m.Vertices = append(m.Vertices, scene.Vertex{Position: center.Add(p)})
		}
	}
	idx := func(r, g int) int { return r*segments + g%segments }
	for r := 0; r < rings; r++ {
		for g := 0; g < segments; g++ {
			a, b, c, d := idx(r, g), idx(r, g+1), idx(r+1, g+1), idx(r+1, g)
			m.Polygons = append(m.Polygons,
				scene.Polygon{Indices: []int{a, b, c}, Material: -1},
				scene.Polygon{Indices: []int{a, c, d}, Material: -1},
			)
		}
	}
	return m
}

// capsuleMesh approximates a capsule with spheres at the segment ends and
// a box along the axis.
func capsuleMesh(origin, axis mgl64.Vec3, length, radius float64) *scene.Mesh {
	end := origin.Add(axis.Mul(length))
	m := sphereMesh(origin, radius)
	appendMesh(m, sphereMesh(end, radius))

	mid := origin.Add(axis.Mul(length / 2))
	frame := transformFrame(axis)
	appendMesh(m, boxMesh(mid, frame, mgl64.Vec3{radius, radius, length / 2}))
	return m
}

// transformFrame builds an orthonormal basis whose Z column is axis.
func transformFrame(axis mgl64.Vec3) mgl64.Mat3 {
	up := mgl64.Vec3{0, 0, 1}
	if math.Abs(axis.Dot(up)) > 0.99 {
		up = mgl64.Vec3{1, 0, 0}
	}
	x := up.Cross(axis).Normalize()
	y := axis.Cross(x)
	return mgl64.Mat3FromCols(x, y, axis)
}

func appendMesh(dst, src *scene.Mesh) {
	base := len(dst.Vertices)
	dst.Vertices = append(dst.Vertices, src.Vertices...)
	for _, p := range src.Polygons {
		idx := make([]int, len(p.Indices))
		for i, v := range p.Indices {
			idx[i] = v + base
		}
		dst.Polygons = append(dst.Polygons, scene.Polygon{Indices: idx, Material: p.Material})
	}
}
