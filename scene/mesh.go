package scene

import "github.com/go-gl/mathgl/mgl64"

// Vertex is one deduplicated output vertex.
type Vertex struct {
	Position  mgl64.Vec3
	Normal    mgl64.Vec3
	HasNormal bool
}

// Polygon is an ordered vertex-index tuple with its material slot. Almost
// always a triangle, but the model allows arbitrary n-gons.
type Polygon struct {
	Indices  []int
	Material int
}

// LoopCount is the total number of loops across all polygons, in polygon
// order. Per-loop layers (UVs, colors) are flattened to this length.
func LoopCount(polys []Polygon) int {
	n := 0
	for _, p := range polys {
		n += len(p.Indices)
	}
	return n
}

// UVLayer stores one per-loop texture coordinate channel.
type UVLayer struct {
	Name  string
	Loops []mgl64.Vec2
}

// VertexGroup is a named skin-weight set. Weights use replace semantics:
// one entry per vertex, last write wins.
type VertexGroup struct {
	Name    string
	weights map[int]float64
}

func NewVertexGroup(name string) *VertexGroup {
	return &VertexGroup{Name: name, weights: make(map[int]float64)}
}

func (g *VertexGroup) Set(vertex int, weight float64) {
	g.weights[vertex] = weight
}

func (g *VertexGroup) Weight(vertex int) (float64, bool) {
	w, ok := g.weights[vertex]
	return w, ok
}

func (g *VertexGroup) Len() int { return len(g.weights) }

// Each calls f for every (vertex, weight) pair in unspecified order.
func (g *VertexGroup) Each(f func(vertex int, weight float64)) {
	for v, w := range g.weights {
		f(v, w)
	}
}

// ShapeKey is a named morph target: absolute per-vertex positions parallel
// to the mesh vertex list, with an optional weight track.
type ShapeKey struct {
	Name      string
	Positions []mgl64.Vec3
	Track     *KeyframeTrack
}

// Material is the subset of surface state the importer carries through.
type Material struct {
	Name       string
	Ambient    mgl64.Vec3
	Diffuse    mgl64.Vec3
	Specular   mgl64.Vec3
	Emissive   mgl64.Vec3
	Glossiness float64
	Alpha      float64
	Texture    string
}

// Mesh is a deduplicated output mesh. LoopColors/LoopAlpha, when present,
// parallel the flattened loop order of Polygons.
type Mesh struct {
	Name       string
	Vertices   []Vertex
	Polygons   []Polygon
	Materials  []Material
	UVLayers   []UVLayer
	LoopColors []mgl64.Vec3
	LoopAlpha  []float64
	Groups     []*VertexGroup
	ShapeKeys  []ShapeKey

	// DroppedPolygons counts source polygons discarded as exact duplicates
	// after vertex remapping. Diagnostics only.
	DroppedPolygons int
}

// Group finds or creates the named vertex group.
func (m *Mesh) Group(name string) *VertexGroup {
	for _, g := range m.Groups {
		if g.Name == name {
			return g
		}
	}
	g := NewVertexGroup(name)
	m.Groups = append(m.Groups, g)
	return g
}

// AddMaterial appends mat and returns its slot index, reusing an existing
// slot when an identical material is already present.
func (m *Mesh) AddMaterial(mat Material) int {
	for i := range m.Materials {
		if m.Materials[i] == mat {
			return i
		}
	}
	m.Materials = append(m.Materials, mat)
	return len(m.Materials) - 1
}
