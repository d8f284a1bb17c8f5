package importer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
)

// Vertex dedup quantization. Two source vertices merge iff their quantized
// position and normal match exactly.
const (
	posQuantum  = 1000.0
	normQuantum = 100.0
)

type vertKey struct {
	px, py, pz int64
	nx, ny, nz int64
}

func quantizeVert(p, n mgl64.Vec3) vertKey {
	return vertKey{
		px: int64(p[0] * posQuantum), py: int64(p[1] * posQuantum), pz: int64(p[2] * posQuantum),
		nx: int64(n[0] * normQuantum), ny: int64(n[1] * normQuantum), nz: int64(n[2] * normQuantum),
	}
}

// ImportMesh converts one tri-shape. With appendTo set the shape is merged
// into that mesh (grouped import), which requires baking the shape's own
// transform; passing appendTo without applyTransform is a caller bug.
func (s *Session) ImportMesh(sh *nif.TriShape, appendTo *scene.Mesh, applyTransform bool) (*scene.Mesh, error) {
	invariant(appendTo == nil || applyTransform, "grouped mesh %q must bake its transform", sh.Name)

	data := sh.Data
	if data == nil || len(data.Vertices) == 0 {
		return nil, formatErrorf("mesh %q has no geometry payload", sh.Name)
	}

	mesh := appendTo
	if mesh == nil {
		mesh = &scene.Mesh{Name: s.uniqueName(orName(sh.Name, "Mesh"))}
	}

	mat := mgl64.Ident4()
	if applyTransform {
		mat = sh.Transform.Matrix()
	}
	rot := mat.Mat3()

	vertexMap := s.dedupVertices(data, mesh, mat, rot)

	slot := -1
	if m, ok := s.shapeMaterial(sh); ok {
		slot = mesh.AddMaterial(m)
	}

	s.buildPolygons(sh.Name, data, mesh, vertexMap, slot)

	if err := s.importSkin(sh, mesh, vertexMap); err != nil {
		return nil, err
	}
	if err := s.importMorphs(sh, mesh, vertexMap, rot); err != nil {
		return nil, err
	}
	s.importEgmMorphs(sh, mesh, vertexMap, rot, appendTo == nil)

	s.Log.Printf("mesh %q: %d vertices, %d polygons (%d dropped)",
		mesh.Name, len(mesh.Vertices), len(mesh.Polygons), mesh.DroppedPolygons)
	return mesh, nil
}

// dedupVertices appends the shape's vertices to the mesh and returns the
// source-to-output index map. Dedup only merges within one shape; grouped
// shapes keep their own vertex ranges.
func (s *Session) dedupVertices(data *nif.TriShapeData, mesh *scene.Mesh, mat mgl64.Mat4, rot mgl64.Mat3) []int {
	hasNormals := len(data.Normals) == len(data.Vertices)

	vertexMap := make([]int, len(data.Vertices))
	seen := make(map[vertKey]int, len(data.Vertices))

	for i, p := range data.Vertices {
		pos := mat.Mul4x1(p.Vec4(1)).Vec3()
		var norm mgl64.Vec3
		if hasNormals {
			norm = rot.Mul3x1(data.Normals[i])
			if l := norm.Len(); l > 0 {
				norm = norm.Mul(1 / l)
			}
		}

		if s.Options.CombineVertices {
			key := quantizeVert(pos, norm)
			if idx, ok := seen[key]; ok {
				vertexMap[i] = idx
				continue
			}
			seen[key] = len(mesh.Vertices)
		}
		vertexMap[i] = len(mesh.Vertices)
		mesh.Vertices = append(mesh.Vertices, scene.Vertex{
			Position:  pos,
			Normal:    norm,
			HasNormal: hasNormals,
		})
	}
	return vertexMap
}

// buildPolygons remaps triangles through vertexMap and attaches the
// per-loop layers. Degenerate triangles and exact duplicate tuples are
// dropped, counted only for diagnostics.
func (s *Session) buildPolygons(name string, data *nif.TriShapeData, mesh *scene.Mesh, vertexMap []int, materialSlot int) {
	hasColors := len(data.VertexColors) == len(data.Vertices)
	s.ensureLoopLayers(mesh, len(data.UVSets), hasColors)

	polySeen := make(map[[3]int]bool, len(data.Triangles))
	for _, tri := range data.Triangles {
		var remapped [3]int
		ok := true
		for k, src := range tri {
			if src < 0 || src >= len(vertexMap) {
				s.warnf("mesh %q: triangle references vertex %d of %d", name, src, len(vertexMap))
				ok = false
				break
			}
			remapped[k] = vertexMap[src]
		}
		if !ok {
			mesh.DroppedPolygons++
			continue
		}
		if remapped[0] == remapped[1] || remapped[1] == remapped[2] || remapped[0] == remapped[2] {
			mesh.DroppedPolygons++
			continue
		}
		if polySeen[remapped] {
			mesh.DroppedPolygons++
			continue
		}
		polySeen[remapped] = true

		mesh.Polygons = append(mesh.Polygons, scene.Polygon{
			Indices:  []int{remapped[0], remapped[1], remapped[2]},
			Material: materialSlot,
		})

		// Sticky UV: loop coordinates come from the per-vertex source table
		// through the pre-dedup indices, so seam splits survive merging.
		for li := range mesh.UVLayers {
			for _, src := range tri {
				var uv mgl64.Vec2
				if li < len(data.UVSets) && src < len(data.UVSets[li]) {
					raw := data.UVSets[li][src]
					uv = mgl64.Vec2{raw[0], 1 - raw[1]}
				}
				mesh.UVLayers[li].Loops = append(mesh.UVLayers[li].Loops, uv)
			}
		}
		if mesh.LoopColors != nil {
			for _, src := range tri {
				c := mgl64.Vec4{1, 1, 1, 1}
				if hasColors {
					c = data.VertexColors[src]
				}
				mesh.LoopColors = append(mesh.LoopColors, c.Vec3())
				mesh.LoopAlpha = append(mesh.LoopAlpha, c[3])
			}
		}
	}
}

// ensureLoopLayers grows the mesh's per-loop layers to cover this shape,
// backfilling neutral values for loops already emitted by earlier grouped
// shapes.
func (s *Session) ensureLoopLayers(mesh *scene.Mesh, uvSets int, hasColors bool) {
	existing := scene.LoopCount(mesh.Polygons)
	for len(mesh.UVLayers) < uvSets {
		layer := scene.UVLayer{Name: fmt.Sprintf("UV%d", len(mesh.UVLayers))}
		layer.Loops = make([]mgl64.Vec2, existing)
		mesh.UVLayers = append(mesh.UVLayers, layer)
	}
	if hasColors && mesh.LoopColors == nil {
		mesh.LoopColors = make([]mgl64.Vec3, existing)
		mesh.LoopAlpha = make([]float64, existing)
		for i := 0; i < existing; i++ {
			mesh.LoopColors[i] = mgl64.Vec3{1, 1, 1}
			mesh.LoopAlpha[i] = 1
		}
	}
}

// importSkin adds named vertex groups with replace semantics.
func (s *Session) importSkin(sh *nif.TriShape, mesh *scene.Mesh, vertexMap []int) error {
	skin := sh.Skin
	if skin == nil {
		return nil
	}
	if skin.Data == nil {
		return formatErrorf("skin on %q has no skin data", sh.Name)
	}
	if len(skin.Data.BoneList) != len(skin.Bones) {
		return formatErrorf("skin on %q binds %d bones but carries %d weight sets",
			sh.Name, len(skin.Bones), len(skin.Data.BoneList))
	}
	for i, bone := range skin.Bones {
		if bone == nil {
			continue
		}
		g := mesh.Group(BoneNameForEditor(bone.Name))
		for _, w := range skin.Data.BoneList[i].Weights {
			if w.Vertex < 0 || w.Vertex >= len(vertexMap) {
				return formatErrorf("skin on %q weights vertex %d of %d", sh.Name, w.Vertex, len(vertexMap))
			}
			g.Set(vertexMap[w.Vertex], w.Weight)
		}
	}
	return nil
}

// importMorphs turns morph controller frames into shape keys. Frame zero
// is the base; later frames store base plus the per-vertex delta, carried
// through the dedup map.
func (s *Session) importMorphs(sh *nif.TriShape, mesh *scene.Mesh, vertexMap []int, rot mgl64.Mat3) error {
	var ctrl *nif.GeomMorpherController
	for _, c := range sh.Controllers {
		if mc, ok := c.(*nif.GeomMorpherController); ok {
			ctrl = mc
			break
		}
	}
	if ctrl == nil {
		return nil
	}
	md := ctrl.Data
	if md == nil || len(md.Morphs) == 0 {
		return formatErrorf("morph controller on %q has no morph data", sh.Name)
	}
	base := md.Morphs[0]
	if len(base.Vertices) != len(vertexMap) {
		return formatErrorf("morph base on %q covers %d of %d vertices", sh.Name, len(base.Vertices), len(vertexMap))
	}

	for j := 1; j < len(md.Morphs); j++ {
		morph := md.Morphs[j]
		if len(morph.Vertices) != len(vertexMap) {
			return formatErrorf("morph %d on %q covers %d of %d vertices", j, sh.Name, len(morph.Vertices), len(vertexMap))
		}

		positions := basePositions(mesh)
		for i, out := range vertexMap {
			delta := morph.Vertices[i]
			if !md.RelativeTargets {
				delta = delta.Sub(base.Vertices[i])
			}
			positions[out] = mesh.Vertices[out].Position.Add(rot.Mul3x1(delta))
		}

		key := scene.ShapeKey{
			Name:      orName(morph.FrameName, fmt.Sprintf("Morph %d", j)),
			Positions: positions,
		}
		if s.Options.Animation {
			key.Track = s.morphTrack(ctrl, j, mesh.Name, key.Name)
		}
		mesh.ShapeKeys = append(mesh.ShapeKeys, key)
	}
	return nil
}

// morphTrack builds the weight track for morph j: the morph's own keys
// when it has any, the controller interpolator's keys otherwise.
func (s *Session) morphTrack(ctrl *nif.GeomMorpherController, j int, meshName, keyName string) *scene.KeyframeTrack {
	group := ctrl.Data.Morphs[j].Keys
	if len(group.Keys) == 0 && j < len(ctrl.Interpolators) {
		if ip := ctrl.Interpolators[j]; ip != nil && ip.Data != nil {
			group = ip.Data.Keys
		}
	}
	if len(group.Keys) == 0 {
		return nil
	}
	tr := &scene.KeyframeTrack{
		Target:        scene.Target{Node: meshName, Channel: keyName},
		Kind:          scene.TrackMorph,
		Interpolation: s.keyInterpolation(group.Interpolation, meshName),
		Cycle:         s.cycleMode(&ctrl.ControllerBase, meshName),
		StartTime:     ctrl.StartTime,
		StopTime:      ctrl.StopTime,
	}
	for _, k := range group.Keys {
		tr.FloatKeys = append(tr.FloatKeys, scene.FloatSample{Time: k.Time, Value: k.Value})
	}
	return tr
}

// importEgmMorphs layers facial morph deltas onto the mesh as extra shape
// keys when the payload matches the vertex count. Only standalone meshes
// take them; a grouped mesh has no stable source indexing.
func (s *Session) importEgmMorphs(sh *nif.TriShape, mesh *scene.Mesh, vertexMap []int, rot mgl64.Mat3, standalone bool) {
	if s.Egm == nil || !standalone || s.Egm.VertexCount != len(vertexMap) {
		return
	}

	emit := func(prefix string, deltas []mgl64.Vec3, idx int) {
		positions := basePositions(mesh)
		for i, out := range vertexMap {
			positions[out] = mesh.Vertices[out].Position.Add(rot.Mul3x1(deltas[i]))
		}
		mesh.ShapeKeys = append(mesh.ShapeKeys, scene.ShapeKey{
			Name:      fmt.Sprintf("%s %d", prefix, idx),
			Positions: positions,
		})
	}
	for i, m := range s.Egm.SymMorphs {
		emit("EGM SYM", m.Deltas, i)
	}
	for i, m := range s.Egm.AsymMorphs {
		emit("EGM ASYM", m.Deltas, i)
	}
}

func basePositions(mesh *scene.Mesh) []mgl64.Vec3 {
	positions := make([]mgl64.Vec3, len(mesh.Vertices))
	for i := range mesh.Vertices {
		positions[i] = mesh.Vertices[i].Position
	}
	return positions
}

// shapeMaterial converts the shape's material property, memoized per
// source block so grouped shapes sharing one property share a slot.
func (s *Session) shapeMaterial(sh *nif.TriShape) (scene.Material, bool) {
	var mp *nif.MaterialProperty
	var tex string
	for _, p := range sh.Properties {
		switch v := p.(type) {
		case *nif.MaterialProperty:
			mp = v
		case *nif.TexturingProperty:
			if v.BaseTexture != nil {
				tex = v.BaseTexture.FileName
			}
		}
	}
	if mp == nil {
		return scene.Material{}, false
	}
	if m, ok := s.materials[mp]; ok {
		if tex != "" && m.Texture == "" {
			m.Texture = tex
		}
		return m, true
	}
	m := scene.Material{
		Name:       orName(mp.Name, "Material"),
		Ambient:    mp.Ambient,
		Diffuse:    mp.Diffuse,
		Specular:   mp.Specular,
		Emissive:   mp.Emissive,
		Glossiness: mp.Glossiness,
		Alpha:      mp.Alpha,
		Texture:    tex,
	}
	s.materials[mp] = m
	return m, true
}
