package importer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/config"
	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
)

func testSession() *Session {
	return NewSession(config.DefaultOptions(), 0x14000005, nil)
}

func triShape(name string, data *nif.TriShapeData) *nif.TriShape {
	sh := &nif.TriShape{Data: data}
	sh.Name = name
	sh.Transform = nif.IdentityTransform()
	return sh
}

func quadData() *nif.TriShapeData {
	return &nif.TriShapeData{
		Vertices: []mgl64.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Normals: []mgl64.Vec3{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

func TestImportMeshSharedVertices(t *testing.T) {
	// Four triangles sharing four distinct (pos, normal) vertices: dedup
	// keeps all four vertices and all four polygons.
	data := &nif.TriShapeData{
		Vertices: []mgl64.Vec3{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		},
		Normals: []mgl64.Vec3{
			{0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {0, 0, -1},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}},
	}
	s := testSession()
	mesh, err := s.ImportMesh(triShape("shared", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("vertex count %d, want 4", len(mesh.Vertices))
	}
	if len(mesh.Polygons) != 4 {
		t.Errorf("polygon count %d, want 4", len(mesh.Polygons))
	}
	for _, p := range mesh.Polygons {
		if len(p.Indices) != 3 {
			t.Errorf("polygon with %d indices", len(p.Indices))
		}
	}
}

func TestImportMeshDedupMerges(t *testing.T) {
	data := quadData()
	// Vertex 4 duplicates vertex 0 exactly.
	data.Vertices = append(data.Vertices, mgl64.Vec3{0, 0, 0})
	data.Normals = append(data.Normals, mgl64.Vec3{0, 0, 1})
	data.Triangles = [][3]int{{0, 1, 2}, {4, 2, 3}}

	s := testSession()
	mesh, err := s.ImportMesh(triShape("dup", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("vertex count %d, want 4 (vertex 4 merges into 0)", len(mesh.Vertices))
	}
	if got := mesh.Polygons[1].Indices[0]; got != 0 {
		t.Errorf("remapped index %d, want 0", got)
	}
}

func TestImportMeshNoCombine(t *testing.T) {
	data := quadData()
	data.Vertices = append(data.Vertices, mgl64.Vec3{0, 0, 0})
	data.Normals = append(data.Normals, mgl64.Vec3{0, 0, 1})

	s := testSession()
	s.Options.CombineVertices = false
	mesh, err := s.ImportMesh(triShape("raw", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 5 {
		t.Errorf("vertex count %d, want 5 without combining", len(mesh.Vertices))
	}
}

func TestImportMeshDropsDuplicatePolygons(t *testing.T) {
	data := quadData()
	data.Triangles = [][3]int{{0, 1, 2}, {0, 1, 2}, {0, 2, 3}, {1, 1, 2}}

	s := testSession()
	mesh, err := s.ImportMesh(triShape("dupface", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Polygons) != 2 {
		t.Errorf("polygon count %d, want 2 (duplicate and degenerate dropped)", len(mesh.Polygons))
	}
	if mesh.DroppedPolygons != 2 {
		t.Errorf("dropped count %d, want 2", mesh.DroppedPolygons)
	}
	if len(mesh.Polygons) > len(data.Triangles) {
		t.Error("output polygons exceed source polygons")
	}
}

func TestImportMeshDedupIdempotent(t *testing.T) {
	data := quadData()
	data.Vertices = append(data.Vertices, mgl64.Vec3{0, 0, 0})
	data.Normals = append(data.Normals, mgl64.Vec3{0, 0, 1})
	data.Triangles = [][3]int{{0, 1, 2}, {4, 2, 3}}

	s := testSession()
	first, err := s.ImportMesh(triShape("pass1", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}

	// Feed the deduplicated output back through: nothing may change.
	again := &nif.TriShapeData{}
	for _, v := range first.Vertices {
		again.Vertices = append(again.Vertices, v.Position)
		again.Normals = append(again.Normals, v.Normal)
	}
	for _, p := range first.Polygons {
		again.Triangles = append(again.Triangles, [3]int{p.Indices[0], p.Indices[1], p.Indices[2]})
	}
	second, err := s.ImportMesh(triShape("pass2", again), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Vertices) != len(first.Vertices) {
		t.Errorf("vertex count changed on re-dedup: %d -> %d", len(first.Vertices), len(second.Vertices))
	}
	if len(second.Polygons) != len(first.Polygons) {
		t.Errorf("polygon count changed on re-dedup: %d -> %d", len(first.Polygons), len(second.Polygons))
	}
}

func TestImportMeshStickyUV(t *testing.T) {
	// Vertices 0 and 3 share position and normal but carry different UVs:
	// dedup merges them while each loop keeps its own source coordinate.
	data := &nif.TriShapeData{
		Vertices: []mgl64.Vec3{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 0},
		},
		Normals: []mgl64.Vec3{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		},
		UVSets: [][]mgl64.Vec2{{
			{0, 0}, {0.5, 0}, {0, 0.5}, {0.9, 0.9},
		}},
		Triangles: [][3]int{{0, 1, 2}, {1, 2, 3}},
	}
	s := testSession()
	mesh, err := s.ImportMesh(triShape("seam", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 3 {
		t.Fatalf("vertex count %d, want 3", len(mesh.Vertices))
	}
	if len(mesh.UVLayers) != 1 || len(mesh.UVLayers[0].Loops) != 6 {
		t.Fatalf("expected one UV layer with 6 loops")
	}
	// Third loop of the second triangle came from source vertex 3.
	got := mesh.UVLayers[0].Loops[5]
	want := mgl64.Vec2{0.9, 1 - 0.9}
	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("seam loop UV %v, want %v", got, want)
	}
	// First loop of the first triangle came from source vertex 0.
	got = mesh.UVLayers[0].Loops[0]
	want = mgl64.Vec2{0, 1}
	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("base loop UV %v, want %v", got, want)
	}
}

func TestImportMeshVertexColors(t *testing.T) {
	data := quadData()
	data.VertexColors = []mgl64.Vec4{
		{1, 0, 0, 1}, {0, 1, 0, 0.5}, {0, 0, 1, 1}, {1, 1, 1, 0},
	}
	s := testSession()
	mesh, err := s.ImportMesh(triShape("colors", data), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.LoopColors) != 6 || len(mesh.LoopAlpha) != 6 {
		t.Fatalf("loop color/alpha lengths %d/%d, want 6/6", len(mesh.LoopColors), len(mesh.LoopAlpha))
	}
	if mesh.LoopColors[1] != (mgl64.Vec3{0, 1, 0}) || mesh.LoopAlpha[1] != 0.5 {
		t.Errorf("loop 1 color %v alpha %v", mesh.LoopColors[1], mesh.LoopAlpha[1])
	}
}

func TestImportMeshMissingPayload(t *testing.T) {
	s := testSession()
	_, err := s.ImportMesh(triShape("empty", nil), nil, false)
	if err == nil || !IsFormatError(err) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestImportMeshSkinWeights(t *testing.T) {
	bone := &nif.Node{}
	bone.Name = "Bip01 L Hand"

	data := quadData()
	sh := triShape("skinned", data)
	sh.Skin = &nif.SkinInstance{
		SkeletonRoot: &nif.Node{},
		Bones:        []*nif.Node{bone},
		Data: &nif.SkinData{
			BoneList: []nif.SkinBone{{
				Weights: []nif.SkinWeight{
					{Vertex: 0, Weight: 0.25},
					{Vertex: 0, Weight: 0.75}, // replaces
					{Vertex: 2, Weight: 1},
				},
			}},
		},
	}
	s := testSession()
	mesh, err := s.ImportMesh(sh, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Groups) != 1 || mesh.Groups[0].Name != "Bip01 Hand.L" {
		t.Fatalf("groups %v", mesh.Groups)
	}
	if w, ok := mesh.Groups[0].Weight(0); !ok || w != 0.75 {
		t.Errorf("weight(0) = %v,%v, want 0.75", w, ok)
	}
	if mesh.Groups[0].Len() != 2 {
		t.Errorf("group size %d, want 2", mesh.Groups[0].Len())
	}
}

func TestImportMeshMorphTargets(t *testing.T) {
	data := quadData()
	sh := triShape("morphed", data)

	baseVerts := append([]mgl64.Vec3{}, data.Vertices...)
	target := append([]mgl64.Vec3{}, data.Vertices...)
	target[1] = target[1].Add(mgl64.Vec3{0, 0, 2})

	ctrl := &nif.GeomMorpherController{
		ControllerBase: nif.ControllerBase{Flags: 8 | 4, StopTime: 1},
		Data: &nif.MorphData{
			Morphs: []nif.Morph{
				{FrameName: "Base", Vertices: baseVerts},
				{
					FrameName: "Smile",
					Vertices:  target,
					Keys: nif.FloatKeyGroup{
						Interpolation: nif.KeyLinear,
						Keys: []nif.FloatKey{
							{Time: 0, Value: 0},
							{Time: 1, Value: 1},
						},
					},
				},
			},
		},
	}
	sh.Controllers = append(sh.Controllers, ctrl)

	s := testSession()
	mesh, err := s.ImportMesh(sh, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.ShapeKeys) != 1 {
		t.Fatalf("shape key count %d, want 1", len(mesh.ShapeKeys))
	}
	key := mesh.ShapeKeys[0]
	if key.Name != "Smile" {
		t.Errorf("shape key name %q", key.Name)
	}
	want := mesh.Vertices[1].Position.Add(mgl64.Vec3{0, 0, 2})
	if key.Positions[1].Sub(want).Len() > 1e-9 {
		t.Errorf("morphed position %v, want %v", key.Positions[1], want)
	}
	if key.Positions[0] != mesh.Vertices[0].Position {
		t.Errorf("unmorphed vertex moved: %v", key.Positions[0])
	}
	if key.Track == nil || key.Track.Kind != scene.TrackMorph || len(key.Track.FloatKeys) != 2 {
		t.Errorf("unexpected morph track %+v", key.Track)
	}
}

func TestImportMeshGroupedAppend(t *testing.T) {
	s := testSession()

	first := triShape("part0", quadData())
	mesh, err := s.ImportMesh(first, nil, true)
	if err != nil {
		t.Fatal(err)
	}

	second := triShape("part1", quadData())
	second.Transform.Translation = mgl64.Vec3{10, 0, 0}
	mesh, err = s.ImportMesh(second, mesh, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(mesh.Vertices) != 8 {
		t.Errorf("merged vertex count %d, want 8", len(mesh.Vertices))
	}
	if len(mesh.Polygons) != 4 {
		t.Errorf("merged polygon count %d, want 4", len(mesh.Polygons))
	}
	// Second shape's transform must be baked in.
	if p := mesh.Vertices[4].Position; p[0] < 9.9 {
		t.Errorf("appended vertex not transformed: %v", p)
	}
	// Appending without baking the transform is a caller bug.
	func() {
		defer func() {
			if _, ok := recover().(*InvariantError); !ok {
				t.Error("expected invariant panic for append without transform")
			}
		}()
		s.ImportMesh(triShape("bad", quadData()), mesh, false)
	}()
}
