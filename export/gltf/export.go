// Package gltfexport serializes an imported scene to glTF 2.0: node
// hierarchy, meshes with per-loop attributes, and skins. Animation tracks
// stay in the scene model; they have no stable mapping onto glTF samplers
// for euler and flip tracks.
package gltfexport

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/transform"
)

// Export builds a document from imported roots.
func Export(roots []*scene.Node) (*gltf.Document, error) {
	c := &context{doc: gltf.NewDocument()}
	for _, root := range roots {
		idx, err := c.addNode(root)
		if err != nil {
			return nil, err
		}
		c.doc.Scenes[0].Nodes = append(c.doc.Scenes[0].Nodes, idx)
	}
	return c.doc, nil
}

// ExportBinary writes the roots as a binary glTF container.
func ExportBinary(w io.Writer, roots []*scene.Node) error {
	doc, err := Export(roots)
	if err != nil {
		return err
	}
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

type context struct {
	doc *gltf.Document

	// Joint mapping of the armature currently in scope, used by skinned
	// meshes below it.
	jointIndex map[string]uint16
	skin       *uint32
}

func (c *context) addNode(n *scene.Node) (uint32, error) {
	gnode := &gltf.Node{Name: n.Name}
	gnode.Translation, gnode.Rotation, gnode.Scale = trs(n.Transform)

	idx := uint32(len(c.doc.Nodes))
	c.doc.Nodes = append(c.doc.Nodes, gnode)

	if n.Armature != nil {
		savedJoints, savedSkin := c.jointIndex, c.skin
		defer func() { c.jointIndex, c.skin = savedJoints, savedSkin }()
		c.addArmature(n.Armature, gnode, idx)
	}

	if n.Mesh != nil {
		meshIdx, err := c.addMesh(n.Mesh)
		if err != nil {
			return 0, err
		}
		gnode.Mesh = gltf.Index(meshIdx)
		if len(n.Mesh.Groups) > 0 && c.skin != nil {
			gnode.Skin = c.skin
		}
	}

	for _, child := range n.Children {
		childIdx, err := c.addNode(child)
		if err != nil {
			return 0, err
		}
		gnode.Children = append(gnode.Children, childIdx)
	}
	return idx, nil
}

// addArmature emits one node per bone, parented along the bone hierarchy,
// plus the skin joint list for meshes in scope.
func (c *context) addArmature(arm *scene.Armature, owner *gltf.Node, ownerIdx uint32) {
	bones := arm.Bones()
	c.jointIndex = make(map[string]uint16, len(bones))

	boneNode := make(map[string]uint32, len(bones))
	joints := make([]uint32, 0, len(bones))
	for i, b := range bones {
		head := b.Head
		if b.Parent != nil {
			head = head.Sub(b.Parent.Head)
		}
		node := &gltf.Node{
			Name:        b.Name,
			Translation: [3]float32{float32(head[0]), float32(head[1]), float32(head[2])},
		}
		idx := uint32(len(c.doc.Nodes))
		c.doc.Nodes = append(c.doc.Nodes, node)
		boneNode[b.Name] = idx
		joints = append(joints, idx)
		c.jointIndex[b.Name] = uint16(i)

		if b.Parent != nil {
			p := c.doc.Nodes[boneNode[b.Parent.Name]]
			p.Children = append(p.Children, idx)
		} else {
			owner.Children = append(owner.Children, idx)
		}
	}

	c.doc.Skins = append(c.doc.Skins, &gltf.Skin{
		Name:     arm.Name,
		Skeleton: gltf.Index(ownerIdx),
		Joints:   joints,
	})
	c.skin = gltf.Index(uint32(len(c.doc.Skins) - 1))
}

// addMesh flattens the mesh per loop, since UVs and colors are per-loop
// while positions are per-vertex.
func (c *context) addMesh(m *scene.Mesh) (uint32, error) {
	loopCount := scene.LoopCount(m.Polygons)
	if loopCount == 0 {
		return 0, fmt.Errorf("mesh %q has no polygons", m.Name)
	}

	hasNormals := true
	for _, v := range m.Vertices {
		if !v.HasNormal {
			hasNormals = false
			break
		}
	}

	positions := make([][3]float32, 0, loopCount)
	normals := make([][3]float32, 0, loopCount)
	loopVertex := make([]int, 0, loopCount)
	for _, p := range m.Polygons {
		for _, vi := range p.Indices {
			v := m.Vertices[vi]
			positions = append(positions, [3]float32{
				float32(v.Position[0]), float32(v.Position[1]), float32(v.Position[2]),
			})
			if hasNormals {
				normals = append(normals, [3]float32{
					float32(v.Normal[0]), float32(v.Normal[1]), float32(v.Normal[2]),
				})
			}
			loopVertex = append(loopVertex, vi)
		}
	}

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(c.doc, positions),
	}
	if hasNormals {
		attributes["NORMAL"] = modeler.WriteNormal(c.doc, normals)
	}
	for iLayer, layer := range m.UVLayers {
		uvs := make([][2]float32, loopCount)
		for i, uv := range layer.Loops {
			uvs[i] = [2]float32{float32(uv[0]), float32(uv[1])}
		}
		attributes[fmt.Sprintf("TEXCOORD_%d", iLayer)] = modeler.WriteTextureCoord(c.doc, uvs)
	}
	if m.LoopColors != nil {
		colors := make([][4]uint8, loopCount)
		for i, col := range m.LoopColors {
			colors[i] = [4]uint8{
				uint8(clamp01(col[0]) * 255),
				uint8(clamp01(col[1]) * 255),
				uint8(clamp01(col[2]) * 255),
				uint8(clamp01(m.LoopAlpha[i]) * 255),
			}
		}
		attributes["COLOR_0"] = modeler.WriteColor(c.doc, colors)
	}
	if len(m.Groups) > 0 && c.jointIndex != nil {
		joints, weights := c.skinAttributes(m, loopVertex)
		attributes["JOINTS_0"] = modeler.WriteJoints(c.doc, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(c.doc, weights)
	}

	materialBase := uint32(len(c.doc.Materials))
	for _, mat := range m.Materials {
		c.doc.Materials = append(c.doc.Materials, &gltf.Material{
			Name:        mat.Name,
			DoubleSided: true,
		})
	}

	// One primitive per material slot; all primitives share the accessors.
	byMaterial := make(map[int][]uint32)
	loop := uint32(0)
	for _, p := range m.Polygons {
		for range p.Indices {
			byMaterial[p.Material] = append(byMaterial[p.Material], loop)
			loop++
		}
	}
	slots := make([]int, 0, len(byMaterial))
	for slot := range byMaterial {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	gltfMesh := &gltf.Mesh{Name: m.Name}
	for _, slot := range slots {
		prim := &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.doc, byMaterial[slot])),
			Attributes: attributes,
		}
		if slot >= 0 && slot < len(m.Materials) {
			prim.Material = gltf.Index(materialBase + uint32(slot))
		}
		gltfMesh.Primitives = append(gltfMesh.Primitives, prim)
	}

	c.doc.Meshes = append(c.doc.Meshes, gltfMesh)
	return uint32(len(c.doc.Meshes) - 1), nil
}

// skinAttributes picks the four strongest weights per vertex.
func (c *context) skinAttributes(m *scene.Mesh, loopVertex []int) ([][4]uint16, [][4]float32) {
	type influence struct {
		joint  uint16
		weight float64
	}
	perVertex := make([][]influence, len(m.Vertices))
	for _, g := range m.Groups {
		joint, ok := c.jointIndex[g.Name]
		if !ok {
			continue
		}
		g.Each(func(vertex int, weight float64) {
			if vertex >= 0 && vertex < len(perVertex) {
				perVertex[vertex] = append(perVertex[vertex], influence{joint, weight})
			}
		})
	}

	joints := make([][4]uint16, len(loopVertex))
	weights := make([][4]float32, len(loopVertex))
	for i, vi := range loopVertex {
		inf := perVertex[vi]
		sort.Slice(inf, func(a, b int) bool { return inf[a].weight > inf[b].weight })
		if len(inf) > 4 {
			inf = inf[:4]
		}
		total := 0.0
		for _, in := range inf {
			total += in.weight
		}
		for k, in := range inf {
			joints[i][k] = in.joint
			w := in.weight
			if total > 0 {
				w /= total
			}
			weights[i][k] = float32(w)
		}
	}
	return joints, weights
}

// trs converts an affine matrix to the translation/rotation/scale triple
// glTF nodes carry. The decomposition epsilon only gates the uniformity
// warning, which the importer already raised.
func trs(m mgl64.Mat4) ([3]float32, [4]float32, [3]float32) {
	s, rot, t, _ := transform.DecomposeSRT(m, 1e-6)
	q := transform.Mat3ToQuat(rot)
	return [3]float32{float32(t[0]), float32(t[1]), float32(t[2])},
		[4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)},
		[3]float32{float32(s), float32(s), float32(s)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
