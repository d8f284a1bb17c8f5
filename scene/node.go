// Package scene is the in-memory output model of an import run: node tree,
// armatures, meshes and keyframe tracks.
package scene

import "github.com/go-gl/mathgl/mgl64"

// NodeKind is assigned once during classification and matched exhaustively
// afterwards.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindMesh
	KindBone
	KindArmatureRoot
	KindGrouping
	KindEmpty
	KindCollision
	KindBound
	KindCamera
)

func (k NodeKind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindBone:
		return "bone"
	case KindArmatureRoot:
		return "armature root"
	case KindGrouping:
		return "grouping"
	case KindEmpty:
		return "empty"
	case KindCollision:
		return "collision"
	case KindBound:
		return "bound"
	case KindCamera:
		return "camera"
	}
	return "other"
}

// Node is one output object. Exactly one of Mesh/Armature may be set,
// matching Kind.
type Node struct {
	Name      string
	Kind      NodeKind
	Transform mgl64.Mat4
	Children  []*Node

	Mesh     *Mesh
	Armature *Armature
	Tracks   []*KeyframeTrack

	// Pose is the static default set when every transform track collapsed
	// to a single sample.
	Pose *Interpolator

	// Markers are timeline labels from text keys on the source node.
	Markers []Marker
}

func NewNode(name string, kind NodeKind) *Node {
	return &Node{Name: name, Kind: kind, Transform: mgl64.Ident4()}
}

func (n *Node) AddChild(c *Node) {
	n.Children = append(n.Children, c)
}

// Walk visits n and every descendant depth-first.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}
