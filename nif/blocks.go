package nif

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/transform"
)

// Transform is the per-object local transform: uniform scale, rotation,
// translation.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Mat3
	Scale       float64
}

func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.Ident3(), Scale: 1}
}

func (t Transform) Matrix() mgl64.Mat4 {
	return transform.ComposeSRT(t.Scale, t.Rotation, t.Translation)
}

// ObjectNET carries the name, extra data and controller chain shared by
// every named block.
type ObjectNET struct {
	Name        string
	Extras      []Extra
	Controllers []Controller
}

// TextKeys returns the text-key extra attached to the object, if any.
func (o *ObjectNET) TextKeys() *TextKeyExtraData {
	for _, e := range o.Extras {
		if tk, ok := e.(*TextKeyExtraData); ok {
			return tk
		}
	}
	return nil
}

// AVObject is the base of everything that can sit in the scene tree.
type AVObject struct {
	ObjectNET
	Flags      uint16
	Transform  Transform
	Properties []Property
}

// AV gives generic code access to the embedded base.
func (a *AVObject) AV() *AVObject { return a }

// AVBlock is implemented by every block that can appear as a tree child:
// *Node, *RootCollisionNode, *LODNode, *TriShape, *Camera.
type AVBlock interface {
	AV() *AVObject
}

// Node is a plain container with child blocks.
type Node struct {
	AVObject
	Children       []AVBlock
	BoundingVolume *BoundingVolume
}

// RootCollisionNode marks its whole subtree as collision geometry.
type RootCollisionNode struct {
	Node
}

// LODNode switches between child representations by distance. Its children
// are alternatives, never merged.
type LODNode struct {
	Node
	Ranges [][2]float64
}

type Camera struct {
	AVObject
	FrustumLeft, FrustumRight float64
	FrustumTop, FrustumBottom float64
	FrustumNear, FrustumFar   float64
}

// TriShape is a geometry leaf. Data may be nil in malformed files; the
// importer treats that as a fatal format error for the owning branch.
type TriShape struct {
	AVObject
	Data *TriShapeData
	Skin *SkinInstance
}

// TriShapeData holds the raw geometry payload. UV sets are per-vertex
// ("sticky"): one coordinate per vertex per set, reconstructed into
// per-loop data on import.
type TriShapeData struct {
	Vertices     []mgl64.Vec3
	Normals      []mgl64.Vec3
	VertexColors []mgl64.Vec4
	UVSets       [][]mgl64.Vec2
	Triangles    [][3]int
}

// SkinInstance binds a shape's vertices to bones of a skeleton.
type SkinInstance struct {
	SkeletonRoot *Node
	Bones        []*Node
	Data         *SkinData
}

type SkinData struct {
	OverallTransform Transform
	BoneList         []SkinBone
}

// SkinBone pairs the bind-space transform of one bone with its vertex
// weights. Entries parallel SkinInstance.Bones.
type SkinBone struct {
	Transform Transform
	Weights   []SkinWeight
}

type SkinWeight struct {
	Vertex int
	Weight float64
}

// Property is implemented by render-property blocks on an AVObject.
type Property interface {
	PropertyName() string
}

type MaterialProperty struct {
	ObjectNET
	Ambient    mgl64.Vec3
	Diffuse    mgl64.Vec3
	Specular   mgl64.Vec3
	Emissive   mgl64.Vec3
	Glossiness float64
	Alpha      float64
}

func (*MaterialProperty) PropertyName() string { return "NiMaterialProperty" }

// TexturingProperty exposes only what the importer needs: the base texture
// slot for flip-book resolution.
type TexturingProperty struct {
	ObjectNET
	BaseTexture *SourceTexture
}

func (*TexturingProperty) PropertyName() string { return "NiTexturingProperty" }

type SourceTexture struct {
	ObjectNET
	FileName string
}

// Extra is implemented by extra-data blocks attached to an object.
type Extra interface {
	ExtraName() string
}

type TextKeyExtraData struct {
	Keys []TextKey
}

func (*TextKeyExtraData) ExtraName() string { return "NiTextKeyExtraData" }

// BSBound is an axis-aligned bound extra: center plus half-extents.
type BSBound struct {
	Center mgl64.Vec3
	Dims   mgl64.Vec3
}

func (*BSBound) ExtraName() string { return "BSBound" }

// StringExtraData carries free-form per-object tags, e.g. bone priorities
// ("Prn=..." or priority integers on bone nodes).
type StringExtraData struct {
	Name  string
	Value string
}

func (*StringExtraData) ExtraName() string { return "NiStringExtraData" }

// BoundingVolumeKind discriminates the collision bound variants.
type BoundingVolumeKind int

const (
	BoundSphere BoundingVolumeKind = iota
	BoundBox
	BoundCapsule
)

// BoundingVolume is the tagged union of the collision bound shapes. Only
// the fields of the active kind are meaningful.
type BoundingVolume struct {
	Kind   BoundingVolumeKind
	Center mgl64.Vec3
	Radius float64    // sphere, capsule
	Axes   mgl64.Mat3 // box
	Extent mgl64.Vec3 // box half-extents
	Origin mgl64.Vec3 // capsule segment start
	Axis   mgl64.Vec3 // capsule direction
	Length float64    // capsule segment length
}
