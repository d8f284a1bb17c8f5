package nif

import "github.com/go-gl/mathgl/mgl64"

// Controller is implemented by every time controller block. Controllers are
// stored as an ordered slice on their owning object (the on-disk "next
// controller" chain, flattened).
type Controller interface {
	Ctrl() *ControllerBase
}

// ControllerBase carries the timing fields shared by all controllers.
type ControllerBase struct {
	Flags     uint16
	Frequency float64
	Phase     float64
	StartTime float64
	StopTime  float64
}

func (c *ControllerBase) Ctrl() *ControllerBase { return c }

// Active reports the controller-enable flag bit.
func (c *ControllerBase) Active() bool { return c.Flags&8 != 0 }

// ExtendBits returns the raw cycle-mode field. Interpretation (and the
// fallback for unrecognized values) is the importer's business.
func (c *ControllerBase) ExtendBits() uint16 { return c.Flags & 6 }

// KeyframeData is the shared payload of transform animation: either
// quaternion rotation keys or three independent Euler float groups
// (mutually exclusive, discriminated by RotationType), plus translation
// and uniform-scale groups.
type KeyframeData struct {
	RotationType   KeyType
	QuaternionKeys []QuatKey
	XYZRotations   [3]FloatKeyGroup
	Translations   Vec3KeyGroup
	Scales         FloatKeyGroup
}

// EulerRotations reports whether rotation is stored as three Euler tracks.
func (d *KeyframeData) EulerRotations() bool {
	return d.RotationType == KeyXYZRotation
}

// KeyframeController is the pre-10.x transform controller: keys hang
// directly off the controller.
type KeyframeController struct {
	ControllerBase
	Data *KeyframeData
}

// TransformController is the 10.x+ transform controller: keys live behind
// an interpolator which also carries the static default pose.
type TransformController struct {
	ControllerBase
	Interpolator *TransformInterpolator
}

// TransformInterpolator holds a default pose plus optional keyframe data.
// A nil Data with a valid pose is the static single-sample form.
type TransformInterpolator struct {
	Transform Transform
	Data      *KeyframeData
}

// FloatInterpolator holds a scalar default plus optional keys.
type FloatInterpolator struct {
	Value float64
	Data  *FloatData
}

type FloatData struct {
	Keys FloatKeyGroup
}

type Point3Interpolator struct {
	Value mgl64.Vec3
	Data  *PosData
}

type PosData struct {
	Keys Vec3KeyGroup
}

// Morph is one shape target: a full replacement vertex set plus optional
// per-target keys. When Keys is empty the owning controller's interpolator
// keys apply instead.
type Morph struct {
	FrameName string
	Keys      FloatKeyGroup
	Vertices  []mgl64.Vec3
}

type MorphData struct {
	RelativeTargets bool
	Morphs          []Morph
}

// GeomMorpherController drives shape-key animation. Interpolators parallels
// Data.Morphs on 10.x+ files and may be empty on older ones.
type GeomMorpherController struct {
	ControllerBase
	Data          *MorphData
	Interpolators []*FloatInterpolator
}

// FlipController swaps whole textures on a fixed time grid.
type FlipController struct {
	ControllerBase
	Sources []*SourceTexture
}

// AlphaController animates material alpha.
type AlphaController struct {
	ControllerBase
	Data         *FloatData
	Interpolator *FloatInterpolator
}

// MaterialColorTarget selects which material color a color controller
// drives.
type MaterialColorTarget uint16

const (
	TargetAmbient MaterialColorTarget = iota
	TargetDiffuse
	TargetSpecular
	TargetEmissive
)

type MaterialColorController struct {
	ControllerBase
	Target       MaterialColorTarget
	Data         *PosData
	Interpolator *Point3Interpolator
}

// UVController animates texture coordinate offset and scale through four
// float groups: U offset, V offset, U scale, V scale.
type UVController struct {
	ControllerBase
	Groups [4]FloatKeyGroup
}

// VisController toggles object visibility with byte keys (0 hidden,
// nonzero visible).
type VisController struct {
	ControllerBase
	Keys []ByteKey
}

// ControllerSequence is the keyframe-file form of animation: named blocks
// of keyframe data addressed to nodes by name, merged into the primary
// tree before import.
type ControllerSequence struct {
	Name   string
	Blocks []ControlledBlock
}

type ControlledBlock struct {
	TargetName   string
	Controller   Controller
	Interpolator *TransformInterpolator
	Priority     int
}
