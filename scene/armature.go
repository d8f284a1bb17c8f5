package scene

import "github.com/go-gl/mathgl/mgl64"

// Bone is one armature joint. Head/Tail/Roll fully determine its rest
// frame; Parent is nil for bones attached directly to the armature root.
type Bone struct {
	Name     string
	Head     mgl64.Vec3
	Tail     mgl64.Vec3
	Roll     float64
	Parent   *Bone
	Priority int
}

func (b *Bone) Length() float64 {
	return b.Tail.Sub(b.Head).Len()
}

// BindCorrection is the pair of matrices the animation pipeline needs for
// every channel composition on a bone, computed once at armature build
// time. ExtraInv must be a pure rotation: the translation-channel
// composition substitutes identity for the rotation and scale channels,
// which is only exact while ExtraInv carries no translation or scale.
type BindCorrection struct {
	Bind     mgl64.Mat4
	ExtraInv mgl64.Mat4
}

// Armature owns bones keyed by source name. Order preserves insertion so
// output is deterministic.
type Armature struct {
	Name        string
	bones       map[string]*Bone
	Order       []string
	Corrections map[string]BindCorrection

	// Poses holds static default poses for bones whose transform tracks
	// all collapsed to a single sample.
	Poses map[string]Interpolator
}

func NewArmature(name string) *Armature {
	return &Armature{
		Name:        name,
		bones:       make(map[string]*Bone),
		Corrections: make(map[string]BindCorrection),
		Poses:       make(map[string]Interpolator),
	}
}

func (a *Armature) Bone(name string) *Bone {
	return a.bones[name]
}

func (a *Armature) AddBone(b *Bone) {
	if _, ok := a.bones[b.Name]; !ok {
		a.Order = append(a.Order, b.Name)
	}
	a.bones[b.Name] = b
}

func (a *Armature) Len() int {
	return len(a.bones)
}

// Bones returns the bones in insertion order.
func (a *Armature) Bones() []*Bone {
	out := make([]*Bone, 0, len(a.Order))
	for _, name := range a.Order {
		out = append(out, a.bones[name])
	}
	return out
}
