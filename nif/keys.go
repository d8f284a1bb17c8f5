package nif

import "github.com/go-gl/mathgl/mgl64"

// KeyType selects the interpolation of a key group, matching the on-disk
// enumeration.
type KeyType uint32

const (
	KeyLinear      KeyType = 1
	KeyQuadratic   KeyType = 2
	KeyTBC         KeyType = 3
	KeyXYZRotation KeyType = 4
	KeyConst       KeyType = 5
)

func (k KeyType) String() string {
	switch k {
	case KeyLinear:
		return "linear"
	case KeyQuadratic:
		return "quadratic"
	case KeyTBC:
		return "tbc"
	case KeyXYZRotation:
		return "xyz rotation"
	case KeyConst:
		return "constant"
	}
	return "unknown"
}

type FloatKey struct {
	Time     float64
	Value    float64
	Forward  float64
	Backward float64
}

type Vec3Key struct {
	Time     float64
	Value    mgl64.Vec3
	Forward  mgl64.Vec3
	Backward mgl64.Vec3
}

type QuatKey struct {
	Time  float64
	Value mgl64.Quat
}

type ByteKey struct {
	Time  float64
	Value byte
}

type TextKey struct {
	Time  float64
	Value string
}

type FloatKeyGroup struct {
	Interpolation KeyType
	Keys          []FloatKey
}

type Vec3KeyGroup struct {
	Interpolation KeyType
	Keys          []Vec3Key
}
