// Package transform implements the scale/rotation/translation algebra used
// by the scene-graph, armature and animation importers.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DecomposeSRT splits an affine matrix into a uniform scale, a proper
// rotation and a translation. Mirrored matrices come back with a negative
// scale so the rotation keeps determinant +1.
//
// The format only supports uniform scale. When the three axis factors differ
// by more than epsilon, uniform reports false and the caller is expected to
// emit a warning; decomposition proceeds with the X axis factor.
func DecomposeSRT(m mgl64.Mat4, epsilon float64) (scale float64, rot mgl64.Mat3, trans mgl64.Vec3, uniform bool) {
	rs := m.Mat3()

	sx := rs.Col(0).Len()
	sy := rs.Col(1).Len()
	sz := rs.Col(2).Len()

	uniform = math.Abs(sx-sy) < epsilon && math.Abs(sy-sz) < epsilon

	scale = sx
	if rs.Det() < 0 {
		scale = -scale
	}

	if scale != 0 {
		rot = rs.Mul(1.0 / scale)
	} else {
		rot = mgl64.Ident3()
	}

	trans = m.Col(3).Vec3()
	return scale, rot, trans, uniform
}

// ComposeSRT is the inverse of DecomposeSRT.
func ComposeSRT(scale float64, rot mgl64.Mat3, trans mgl64.Vec3) mgl64.Mat4 {
	rs := rot.Mul(scale)
	return mgl64.Mat4{
		rs.At(0, 0), rs.At(1, 0), rs.At(2, 0), 0,
		rs.At(0, 1), rs.At(1, 1), rs.At(2, 1), 0,
		rs.At(0, 2), rs.At(1, 2), rs.At(2, 2), 0,
		trans[0], trans[1], trans[2], 1,
	}
}
