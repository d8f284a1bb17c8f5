package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// eulerXYZToMat3 applies the X rotation first, then Y, then Z.
func eulerXYZToMat3(x, y, z float64) mgl64.Mat3 {
	return mgl64.Rotate3DZ(z).Mul3(mgl64.Rotate3DY(y)).Mul3(mgl64.Rotate3DX(x))
}

// CorrectionLocal and CorrectionGlobal map the source engine's bone-axis
// convention (bone points along X) onto the destination convention (bone
// points along Y). Both are applied during armature import and undone by the
// animation pipeline through the per-bone correction matrices.
var (
	CorrectionLocal  = eulerXYZToMat3(math.Pi/2, 0, math.Pi/2)
	CorrectionGlobal = eulerXYZToMat3(-math.Pi/2, -math.Pi/2, 0)
)

// QuatCross composes two rotations so that c is applied first, then b:
//
//	QuatCross(b, c).Mat4() == b.Mat4() * c.Mat4()
//
// The argument order is reversed from the left-to-right mathematical
// reading on purpose; every keyframe composition call site relies on this
// convention, and mixing it up mis-orients skeletal animation.
func QuatCross(b, c mgl64.Quat) mgl64.Quat {
	return b.Mul(c)
}

// result in radians
func QuatToEuler(q mgl64.Quat) (e mgl64.Vec3) {
	sinrCosp := 2 * (q.W*q.X() + q.Y()*q.Z())
	cosrCosp := 1 - 2*(q.X()*q.X()+q.Y()*q.Y())

	e[0] = math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y() - q.Z()*q.X())
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z() + q.X()*q.Y())
	cosyCosp := 1 - 2*(q.Y()*q.Y()+q.Z()*q.Z())
	e[2] = math.Atan2(sinyCosp, cosyCosp)

	return e
}

// input in radians, applied X first, then Y, then Z
func EulerToQuat(v mgl64.Vec3) (q mgl64.Quat) {
	sx, cx := math.Sincos(v[0] * 0.5)
	sy, cy := math.Sincos(v[1] * 0.5)
	sz, cz := math.Sincos(v[2] * 0.5)

	q.V[0] = sx*cy*cz - cx*sy*sz
	q.V[1] = cx*sy*cz + sx*cy*sz
	q.V[2] = cx*cy*sz - sx*sy*cz
	q.W = cx*cy*cz + sx*sy*sz

	return q.Normalize()
}

func Mat3ToQuat(m mgl64.Mat3) mgl64.Quat {
	return mgl64.Mat4ToQuat(m.Mat4())
}

func DegToRad(d float64) float64 {
	return d * math.Pi / 180.0
}

func RadToDeg(r float64) float64 {
	return r * 180.0 / math.Pi
}
