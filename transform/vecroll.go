package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	thetaThresholdNegY      = 1.0e-9
	thetaThresholdNegYClose = 1.0e-5
)

// VecRollToMat3 builds an orthonormal frame whose Y axis points along vec,
// twisted about that axis by roll. Port of Blender's armature.c
// vec_roll_to_mat3_normalized; the three-way branch keeps the construction
// stable near the -Y singularity.
func VecRollToMat3(vec mgl64.Vec3, roll float64) mgl64.Mat3 {
	nor := vec.Normalize()

	b := mgl64.Ident3()
	theta := 1.0 + nor[1]

	if theta > thetaThresholdNegYClose ||
		((nor[0] != 0 || nor[2] != 0) && theta > thetaThresholdNegY) {

		b.Set(1, 0, -nor[0])
		b.Set(0, 1, nor[0])
		b.Set(1, 1, nor[1])
		b.Set(2, 1, nor[2])
		b.Set(1, 2, -nor[2])

		if theta > thetaThresholdNegYClose {
			// Far enough from -Y: general case.
			b.Set(0, 0, 1-nor[0]*nor[0]/theta)
			b.Set(2, 2, 1-nor[2]*nor[2]/theta)
			b.Set(0, 2, -nor[0]*nor[2]/theta)
			b.Set(2, 0, -nor[0]*nor[2]/theta)
		} else {
			// Very close to -Y but with a usable X or Z component.
			theta = nor[0]*nor[0] + nor[2]*nor[2]
			b.Set(0, 0, (nor[0]+nor[2])*(nor[0]-nor[2])/-theta)
			b.Set(2, 2, -b.At(0, 0))
			b.Set(0, 2, 2.0*nor[0]*nor[2]/theta)
			b.Set(2, 0, b.At(0, 2))
		}
	} else {
		// Exactly -Y: simple symmetry by the Z axis.
		b = mgl64.Ident3()
		b.Set(0, 0, -1.0)
		b.Set(1, 1, -1.0)
	}

	r := mgl64.HomogRotate3D(roll, nor).Mat3()
	return r.Mul3(b)
}

// Mat3ToVecRoll recovers the direction and roll that VecRollToMat3 would
// need to reproduce mat: the Y column is the direction, and roll is measured
// against the zero-roll frame of that direction.
func Mat3ToVecRoll(mat mgl64.Mat3) (mgl64.Vec3, float64) {
	vec := mat.Col(1)
	vecmat := VecRollToMat3(vec, 0)
	rollmat := vecmat.Inv().Mul3(mat)
	roll := math.Atan2(rollmat.At(0, 2), rollmat.At(2, 2))
	return vec, roll
}
