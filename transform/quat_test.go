package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestQuatCrossOrder(t *testing.T) {
	b := mgl64.QuatRotate(0.9, mgl64.Vec3{0, 0, 1})
	c := mgl64.QuatRotate(-0.4, mgl64.Vec3{1, 0, 0})

	got := QuatCross(b, c).Mat4()
	want := b.Mat4().Mul4(c.Mat4())
	if !mat4Near(got, want, 1e-9) {
		t.Errorf("QuatCross(b, c) must equal b*c:\ngot  %v\nwant %v", got, want)
	}
}

func TestEulerQuatRoundTrip(t *testing.T) {
	cases := []mgl64.Vec3{
		{0, 0, 0},
		{0.5, 0, 0},
		{0, -1.2, 0},
		{0, 0, 2.1},
		{0.3, 0.6, -0.9},
	}
	for _, e := range cases {
		got := QuatToEuler(EulerToQuat(e))
		for i := 0; i < 3; i++ {
			if math.Abs(got[i]-e[i]) > 1e-9 {
				t.Errorf("euler %v round-tripped to %v", e, got)
				break
			}
		}
	}
}

func TestEulerToQuatMatchesMatrix(t *testing.T) {
	e := mgl64.Vec3{0.4, -0.7, 1.3}
	got := EulerToQuat(e).Mat4().Mat3()
	want := eulerXYZToMat3(e[0], e[1], e[2])
	if !mat3Near(got, want, 1e-9) {
		t.Errorf("EulerToQuat disagrees with XYZ matrix composition:\ngot  %v\nwant %v", got, want)
	}
}

func TestCorrectionMatricesAreRotations(t *testing.T) {
	checkOrthonormal(t, "local", CorrectionLocal)
	checkOrthonormal(t, "global", CorrectionGlobal)

	// CorrectionLocal sends +X to +Y: a bone that points along the source X
	// axis must point along the destination Y axis.
	v := CorrectionLocal.Mul3x1(mgl64.Vec3{1, 0, 0})
	if math.Abs(v[0]) > 1e-9 || math.Abs(v[1]-1) > 1e-9 || math.Abs(v[2]) > 1e-9 {
		t.Errorf("CorrectionLocal * X = %v, want (0,1,0)", v)
	}
}
