package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// TrackKind says what quantity a keyframe track drives, which also fixes
// its sample value type.
type TrackKind int

const (
	TrackTranslation TrackKind = iota // Vec3Keys
	TrackRotation                     // QuatKeys
	TrackEuler                        // FloatKeys, one track per Axis
	TrackScale                        // FloatKeys
	TrackAlpha                        // FloatKeys
	TrackColor                        // Vec3Keys
	TrackVisibility                   // BoolKeys
	TrackUV                           // FloatKeys
	TrackMorph                        // FloatKeys, shape-key weight
	TrackFlip                         // FloatKeys, flip-book texture index
)

// Interpolation mirrors the source key-group interpolation modes.
type Interpolation int

const (
	InterpConstant Interpolation = iota
	InterpLinear
	InterpQuadratic
)

// CycleMode says what happens outside the keyed range.
type CycleMode int

const (
	CycleClamp CycleMode = iota
	CycleRepeat
)

// Target addresses what a track drives. Node is always set; Bone qualifies
// bone channels, Channel qualifies material/UV/morph channels.
type Target struct {
	Node    string
	Bone    string
	Channel string
}

type FloatSample struct {
	Time  float64
	Value float64
}

type Vec3Sample struct {
	Time  float64
	Value mgl64.Vec3
}

type QuatSample struct {
	Time  float64
	Value mgl64.Quat
}

type BoolSample struct {
	Time  float64
	Value bool
}

// KeyframeTrack is one animation curve. Exactly one of the key slices is
// populated, per Kind. Samples are kept in ascending time order.
type KeyframeTrack struct {
	Target        Target
	Kind          TrackKind
	Axis          int // TrackEuler only: 0=X 1=Y 2=Z
	Interpolation Interpolation
	Cycle         CycleMode
	StartTime     float64
	StopTime      float64

	FloatKeys []FloatSample
	Vec3Keys  []Vec3Sample
	QuatKeys  []QuatSample
	BoolKeys  []BoolSample
}

func (tr *KeyframeTrack) Len() int {
	return len(tr.FloatKeys) + len(tr.Vec3Keys) + len(tr.QuatKeys) + len(tr.BoolKeys)
}

func stepEase(t, b, c, d float32) float32 {
	return b
}

func (tr *KeyframeTrack) kernel() ease.TweenFunc {
	switch tr.Interpolation {
	case InterpQuadratic:
		return ease.InOutQuad
	case InterpConstant:
		return stepEase
	default:
		return ease.Linear
	}
}

// fraction maps t to (segment index, eased blend factor) over n keys with
// the given time accessor, honoring the cycle mode.
func (tr *KeyframeTrack) fraction(t float64, n int, timeAt func(int) float64) (int, float64) {
	first, last := timeAt(0), timeAt(n-1)
	span := last - first
	if span <= 0 {
		return 0, 0
	}
	switch tr.Cycle {
	case CycleRepeat:
		t = first + math.Mod(t-first, span)
		if t < first {
			t += span
		}
	default:
		if t <= first {
			return 0, 0
		}
		if t >= last {
			return n - 2, 1
		}
	}
	i := 0
	for i < n-2 && timeAt(i+1) <= t {
		i++
	}
	u := (t - timeAt(i)) / (timeAt(i+1) - timeAt(i))
	kern := tr.kernel()
	return i, float64(kern(float32(u), 0, 1, 1))
}

// SampleFloat evaluates a float-valued track at time t.
func (tr *KeyframeTrack) SampleFloat(t float64) float64 {
	keys := tr.FloatKeys
	switch len(keys) {
	case 0:
		return 0
	case 1:
		return keys[0].Value
	}
	i, f := tr.fraction(t, len(keys), func(i int) float64 { return keys[i].Time })
	return keys[i].Value + (keys[i+1].Value-keys[i].Value)*f
}

// SampleVec3 evaluates a vector-valued track at time t.
func (tr *KeyframeTrack) SampleVec3(t float64) mgl64.Vec3 {
	keys := tr.Vec3Keys
	switch len(keys) {
	case 0:
		return mgl64.Vec3{}
	case 1:
		return keys[0].Value
	}
	i, f := tr.fraction(t, len(keys), func(i int) float64 { return keys[i].Time })
	return keys[i].Value.Add(keys[i+1].Value.Sub(keys[i].Value).Mul(f))
}

// SampleQuat evaluates a rotation track at time t by spherical
// interpolation between the bracketing keys.
func (tr *KeyframeTrack) SampleQuat(t float64) mgl64.Quat {
	keys := tr.QuatKeys
	switch len(keys) {
	case 0:
		return mgl64.QuatIdent()
	case 1:
		return keys[0].Value
	}
	i, f := tr.fraction(t, len(keys), func(i int) float64 { return keys[i].Time })
	return mgl64.QuatSlerp(keys[i].Value, keys[i+1].Value, f)
}

// SampleBool evaluates a visibility track at time t (step interpolation).
func (tr *KeyframeTrack) SampleBool(t float64) bool {
	keys := tr.BoolKeys
	if len(keys) == 0 {
		return true
	}
	v := keys[0].Value
	for _, k := range keys {
		if k.Time > t {
			break
		}
		v = k.Value
	}
	return v
}

// Interpolator is the static default pose a degenerate (≤1 sample) track
// collapses into.
type Interpolator struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       float64
}

func DefaultInterpolator() Interpolator {
	return Interpolator{Rotation: mgl64.QuatIdent(), Scale: 1}
}

// Marker is a named point on the timeline, taken from text keys.
type Marker struct {
	Time float64
	Name string
}
