package importer

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/transform"
)

const activeClamp = 8 | extendClamp

func transData(keys ...nif.Vec3Key) *nif.KeyframeData {
	return &nif.KeyframeData{
		Translations: nif.Vec3KeyGroup{Interpolation: nif.KeyLinear, Keys: keys},
	}
}

func TestSingleKeyCollapsesToStaticPose(t *testing.T) {
	node := plainNode("mover")
	node.Controllers = append(node.Controllers, &nif.TransformController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp},
		Interpolator: &nif.TransformInterpolator{
			Transform: nif.IdentityTransform(),
			Data:      transData(nif.Vec3Key{Time: 0, Value: mgl64.Vec3{1, 2, 3}}),
		},
	})
	root := plainNode("root", node)

	s := testSession() // version with static interpolator support
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	mover := out[0].Children[0]
	if len(mover.Tracks) != 0 {
		t.Errorf("expected no keyed tracks, got %d", len(mover.Tracks))
	}
	if mover.Pose == nil {
		t.Fatal("no static pose emitted")
	}
	if mover.Pose.Translation != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("static translation %v, want (1,2,3)", mover.Pose.Translation)
	}
}

func TestSingleKeyStaysKeyedOnOldVersions(t *testing.T) {
	node := plainNode("mover")
	node.Controllers = append(node.Controllers, &nif.KeyframeController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp},
		Data:           transData(nif.Vec3Key{Time: 0, Value: mgl64.Vec3{1, 2, 3}}),
	})
	root := plainNode("root", node)

	s := testSession()
	s.Version = 0x04000002
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	mover := out[0].Children[0]
	if len(mover.Tracks) != 1 || len(mover.Tracks[0].Vec3Keys) != 1 {
		t.Fatalf("expected one single-key track, got %v", mover.Tracks)
	}
}

func TestLinearTranslationTrack(t *testing.T) {
	node := plainNode("mover")
	node.Controllers = append(node.Controllers, &nif.KeyframeController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp, StopTime: 2},
		Data: transData(
			nif.Vec3Key{Time: 0, Value: mgl64.Vec3{0, 0, 0}},
			nif.Vec3Key{Time: 1, Value: mgl64.Vec3{1, 0, 0}},
			nif.Vec3Key{Time: 2, Value: mgl64.Vec3{2, 0, 0}},
		),
	})
	root := plainNode("root", node)

	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	tracks := out[0].Children[0].Tracks
	if len(tracks) != 1 {
		t.Fatalf("track count %d, want 1", len(tracks))
	}
	tr := tracks[0]
	if tr.Kind != scene.TrackTranslation || tr.Interpolation != scene.InterpLinear {
		t.Errorf("kind %v interpolation %v", tr.Kind, tr.Interpolation)
	}
	if len(tr.Vec3Keys) != 3 {
		t.Fatalf("sample count %d, want 3", len(tr.Vec3Keys))
	}
	for i := 1; i < len(tr.Vec3Keys); i++ {
		if tr.Vec3Keys[i].Time <= tr.Vec3Keys[i-1].Time {
			t.Error("samples not in ascending time order")
		}
	}
}

func TestEulerRotationTracks(t *testing.T) {
	data := &nif.KeyframeData{
		RotationType: nif.KeyXYZRotation,
	}
	data.XYZRotations[2] = nif.FloatKeyGroup{
		Interpolation: nif.KeyLinear,
		Keys: []nif.FloatKey{
			{Time: 0, Value: 0},
			{Time: 1, Value: 90},
		},
	}
	node := plainNode("spinner")
	node.Controllers = append(node.Controllers, &nif.KeyframeController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp, StopTime: 1},
		Data:           data,
	})
	root := plainNode("root", node)

	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	tracks := out[0].Children[0].Tracks
	if len(tracks) != 1 {
		t.Fatalf("track count %d, want 1 (only Z axis keyed)", len(tracks))
	}
	tr := tracks[0]
	if tr.Kind != scene.TrackEuler || tr.Axis != 2 {
		t.Errorf("kind %v axis %d, want euler Z", tr.Kind, tr.Axis)
	}
	if got := tr.FloatKeys[1].Value; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("euler value %v, want pi/2 (degrees converted)", got)
	}
}

func TestSingleEulerKeyCollapsesToStaticPose(t *testing.T) {
	data := &nif.KeyframeData{RotationType: nif.KeyXYZRotation}
	data.XYZRotations[2] = nif.FloatKeyGroup{
		Interpolation: nif.KeyLinear,
		Keys:          []nif.FloatKey{{Time: 0, Value: 90}},
	}
	node := plainNode("turner")
	node.Controllers = append(node.Controllers, &nif.TransformController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp},
		Interpolator: &nif.TransformInterpolator{
			Transform: nif.IdentityTransform(),
			Data:      data,
		},
	})
	root := plainNode("root", node)

	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	turner := out[0].Children[0]
	if len(turner.Tracks) != 0 {
		t.Errorf("expected no keyed tracks, got %d", len(turner.Tracks))
	}
	if turner.Pose == nil {
		t.Fatal("no static pose emitted")
	}
	want := transform.EulerToQuat(mgl64.Vec3{0, 0, math.Pi / 2})
	got := turner.Pose.Rotation
	if math.Abs(got.W-want.W) > 1e-9 || got.V.Sub(want.V).Len() > 1e-9 {
		t.Errorf("static rotation %v, want 90 degree Z turn %v", got, want)
	}
}

func TestQuaternionComposition(t *testing.T) {
	// A bone whose bind pose is a 90 degree Z rotation: the emitted
	// rotation must compose channel, bind and inverse-extra exactly as the
	// corrected matrices do.
	bindRot := mgl64.Rotate3DZ(math.Pi / 2)
	bone := plainNode("Joint")
	bone.Transform.Rotation = bindRot

	channel := mgl64.QuatRotate(0.4, mgl64.Vec3{1, 0, 0})
	bone.Controllers = append(bone.Controllers, &nif.KeyframeController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp, StopTime: 1},
		Data: &nif.KeyframeData{
			QuaternionKeys: []nif.QuatKey{
				{Time: 0, Value: mgl64.QuatIdent()},
				{Time: 1, Value: channel},
			},
		},
	})

	sh := triShape("skin", quadData())
	root := plainNode("Scene Root", bone, sh)
	sh.Skin = &nif.SkinInstance{
		SkeletonRoot: root,
		Bones:        []*nif.Node{bone},
		Data:         &nif.SkinData{BoneList: []nif.SkinBone{{}}},
	}

	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	var rotTrack *scene.KeyframeTrack
	for _, tr := range out[0].Tracks {
		if tr.Kind == scene.TrackRotation && tr.Target.Bone == "Joint" {
			rotTrack = tr
		}
	}
	if rotTrack == nil {
		t.Fatal("no bone rotation track")
	}

	corr := out[0].Armature.Corrections["Joint"]
	_, rb, _, _ := transform.DecomposeSRT(corr.Bind, 0.005)
	_, rx, _, _ := transform.DecomposeSRT(corr.ExtraInv, 0.005)
	want := rb.Mul3(channel.Mat4().Mat3()).Mul3(rx)
	got := rotTrack.QuatKeys[1].Value.Mat4().Mat3()
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-9 {
			t.Fatalf("composed rotation mismatch:\ngot  %v\nwant %v", got, want)
		}
	}
}

func TestExtendFlagMapping(t *testing.T) {
	s := testSession()
	cases := []struct {
		flags uint16
		want  scene.CycleMode
		warns bool
	}{
		{8 | 4, scene.CycleClamp, false},
		{8 | 0, scene.CycleRepeat, false},
		{8 | 2, scene.CycleClamp, true},
		{8 | 6, scene.CycleClamp, true},
	}
	for _, c := range cases {
		before := s.Diag.Len()
		got := s.cycleMode(&nif.ControllerBase{Flags: c.flags}, "test")
		if got != c.want {
			t.Errorf("flags %04b: cycle %v, want %v", c.flags, got, c.want)
		}
		if warned := s.Diag.Len() > before; warned != c.warns {
			t.Errorf("flags %04b: warned=%v, want %v", c.flags, warned, c.warns)
		}
	}
}

func TestFlipBook(t *testing.T) {
	makeShape := func(textures int) *nif.Node {
		tp := &nif.TexturingProperty{}
		fc := &nif.FlipController{
			ControllerBase: nif.ControllerBase{Flags: activeClamp, StartTime: 0, StopTime: 100},
		}
		for i := 0; i < textures; i++ {
			fc.Sources = append(fc.Sources, &nif.SourceTexture{})
		}
		tp.Controllers = append(tp.Controllers, fc)
		sh := triShape("screen", quadData())
		sh.Properties = append(sh.Properties, tp)
		return plainNode("root", sh)
	}

	s := testSession()
	_, err := s.Import([]nif.AVBlock{makeShape(1)})
	if err == nil || !IsConfigurationError(err) {
		t.Fatalf("one texture: expected configuration error, got %v", err)
	}

	s = testSession()
	out, err := s.Import([]nif.AVBlock{makeShape(2)})
	if err != nil {
		t.Fatal(err)
	}
	var flip *scene.KeyframeTrack
	out[0].Walk(func(n *scene.Node) {
		for _, tr := range n.Tracks {
			if tr.Kind == scene.TrackFlip {
				flip = tr
			}
		}
	})
	if flip == nil {
		t.Fatal("no flip track emitted")
	}
	if len(flip.FloatKeys) != 2 {
		t.Fatalf("flip key count %d, want 2", len(flip.FloatKeys))
	}
	if got := flip.FloatKeys[1].Time - flip.FloatKeys[0].Time; math.Abs(got-50) > 1e-9 {
		t.Errorf("flip delta %v, want 50", got)
	}
}

func TestVisibilityTrack(t *testing.T) {
	node := plainNode("blinker")
	node.Controllers = append(node.Controllers, &nif.VisController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp, StopTime: 2},
		Keys: []nif.ByteKey{
			{Time: 0, Value: 1},
			{Time: 1, Value: 0},
		},
	})
	root := plainNode("root", node)
	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	tracks := out[0].Children[0].Tracks
	if len(tracks) != 1 || tracks[0].Kind != scene.TrackVisibility {
		t.Fatalf("tracks %v", tracks)
	}
	if tracks[0].BoolKeys[1].Value {
		t.Error("second key must be invisible")
	}
}

func TestMaterialAlphaTrack(t *testing.T) {
	mp := &nif.MaterialProperty{Alpha: 1}
	mp.Name = "glass"
	mp.Controllers = append(mp.Controllers, &nif.AlphaController{
		ControllerBase: nif.ControllerBase{Flags: activeClamp, StopTime: 1},
		Data: &nif.FloatData{Keys: nif.FloatKeyGroup{
			Interpolation: nif.KeyLinear,
			Keys: []nif.FloatKey{
				{Time: 0, Value: 1},
				{Time: 1, Value: 0},
			},
		}},
	})
	sh := triShape("pane", quadData())
	sh.Properties = append(sh.Properties, mp)
	root := plainNode("root", sh)

	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	var alpha *scene.KeyframeTrack
	out[0].Walk(func(n *scene.Node) {
		for _, tr := range n.Tracks {
			if tr.Kind == scene.TrackAlpha {
				alpha = tr
			}
		}
	})
	if alpha == nil || alpha.Target.Channel != "alpha" || len(alpha.FloatKeys) != 2 {
		t.Fatalf("alpha track %+v", alpha)
	}
}

func TestMergeSequences(t *testing.T) {
	node := plainNode("Bip01")
	root := plainNode("root", node)

	s := testSession()
	s.Sequences = []*nif.ControllerSequence{{
		Name: "Idle",
		Blocks: []nif.ControlledBlock{{
			TargetName: "Bip01",
			Interpolator: &nif.TransformInterpolator{
				Transform: nif.IdentityTransform(),
				Data: transData(
					nif.Vec3Key{Time: 0, Value: mgl64.Vec3{0, 0, 0}},
					nif.Vec3Key{Time: 1, Value: mgl64.Vec3{0, 1, 0}},
				),
			},
			Priority: 40,
		}},
	}}
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	tracks := out[0].Children[0].Tracks
	if len(tracks) != 1 || len(tracks[0].Vec3Keys) != 2 {
		t.Fatalf("merged sequence produced tracks %v", tracks)
	}
	if s.bonePriority["Bip01"] != 40 {
		t.Errorf("priority not recorded: %v", s.bonePriority)
	}
}

func TestMergeSequencesUnknownTarget(t *testing.T) {
	s := testSession()
	s.Sequences = []*nif.ControllerSequence{{
		Name:   "Idle",
		Blocks: []nif.ControlledBlock{{TargetName: "Nobody"}},
	}}
	if _, err := s.Import([]nif.AVBlock{plainNode("root")}); err != nil {
		t.Fatal(err)
	}
	if s.Diag.Len() == 0 {
		t.Error("expected a warning for the unknown target")
	}
}

func TestEstimateFPS(t *testing.T) {
	cases := []struct {
		times []float64
		want  int
	}{
		{nil, 30},
		{[]float64{0, 1.0 / 30, 2.0 / 30, 0.5}, 30},
		{[]float64{0, 0.04, 0.08, 0.2}, 25},
		{[]float64{0, 0.05, 0.15}, 20},
	}
	for _, c := range cases {
		if got := estimateFPS(c.times); got != c.want {
			t.Errorf("estimateFPS(%v) = %d, want %d", c.times, got, c.want)
		}
	}
}

func TestTextKeysBecomeMarkers(t *testing.T) {
	root := plainNode("root")
	root.Extras = append(root.Extras, &nif.TextKeyExtraData{
		Keys: []nif.TextKey{
			{Time: 0, Value: "start"},
			{Time: 2, Value: "loop"},
		},
	})
	s := testSession()
	out, err := s.Import([]nif.AVBlock{root})
	if err != nil {
		t.Fatal(err)
	}
	if len(out[0].Markers) != 2 || out[0].Markers[1].Name != "loop" {
		t.Errorf("markers %v", out[0].Markers)
	}
}
