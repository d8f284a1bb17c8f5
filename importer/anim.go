package importer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/transform"
)

// Extend-flag mapping. Only two values of the 3-bit field are recognized;
// everything else clamps with a warning.
const (
	extendClamp  = 4
	extendRepeat = 0
)

func (s *Session) cycleMode(cb *nif.ControllerBase, ctx string) scene.CycleMode {
	switch cb.ExtendBits() {
	case extendClamp:
		return scene.CycleClamp
	case extendRepeat:
		return scene.CycleRepeat
	}
	s.warnf("%s: unsupported extend flags 0x%X, clamping", ctx, cb.Flags)
	return scene.CycleClamp
}

func (s *Session) keyInterpolation(kt nif.KeyType, ctx string) scene.Interpolation {
	switch kt {
	case nif.KeyConst:
		return scene.InterpConstant
	case nif.KeyQuadratic:
		return scene.InterpQuadratic
	case nif.KeyLinear, 0:
		return scene.InterpLinear
	}
	s.warnf("%s: unsupported key interpolation %v, using linear", ctx, kt)
	return scene.InterpLinear
}

// mergeSequences attaches keyframe-file controller blocks onto the named
// nodes of the primary tree. Must run after the name index is built.
func (s *Session) mergeSequences() {
	for _, seq := range s.Sequences {
		for _, blk := range seq.Blocks {
			target, ok := s.byName[blk.TargetName]
			if !ok {
				s.warnf("keyframe sequence %q targets unknown node %q", seq.Name, blk.TargetName)
				continue
			}
			ctrl := blk.Controller
			if ctrl == nil && blk.Interpolator != nil {
				ctrl = &nif.TransformController{
					ControllerBase: nif.ControllerBase{Flags: 8 | extendClamp},
					Interpolator:   blk.Interpolator,
				}
			}
			if ctrl == nil {
				continue
			}
			av := target.AV()
			av.Controllers = append(av.Controllers, ctrl)
			if blk.Priority != 0 {
				s.bonePriority[blk.TargetName] = blk.Priority
			}
		}
	}
}

// transformChannel finds the active transform controller on a block and
// flattens the two storage generations into (timing, keys, default pose).
func transformChannel(b nif.AVBlock) (*nif.ControllerBase, *nif.KeyframeData, *nif.Transform) {
	for _, c := range b.AV().Controllers {
		switch v := c.(type) {
		case *nif.KeyframeController:
			return &v.ControllerBase, v.Data, nil
		case *nif.TransformController:
			if v.Interpolator != nil {
				return &v.ControllerBase, v.Interpolator.Data, &v.Interpolator.Transform
			}
			return &v.ControllerBase, nil, nil
		}
	}
	return nil, nil, nil
}

// importNodeTracks converts transform and visibility animation on a
// non-bone node.
func (s *Session) importNodeTracks(b nif.AVBlock, n *scene.Node) {
	if !s.Options.Animation {
		return
	}
	target := scene.Target{Node: n.Name}

	if cb, data, pose := transformChannel(b); cb != nil {
		if !cb.Active() {
			s.Log.Printf("node %q: transform controller inactive, skipped", n.Name)
		} else {
			tracks, static := s.buildTransformTracks(cb, data, pose, target, scene.BindCorrection{}, false, n.Name)
			n.Tracks = append(n.Tracks, tracks...)
			if static != nil {
				n.Pose = static
			}
		}
	}

	for _, c := range b.AV().Controllers {
		vc, ok := c.(*nif.VisController)
		if !ok || !vc.Active() {
			continue
		}
		tr := &scene.KeyframeTrack{
			Target:        target,
			Kind:          scene.TrackVisibility,
			Interpolation: scene.InterpConstant,
			Cycle:         s.cycleMode(&vc.ControllerBase, n.Name),
			StartTime:     vc.StartTime,
			StopTime:      vc.StopTime,
		}
		for _, k := range vc.Keys {
			tr.BoolKeys = append(tr.BoolKeys, scene.BoolSample{Time: k.Time, Value: k.Value != 0})
		}
		if len(tr.BoolKeys) > 0 {
			n.Tracks = append(n.Tracks, tr)
		}
	}
}

// importBoneTracks converts transform animation on a bone, composing every
// sample with the bone's bind correction.
func (s *Session) importBoneTracks(nn *nif.Node, arm *scene.Armature, boneName string, armNode *scene.Node) {
	cb, data, pose := transformChannel(nn)
	if cb == nil {
		return
	}
	if !cb.Active() {
		s.Log.Printf("bone %q: transform controller inactive, skipped", boneName)
		return
	}
	if p, ok := s.bonePriority[nn.Name]; ok {
		if b := arm.Bone(boneName); b != nil {
			b.Priority = p
		}
	}

	corr, hasCorr := arm.Corrections[boneName]
	target := scene.Target{Node: armNode.Name, Bone: boneName}
	tracks, static := s.buildTransformTracks(cb, data, pose, target, corr, hasCorr, boneName)
	armNode.Tracks = append(armNode.Tracks, tracks...)
	if static != nil {
		arm.Poses[boneName] = *static
	}
}

// buildTransformTracks emits translation/rotation/scale tracks for one
// channel. Every sample is composed with the bind and inverse-extra
// matrices so that round-tripping through the axis correction is
// transparent to a consumer of the output. With at most one sample per
// track (and a format that supports it) the result collapses into a static
// default pose instead.
func (s *Session) buildTransformTracks(cb *nif.ControllerBase, data *nif.KeyframeData,
	pose *nif.Transform, target scene.Target, corr scene.BindCorrection, hasCorr bool,
	ctx string) ([]*scene.KeyframeTrack, *scene.Interpolator) {

	bind := mgl64.Ident4()
	extraInv := mgl64.Ident4()
	if hasCorr {
		bind = corr.Bind
		extraInv = corr.ExtraInv
	}

	sb, rb, _, _ := transform.DecomposeSRT(bind, s.Options.Epsilon)
	sxInv, rxInv, _, _ := transform.DecomposeSRT(extraInv, s.Options.Epsilon)
	bindQuat := transform.Mat3ToQuat(rb)
	extraQuatInv := transform.Mat3ToQuat(rxInv)

	composeTrans := func(tc mgl64.Vec3) mgl64.Vec3 {
		m := bind.Mul4(transform.ComposeSRT(1, mgl64.Ident3(), tc)).Mul4(extraInv)
		return m.Col(3).Vec3()
	}
	composeRot := func(qc mgl64.Quat) mgl64.Quat {
		return transform.QuatCross(transform.QuatCross(bindQuat, qc), extraQuatInv)
	}
	composeScale := func(sc float64) float64 {
		return sc * sb * sxInv
	}

	cycle := s.cycleMode(cb, ctx)
	newTrack := func(kind scene.TrackKind, interp scene.Interpolation) *scene.KeyframeTrack {
		return &scene.KeyframeTrack{
			Target:        target,
			Kind:          kind,
			Interpolation: interp,
			Cycle:         cycle,
			StartTime:     cb.StartTime,
			StopTime:      cb.StopTime,
		}
	}

	var tracks []*scene.KeyframeTrack

	var transTrack *scene.KeyframeTrack
	if data != nil && len(data.Translations.Keys) > 0 {
		transTrack = newTrack(scene.TrackTranslation, s.keyInterpolation(data.Translations.Interpolation, ctx))
		for _, k := range data.Translations.Keys {
			transTrack.Vec3Keys = append(transTrack.Vec3Keys, scene.Vec3Sample{
				Time:  k.Time,
				Value: composeTrans(k.Value),
			})
		}
		tracks = append(tracks, transTrack)
	}

	var scaleTrack *scene.KeyframeTrack
	if data != nil && len(data.Scales.Keys) > 0 {
		scaleTrack = newTrack(scene.TrackScale, s.keyInterpolation(data.Scales.Interpolation, ctx))
		for _, k := range data.Scales.Keys {
			scaleTrack.FloatKeys = append(scaleTrack.FloatKeys, scene.FloatSample{
				Time:  k.Time,
				Value: composeScale(k.Value),
			})
		}
		tracks = append(tracks, scaleTrack)
	}

	var rotTrack *scene.KeyframeTrack
	rotKeyCount := 0
	var eulerStatic mgl64.Vec3
	if data != nil && data.EulerRotations() {
		// Euler curves stay three independent linear tracks; values are
		// authored in degrees.
		for axis := 0; axis < 3; axis++ {
			group := data.XYZRotations[axis]
			if len(group.Keys) == 0 {
				continue
			}
			tr := newTrack(scene.TrackEuler, scene.InterpLinear)
			tr.Axis = axis
			for _, k := range group.Keys {
				tr.FloatKeys = append(tr.FloatKeys, scene.FloatSample{
					Time:  k.Time,
					Value: transform.DegToRad(k.Value),
				})
			}
			tracks = append(tracks, tr)
			rotKeyCount += len(group.Keys)
			eulerStatic[axis] = transform.DegToRad(group.Keys[0].Value)
		}
	} else if data != nil && len(data.QuaternionKeys) > 0 {
		rotTrack = newTrack(scene.TrackRotation, s.keyInterpolation(data.RotationType, ctx))
		for _, k := range data.QuaternionKeys {
			rotTrack.QuatKeys = append(rotTrack.QuatKeys, scene.QuatSample{
				Time:  k.Time,
				Value: composeRot(k.Value),
			})
		}
		tracks = append(tracks, rotTrack)
		rotKeyCount = len(data.QuaternionKeys)
	}

	transKeys := 0
	if transTrack != nil {
		transKeys = len(transTrack.Vec3Keys)
	}
	scaleKeys := 0
	if scaleTrack != nil {
		scaleKeys = len(scaleTrack.FloatKeys)
	}

	if rotKeyCount <= 1 && transKeys <= 1 && scaleKeys <= 1 && s.Version.SupportsStaticInterpolators() {
		static := scene.DefaultInterpolator()
		if pose != nil {
			static.Translation = composeTrans(pose.Translation)
			static.Rotation = composeRot(transform.Mat3ToQuat(pose.Rotation))
			static.Scale = composeScale(pose.Scale)
		}
		if transKeys == 1 {
			static.Translation = transTrack.Vec3Keys[0].Value
		}
		if scaleKeys == 1 {
			static.Scale = scaleTrack.FloatKeys[0].Value
		}
		if rotTrack != nil && len(rotTrack.QuatKeys) == 1 {
			static.Rotation = rotTrack.QuatKeys[0].Value
		} else if data != nil && data.EulerRotations() && rotKeyCount == 1 {
			static.Rotation = transform.EulerToQuat(eulerStatic)
		}
		if pose == nil && transKeys+scaleKeys+rotKeyCount == 0 {
			return nil, nil
		}
		return nil, &static
	}
	return tracks, nil
}

// importMaterialTracks converts alpha, color, texture-coordinate and
// flip-book animation attached to a shape's render properties.
func (s *Session) importMaterialTracks(sh *nif.TriShape, n *scene.Node) error {
	if !s.Options.Animation {
		return nil
	}

	var mp *nif.MaterialProperty
	var tp *nif.TexturingProperty
	for _, p := range sh.Properties {
		switch v := p.(type) {
		case *nif.MaterialProperty:
			mp = v
		case *nif.TexturingProperty:
			tp = v
		}
	}

	// Material controllers misplaced on the geometry require the property
	// they animate.
	for _, c := range sh.Controllers {
		switch c.(type) {
		case *nif.AlphaController, *nif.MaterialColorController:
			if mp == nil {
				return formatErrorf("mesh %q animates a material it does not carry", sh.Name)
			}
		}
	}

	ctrls := append([]nif.Controller{}, sh.Controllers...)
	if mp != nil {
		ctrls = append(ctrls, mp.Controllers...)
	}
	if tp != nil {
		ctrls = append(ctrls, tp.Controllers...)
	}

	for _, c := range ctrls {
		switch v := c.(type) {
		case *nif.AlphaController:
			if !v.Active() {
				continue
			}
			s.appendFloatTrack(n, v, alphaKeys(v), scene.TrackAlpha, "alpha")

		case *nif.MaterialColorController:
			if !v.Active() {
				continue
			}
			keys := colorKeys(v)
			if len(keys.Keys) == 0 {
				continue
			}
			tr := &scene.KeyframeTrack{
				Target:        scene.Target{Node: n.Name, Channel: colorChannel(v.Target)},
				Kind:          scene.TrackColor,
				Interpolation: s.keyInterpolation(keys.Interpolation, n.Name),
				Cycle:         s.cycleMode(&v.ControllerBase, n.Name),
				StartTime:     v.StartTime,
				StopTime:      v.StopTime,
			}
			for _, k := range keys.Keys {
				tr.Vec3Keys = append(tr.Vec3Keys, scene.Vec3Sample{Time: k.Time, Value: k.Value})
			}
			n.Tracks = append(n.Tracks, tr)

		case *nif.UVController:
			if !v.Active() {
				continue
			}
			channels := [4]string{"u offset", "v offset", "u scale", "v scale"}
			for gi, group := range v.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				tr := &scene.KeyframeTrack{
					Target:        scene.Target{Node: n.Name, Channel: channels[gi]},
					Kind:          scene.TrackUV,
					Interpolation: s.keyInterpolation(group.Interpolation, n.Name),
					Cycle:         s.cycleMode(&v.ControllerBase, n.Name),
					StartTime:     v.StartTime,
					StopTime:      v.StopTime,
				}
				for _, k := range group.Keys {
					tr.FloatKeys = append(tr.FloatKeys, scene.FloatSample{Time: k.Time, Value: k.Value})
				}
				n.Tracks = append(n.Tracks, tr)
			}

		case *nif.FlipController:
			if !v.Active() {
				continue
			}
			if err := s.importFlip(v, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) appendFloatTrack(n *scene.Node, v *nif.AlphaController, group nif.FloatKeyGroup, kind scene.TrackKind, channel string) {
	if len(group.Keys) == 0 {
		return
	}
	tr := &scene.KeyframeTrack{
		Target:        scene.Target{Node: n.Name, Channel: channel},
		Kind:          kind,
		Interpolation: s.keyInterpolation(group.Interpolation, n.Name),
		Cycle:         s.cycleMode(&v.ControllerBase, n.Name),
		StartTime:     v.StartTime,
		StopTime:      v.StopTime,
	}
	for _, k := range group.Keys {
		tr.FloatKeys = append(tr.FloatKeys, scene.FloatSample{Time: k.Time, Value: k.Value})
	}
	n.Tracks = append(n.Tracks, tr)
}

func alphaKeys(v *nif.AlphaController) nif.FloatKeyGroup {
	if v.Data != nil {
		return v.Data.Keys
	}
	if v.Interpolator != nil && v.Interpolator.Data != nil {
		return v.Interpolator.Data.Keys
	}
	return nif.FloatKeyGroup{}
}

func colorKeys(v *nif.MaterialColorController) nif.Vec3KeyGroup {
	if v.Data != nil {
		return v.Data.Keys
	}
	if v.Interpolator != nil && v.Interpolator.Data != nil {
		return v.Interpolator.Data.Keys
	}
	return nif.Vec3KeyGroup{}
}

func colorChannel(t nif.MaterialColorTarget) string {
	switch t {
	case nif.TargetAmbient:
		return "ambient"
	case nif.TargetSpecular:
		return "specular"
	case nif.TargetEmissive:
		return "emissive"
	}
	return "diffuse"
}

// importFlip converts a flip-book controller: texture swaps on a uniform
// time grid. Fewer than two textures cannot flip.
func (s *Session) importFlip(v *nif.FlipController, n *scene.Node) error {
	count := len(v.Sources)
	if count < 2 {
		return configErrorf("flip animation on %q needs at least 2 textures, got %d", n.Name, count)
	}
	delta := (v.StopTime - v.StartTime) / float64(count)
	tr := &scene.KeyframeTrack{
		Target:        scene.Target{Node: n.Name, Channel: "flip"},
		Kind:          scene.TrackFlip,
		Interpolation: scene.InterpConstant,
		Cycle:         s.cycleMode(&v.ControllerBase, n.Name),
		StartTime:     v.StartTime,
		StopTime:      v.StopTime,
	}
	for i := 0; i < count; i++ {
		tr.FloatKeys = append(tr.FloatKeys, scene.FloatSample{
			Time:  v.StartTime + delta*float64(i),
			Value: float64(i),
		})
	}
	n.Tracks = append(n.Tracks, tr)
	return nil
}

// estimateFPS picks the frame rate that lines the key times up best with
// integer frames.
func estimateFPS(times []float64) int {
	if len(times) == 0 {
		return 30
	}
	best, bestErr := 30, math.Inf(1)
	for _, fps := range []int{30, 20, 25, 35} {
		sum := 0.0
		for _, t := range times {
			f := t * float64(fps)
			sum += math.Abs(f - math.Round(f))
		}
		if sum < bestErr {
			best, bestErr = fps, sum
		}
	}
	return best
}

func collectKeyTimes(nodes []*scene.Node) []float64 {
	var times []float64
	for _, root := range nodes {
		root.Walk(func(n *scene.Node) {
			for _, tr := range n.Tracks {
				for _, k := range tr.FloatKeys {
					times = append(times, k.Time)
				}
				for _, k := range tr.Vec3Keys {
					times = append(times, k.Time)
				}
				for _, k := range tr.QuatKeys {
					times = append(times, k.Time)
				}
				for _, k := range tr.BoolKeys {
					times = append(times, k.Time)
				}
			}
		})
	}
	return times
}
