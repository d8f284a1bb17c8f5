package importer

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/nifkit/nifkit/config"
	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/transform"
)

// Bone length bounds: interior bones average their children's heads, and a
// collapsed estimate falls back to the fixed minimum.
const (
	minBoneEstimate    = 0.01
	fallbackBoneLength = 0.25
)

// markArmatures fills the bone and armature-root sets according to the
// skeleton policy, before any branch is imported.
func (s *Session) markArmatures(roots []nif.AVBlock) error {
	switch s.Options.Skeleton {
	case "", config.SkeletonEverything:
		for _, root := range roots {
			s.markFromSkins(root)
		}
	case config.SkeletonOnly:
		for _, root := range roots {
			nn, ok := root.(*nif.Node)
			if !ok {
				continue
			}
			s.armatureRoots[nn] = true
			markDescendantNodes(nn, s.bones)
		}
	case config.GeometryOnly:
		if s.TargetArmature == nil {
			return configErrorf("geometry-only import requires exactly one target skeleton")
		}
		for _, root := range roots {
			s.markByName(root, s.TargetArmature)
		}
	default:
		return configErrorf("unknown skeleton mode %q", s.Options.Skeleton)
	}
	return nil
}

// markFromSkins discovers bones lazily: every bone referenced by any skin
// binding is marked and walked up to its skeleton root.
func (s *Session) markFromSkins(b nif.AVBlock) {
	if sh, ok := b.(*nif.TriShape); ok && sh.Skin != nil {
		root := sh.Skin.SkeletonRoot
		invariant(root != nil, "skin on %q has no skeleton root", sh.Name)
		s.armatureRoots[root] = true
		for _, bone := range sh.Skin.Bones {
			if bone == nil {
				continue
			}
			s.completeBoneTree(bone, root)
		}
	}
	for _, c := range childBlocks(b) {
		s.markFromSkins(c)
	}
}

// completeBoneTree marks bone and every ancestor between it and root. The
// format guarantees a tree, but a cycle or a detached bone is still
// rejected rather than looping forever.
func (s *Session) completeBoneTree(bone, root *nif.Node) {
	visited := make(map[*nif.Node]bool)
	for n := bone; n != root; {
		invariant(!visited[n], "cycle in parent chain at bone %q", n.Name)
		visited[n] = true
		s.bones[n] = true
		p := s.parentNode(n)
		invariant(p != nil, "bone %q not reachable from skeleton root %q", n.Name, root.Name)
		n = p
	}
}

func markDescendantNodes(nn *nif.Node, set map[*nif.Node]bool) {
	for _, c := range nn.Children {
		if cn, ok := c.(*nif.Node); ok {
			set[cn] = true
			markDescendantNodes(cn, set)
		}
	}
}

func (s *Session) markByName(b nif.AVBlock, target *scene.Armature) {
	if nn, ok := b.(*nif.Node); ok {
		if target.Bone(BoneNameForEditor(nn.Name)) != nil {
			s.bones[nn] = true
		}
	}
	for _, c := range childBlocks(b) {
		s.markByName(c, target)
	}
}

// boneBuild is the per-bone scratch state kept until tails can be
// computed, once all children heads are known.
type boneBuild struct {
	bone     *scene.Bone
	block    *nif.Node
	dir      mgl64.Vec3
	parent   *boneBuild
	children []*boneBuild
}

// importArmature materializes the armature rooted at root: bones with
// head/tail/roll, the bind-correction map, geometry parented under bones,
// and bone animation tracks.
func (s *Session) importArmature(root *nif.Node) (*scene.Node, error) {
	arm := scene.NewArmature(s.uniqueName(orName(root.Name, "Armature")))
	node := scene.NewNode(arm.Name, scene.KindArmatureRoot)
	node.Transform = root.Transform.Matrix()
	node.Armature = arm
	s.armatures[root] = arm

	correctionLocal := transform.CorrectionLocal.Mat4()
	correctionLocalInv := correctionLocal.Inv()
	correctionGlobal := transform.CorrectionGlobal.Mat4()

	var builds []*boneBuild
	var build func(nn *nif.Node, parent *boneBuild, parentSpace mgl64.Mat4) error
	build = func(nn *nif.Node, parent *boneBuild, parentSpace mgl64.Mat4) error {
		armSpace := parentSpace.Mul4(nn.Transform.Matrix())
		bind := correctionGlobal.Mul4(correctionLocal).Mul4(armSpace).Mul4(correctionLocalInv)

		_, rot, head, uniform := transform.DecomposeSRT(bind, s.Options.Epsilon)
		if !uniform {
			s.warnf("bone %q carries a corrupt rotation matrix (non-uniform scale)", nn.Name)
		}
		dir, roll := transform.Mat3ToVecRoll(rot)

		b := &scene.Bone{
			Name:     BoneNameForEditor(nn.Name),
			Head:     head,
			Roll:     roll,
			Priority: bonePriority(nn.Extras),
		}
		bb := &boneBuild{bone: b, block: nn, dir: dir, parent: parent}
		if parent != nil {
			b.Parent = parent.bone
			parent.children = append(parent.children, bb)
		}
		arm.AddBone(b)
		arm.Corrections[b.Name] = scene.BindCorrection{
			Bind:     nn.Transform.Matrix(),
			ExtraInv: correctionLocalInv,
		}
		builds = append(builds, bb)

		for _, c := range nn.Children {
			cn, ok := c.(*nif.Node)
			if ok && s.bones[cn] {
				if err := build(cn, bb, armSpace); err != nil {
					return err
				}
				continue
			}
			// Geometry and other content hanging off a bone: import it and
			// park it under the armature node in armature space.
			child, err := s.importBranch(c)
			if err != nil {
				return err
			}
			if child != nil {
				child.Transform = armSpace.Mul4(child.Transform)
				node.AddChild(child)
			}
		}
		return nil
	}

	for _, c := range root.Children {
		cn, ok := c.(*nif.Node)
		if ok && s.bones[cn] {
			if err := build(cn, nil, mgl64.Ident4()); err != nil {
				return nil, err
			}
			continue
		}
		child, err := s.importBranch(c)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.AddChild(child)
		}
	}

	for _, bb := range builds {
		bb.bone.Tail = bb.bone.Head.Add(bb.dir.Mul(boneLength(bb)))
	}

	if s.Options.Animation {
		for _, bb := range builds {
			s.importBoneTracks(bb.block, arm, bb.bone.Name, node)
		}
	}
	s.importNodeTracks(root, node)
	s.importTextKeys(&root.ObjectNET, node)
	return node, nil
}

// boneLength estimates an interior bone's length as the mean distance to
// its children's heads; a collapsed mean falls back to the fixed minimum
// and leaves inherit their parent's length.
func boneLength(bb *boneBuild) float64 {
	if len(bb.children) == 0 {
		if bb.parent != nil {
			return boneLength(bb.parent)
		}
		return fallbackBoneLength
	}
	sum := 0.0
	for _, c := range bb.children {
		sum += c.bone.Head.Sub(bb.bone.Head).Len()
	}
	mean := sum / float64(len(bb.children))
	if mean < minBoneEstimate {
		return fallbackBoneLength
	}
	return mean
}

// bonePriority reads an animation-blend priority tag from string extras
// ("priority=N" lines, case-insensitive key).
func bonePriority(extras []nif.Extra) int {
	for _, e := range extras {
		sd, ok := e.(*nif.StringExtraData)
		if !ok {
			continue
		}
		for _, line := range strings.Split(sd.Value, "\n") {
			kv := strings.SplitN(line, "=", 2)
			if len(kv) != 2 || !strings.EqualFold(strings.TrimSpace(kv[0]), "priority") {
				continue
			}
			if v, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil {
				return v
			}
		}
	}
	return 0
}
