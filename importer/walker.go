package importer

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/utils"
)

// Import converts the given roots. Each root is imported independently: a
// format error aborts that root with no partial output for it, but the
// remaining roots still go through. The first branch error is returned
// alongside whatever succeeded.
func (s *Session) Import(roots []nif.AVBlock) ([]*scene.Node, error) {
	for _, root := range roots {
		if p, ok := s.parents[root]; ok {
			return nil, formatErrorf("root %q already has parent %q", root.AV().Name, p.AV().Name)
		}
		if err := s.setParents(root); err != nil {
			return nil, err
		}
	}
	if s.Options.Animation {
		s.mergeSequences()
	}
	if err := s.markArmatures(roots); err != nil {
		return nil, err
	}

	var out []*scene.Node
	var firstErr error
	for _, root := range roots {
		n, err := s.importBranch(root)
		if err != nil {
			s.Log.Printf("branch %q aborted: %v", root.AV().Name, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "importing branch %q", root.AV().Name)
			}
			continue
		}
		if n != nil {
			if c := s.Options.ScaleCorrection; c != 0 && c != 1 {
				n.Transform = mgl64.Scale3D(c, c, c).Mul4(n.Transform)
			}
			out = append(out, n)
		}
	}

	if s.Options.Animation {
		s.fps = estimateFPS(collectKeyTimes(out))
	}
	return out, firstErr
}

// Classify assigns the node kind used for dispatch. Bone and armature-root
// marks must already be in place.
func (s *Session) Classify(b nif.AVBlock) scene.NodeKind {
	switch v := b.(type) {
	case *nif.TriShape:
		return scene.KindMesh
	case *nif.Camera:
		return scene.KindCamera
	case *nif.RootCollisionNode:
		return scene.KindCollision
	case *nif.LODNode:
		return scene.KindEmpty
	case *nif.Node:
		switch {
		case s.armatureRoots[v]:
			return scene.KindArmatureRoot
		case s.bones[v]:
			return scene.KindBone
		case hasBound(v):
			return scene.KindBound
		case s.groupedChildren(v) != nil:
			return scene.KindGrouping
		default:
			return scene.KindEmpty
		}
	}
	return scene.KindOther
}

func hasBound(n *nif.Node) bool {
	if n.Name == "Bounding Box" {
		return true
	}
	for _, e := range n.Extras {
		if _, ok := e.(*nif.BSBound); ok {
			return true
		}
	}
	return false
}

func (s *Session) importBranch(b nif.AVBlock) (*scene.Node, error) {
	av := b.AV()
	kind := s.Classify(b)

	switch kind {
	case scene.KindMesh:
		return s.importMeshNode(b.(*nif.TriShape), scene.KindMesh)

	case scene.KindArmatureRoot:
		return s.importArmature(b.(*nif.Node))

	case scene.KindBone:
		// Bones materialize inside their armature, not as scene nodes.
		// Reaching one here means the marking pass and the walk disagree.
		invariant(false, "bone %q walked outside its armature", av.Name)
		return nil, nil

	case scene.KindGrouping:
		return s.importGroupNode(b.(*nif.Node))

	case scene.KindCollision:
		return s.importCollisionNode(b.(*nif.RootCollisionNode))

	case scene.KindCamera:
		n := scene.NewNode(s.uniqueName(av.Name), scene.KindCamera)
		n.Transform = av.Transform.Matrix()
		s.importNodeTracks(b, n)
		return n, nil

	case scene.KindBound:
		return s.importBoundNode(b.(*nif.Node))

	case scene.KindOther:
		s.warnf("skipping unsupported block %q", av.Name)
		s.Log.Printf("unsupported block %q: %s", av.Name, utils.SDump(b))
		return nil, nil
	}

	// Empty container: plain transform node plus independent children.
	n := scene.NewNode(s.uniqueName(av.Name), kind)
	n.Transform = av.Transform.Matrix()
	if err := s.importChildrenInto(b, n, nil); err != nil {
		return nil, err
	}
	s.importNodeTracks(b, n)
	s.importTextKeys(&av.ObjectNET, n)
	if nn, ok := b.(*nif.Node); ok && nn.BoundingVolume != nil {
		if dbg := s.importBoundingVolume(nn.BoundingVolume, av.Name); dbg != nil {
			n.AddChild(dbg)
		}
	}
	return n, nil
}

// importChildrenInto imports every child of b except those in skip and
// attaches the results to parent. Kind "empty" nodes with no surviving
// content are still attached when extra-node import is on.
func (s *Session) importChildrenInto(b nif.AVBlock, parent *scene.Node, skip map[nif.AVBlock]bool) error {
	for _, c := range childBlocks(b) {
		if c == nil || skip[c] {
			continue
		}
		if nn, ok := c.(*nif.Node); ok && s.bones[nn] && !s.armatureRoots[nn] {
			// Bone subtrees are the armature builder's business.
			continue
		}
		cn, err := s.importBranch(c)
		if err != nil {
			return err
		}
		if cn == nil {
			continue
		}
		if cn.Kind == scene.KindEmpty && len(cn.Children) == 0 && !s.Options.ExtraNodes {
			continue
		}
		parent.AddChild(cn)
	}
	return nil
}

func (s *Session) importMeshNode(sh *nif.TriShape, kind scene.NodeKind) (*scene.Node, error) {
	mesh, err := s.ImportMesh(sh, nil, false)
	if err != nil {
		return nil, err
	}
	n := scene.NewNode(s.uniqueName(sh.Name), kind)
	n.Transform = sh.Transform.Matrix()
	n.Mesh = mesh
	s.importNodeTracks(sh, n)
	if err := s.importMaterialTracks(sh, n); err != nil {
		return nil, err
	}
	return n, nil
}

// importGroupNode merges the qualifying tri-shape children into one mesh
// and imports everything else as ordinary children.
func (s *Session) importGroupNode(nn *nif.Node) (*scene.Node, error) {
	shapes := s.groupedChildren(nn)
	invariant(len(shapes) > 0, "grouping node %q with no grouped children", nn.Name)

	n := scene.NewNode(s.uniqueName(stripNonAccum(nn.Name)), scene.KindGrouping)
	n.Transform = nn.Transform.Matrix()

	skip := make(map[nif.AVBlock]bool, len(shapes))
	var mesh *scene.Mesh
	for _, sh := range shapes {
		m, err := s.ImportMesh(sh, mesh, true)
		if err != nil {
			return nil, err
		}
		mesh = m
		skip[sh] = true
		if err := s.importMaterialTracks(sh, n); err != nil {
			return nil, err
		}
	}
	mesh.Name = n.Name
	n.Mesh = mesh

	if err := s.importChildrenInto(nn, n, skip); err != nil {
		return nil, err
	}
	s.importNodeTracks(nn, n)
	s.importTextKeys(&nn.ObjectNET, n)
	return n, nil
}

// importCollisionNode merges all collision geometry below the marker into
// one mesh node, or imports the children separately when shape combining
// is off.
func (s *Session) importCollisionNode(coll *nif.RootCollisionNode) (*scene.Node, error) {
	n := scene.NewNode(s.uniqueName(orName(coll.Name, "collision")), scene.KindCollision)
	n.Transform = coll.Transform.Matrix()

	shapes := s.groupedChildren(coll)
	if len(shapes) == 0 {
		for _, c := range coll.Children {
			sh, ok := c.(*nif.TriShape)
			if !ok {
				continue
			}
			cn, err := s.importMeshNode(sh, scene.KindCollision)
			if err != nil {
				return nil, err
			}
			n.AddChild(cn)
		}
		return n, nil
	}

	var mesh *scene.Mesh
	for _, sh := range shapes {
		m, err := s.ImportMesh(sh, mesh, true)
		if err != nil {
			return nil, err
		}
		mesh = m
	}
	mesh.Name = n.Name
	n.Mesh = mesh
	return n, nil
}

func (s *Session) importBoundNode(nn *nif.Node) (*scene.Node, error) {
	n := scene.NewNode(s.uniqueName(orName(nn.Name, "Bounding Box")), scene.KindBound)
	n.Transform = nn.Transform.Matrix()
	for _, e := range nn.Extras {
		if b, ok := e.(*nif.BSBound); ok {
			n.AddChild(s.boundBoxNode(b))
		}
	}
	return n, nil
}

func (s *Session) importTextKeys(o *nif.ObjectNET, n *scene.Node) {
	tk := o.TextKeys()
	if tk == nil {
		return
	}
	for _, k := range tk.Keys {
		n.Markers = append(n.Markers, scene.Marker{Time: k.Time, Name: k.Value})
	}
}

func orName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
