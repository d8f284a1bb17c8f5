// Package importer drives the conversion of source scene-graph blocks into
// the output scene model: tree walking, armature building, mesh building
// and the keyframe pipeline.
package importer

import (
	"fmt"

	"github.com/nifkit/nifkit/config"
	"github.com/nifkit/nifkit/egm"
	"github.com/nifkit/nifkit/nif"
	"github.com/nifkit/nifkit/scene"
	"github.com/nifkit/nifkit/utils"
)

// NameRegistry is the host-provided uniqueness namespace. The session only
// asks whether a name is taken and records source-to-output mappings; the
// host owns the namespace.
type NameRegistry interface {
	Taken(name string) bool
	Record(source, unique string)
}

// Session owns every piece of run-scoped state. Construct a fresh session
// per import run; nothing persists across runs.
type Session struct {
	Options config.Options
	Version nif.Version
	Diag    *Diagnostics
	Log     *utils.Logger

	// Names is optional; when nil the session keeps uniqueness locally.
	Names NameRegistry

	// Egm, when set, contributes facial morph shape keys to meshes whose
	// vertex count matches the payload.
	Egm *egm.Data

	// TargetArmature receives bones in geometry-only mode.
	TargetArmature *scene.Armature

	// Sequences are auxiliary keyframe-only trees, merged onto the primary
	// tree by node name before import.
	Sequences []*nif.ControllerSequence

	parents   map[nif.AVBlock]nif.AVBlock
	byName    map[string]nif.AVBlock
	nodeCount int

	bones         map[*nif.Node]bool
	armatureRoots map[*nif.Node]bool
	armatures     map[*nif.Node]*scene.Armature
	bonePriority  map[string]int

	nameMap   map[string]string
	taken     map[string]bool
	materials map[*nif.MaterialProperty]scene.Material

	fps int
}

func NewSession(opts config.Options, version nif.Version, log *utils.Logger) *Session {
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = config.DefaultOptions().MaxNodes
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = config.DefaultOptions().Epsilon
	}
	return &Session{
		Options: opts,
		Version: version,
		Diag:    &Diagnostics{},
		Log:     log,

		parents:       make(map[nif.AVBlock]nif.AVBlock),
		byName:        make(map[string]nif.AVBlock),
		bones:         make(map[*nif.Node]bool),
		armatureRoots: make(map[*nif.Node]bool),
		armatures:     make(map[*nif.Node]*scene.Armature),
		bonePriority:  make(map[string]int),
		nameMap:       make(map[string]string),
		taken:         make(map[string]bool),
		materials:     make(map[*nif.MaterialProperty]scene.Material),

		fps: 30,
	}
}

// FPS returns the frame rate estimated from the key times of the last
// imported animation, 30 before any estimate.
func (s *Session) FPS() int { return s.fps }

// Parent looks up the parent of a block in the side-table built by the
// pre-pass. Roots have no parent.
func (s *Session) Parent(b nif.AVBlock) (nif.AVBlock, bool) {
	p, ok := s.parents[b]
	return p, ok
}

func (s *Session) parentNode(b nif.AVBlock) *nif.Node {
	p, ok := s.parents[b]
	if !ok {
		return nil
	}
	n, _ := p.(*nif.Node)
	return n
}

func (s *Session) warnf(format string, a ...interface{}) {
	s.Diag.Warnf(format, a...)
	s.Log.Printf("warning: "+format, a...)
}

func (s *Session) isTaken(name string) bool {
	if s.taken[name] {
		return true
	}
	return s.Names != nil && s.Names.Taken(name)
}

// uniqueName maps a source name to an output name that is unique for this
// run (and for the host registry, when present). Repeated queries for the
// same source name return the same output name.
func (s *Session) uniqueName(base string) string {
	if base == "" {
		base = "unnamed"
	}
	if u, ok := s.nameMap[base]; ok {
		return u
	}
	unique := base
	for i := 1; s.isTaken(unique); i++ {
		unique = fmt.Sprintf("%s.%03d", base, i)
	}
	s.nameMap[base] = unique
	s.taken[unique] = true
	if s.Names != nil {
		s.Names.Record(base, unique)
	}
	return unique
}

// setParents builds the parent side-table, the name index and the node
// count for one root in a single pass. A node reached through two parents
// or a node count above the configured ceiling is a format error.
func (s *Session) setParents(root nif.AVBlock) error {
	stack := []nif.AVBlock{root}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		s.nodeCount++
		if s.nodeCount > s.Options.MaxNodes {
			return formatErrorf("scene graph exceeds %d nodes", s.Options.MaxNodes)
		}
		if name := b.AV().Name; name != "" {
			if _, ok := s.byName[name]; !ok {
				s.byName[name] = b
			}
		}

		for _, c := range childBlocks(b) {
			if c == nil {
				continue
			}
			if _, ok := s.parents[c]; ok {
				return formatErrorf("node %q has more than one parent", c.AV().Name)
			}
			s.parents[c] = b
			stack = append(stack, c)
		}
	}
	return nil
}

// childBlocks returns the tree children of any block kind.
func childBlocks(b nif.AVBlock) []nif.AVBlock {
	switch v := b.(type) {
	case *nif.Node:
		return v.Children
	case *nif.RootCollisionNode:
		return v.Children
	case *nif.LODNode:
		return v.Children
	}
	return nil
}
