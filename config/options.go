package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SkeletonMode selects how bones are discovered during import.
type SkeletonMode string

const (
	// SkeletonEverything discovers bones lazily from skin bindings and
	// walks each bound node up to its skeleton root.
	SkeletonEverything SkeletonMode = "EVERYTHING"
	// SkeletonOnly treats every container node below a skeleton root as a
	// bone; geometry is skipped.
	SkeletonOnly SkeletonMode = "SKELETON_ONLY"
	// GeometryOnly imports geometry and attaches it to a caller-supplied
	// target skeleton by bone name matching.
	GeometryOnly SkeletonMode = "GEOMETRY_ONLY"
)

// Options holds all caller-tunable import settings. The zero value is not
// useful; start from DefaultOptions.
type Options struct {
	Skeleton        SkeletonMode `yaml:"skeleton"`
	CombineShapes   bool         `yaml:"combine_shapes"`
	CombineVertices bool         `yaml:"combine_vertices"`
	Animation       bool         `yaml:"animation"`
	ExtraNodes      bool         `yaml:"extra_nodes"`
	ScaleCorrection float64      `yaml:"scale_correction"`
	Epsilon         float64      `yaml:"epsilon"`

	// KeyframeFile and EgmFile name optional side payloads that get merged
	// into the primary tree before import.
	KeyframeFile string `yaml:"keyframe_file,omitempty"`
	EgmFile      string `yaml:"egm_file,omitempty"`

	// MaxNodes bounds the total node count accepted from one file, guarding
	// the recursive walker against malformed input.
	MaxNodes int `yaml:"max_nodes"`
}

func DefaultOptions() Options {
	return Options{
		Skeleton:        SkeletonEverything,
		CombineShapes:   true,
		CombineVertices: true,
		Animation:       true,
		ExtraNodes:      true,
		ScaleCorrection: 1.0,
		Epsilon:         0.005,
		MaxNodes:        1 << 20,
	}
}

func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return o, errors.Wrapf(err, "Cannot read options file %q", path)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, errors.Wrapf(err, "Failed to unmarshal options %q", path)
	}
	return o, nil
}

func (o Options) Save(path string) error {
	data, err := yaml.Marshal(&o)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal options")
	}
	return ioutil.WriteFile(path, data, 0644)
}
