package importer

import "strings"

// Side-marker rewriting between the two bone naming conventions. The
// source names bones "Bip01 L Thigh"; the editor convention is a ".L"
// suffix, "Bip01 Thigh.L". Prefixes seen in the wild are handled
// explicitly, everything else passes through unchanged.

var sidePrefixes = []string{"Bip01", "Bip02", "NPC"}

// BoneNameForEditor rewrites a source bone name to the suffix convention.
func BoneNameForEditor(name string) string {
	for _, p := range sidePrefixes {
		for _, side := range []string{"L", "R"} {
			marker := p + " " + side + " "
			if strings.HasPrefix(name, marker) {
				return p + " " + name[len(marker):] + "." + side
			}
		}
	}
	return name
}

// BoneNameForSource is the inverse of BoneNameForEditor.
func BoneNameForSource(name string) string {
	for _, p := range sidePrefixes {
		for _, side := range []string{"L", "R"} {
			suffix := "." + side
			prefix := p + " "
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				return p + " " + side + " " + name[len(prefix):len(name)-len(suffix)]
			}
		}
	}
	return name
}
