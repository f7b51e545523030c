package utils

import "path/filepath"

// ResolvePaths resolves a list of paths relative to a base directory.
// Absolute paths are kept, blank entries are dropped, and a path listed
// twice is returned once, at its first position.
func ResolvePaths(paths []string, baseDir string) []string {
	if len(paths) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(paths))
	var resolved []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		resolved = append(resolved, p)
	}
	return resolved
}
