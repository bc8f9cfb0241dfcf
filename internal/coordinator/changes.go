package coordinator

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// skipDirs are trees that churn without representing user-visible edits.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"clips":        true,
	"dist":         true,
	".next":        true,
}

// snapshotTree records mtimes for every file under root. It is the baseline
// revision marker captured at session start.
func snapshotTree(root string) map[string]time.Time {
	snap := make(map[string]time.Time)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		snap[rel] = info.ModTime()
		return nil
	})
	return snap
}

// diffTree lists files added or modified since the baseline, sorted.
func diffTree(baseline, current map[string]time.Time) []string {
	var changed []string
	for path, mod := range current {
		was, ok := baseline[path]
		if !ok || mod.After(was) {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}
