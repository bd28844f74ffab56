package components

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pagegen/internal/logging"
)

// SourceFiles locates the files of one component on disk. HTMLPath and
// SCSSPath are empty when the sibling file does not exist.
type SourceFiles struct {
	BaseName string
	RelPath  string
	TSPath   string
	HTMLPath string
	SCSSPath string
}

// DefaultPathSegments are the folders reusable components live under.
var DefaultPathSegments = []string{"common", "shared"}

// Discover walks root for *.component.ts files (Angular test files excluded) that
// sit under one of segments (case-insensitive). Results are sorted by
// relative path.
func Discover(root string, segments []string) ([]SourceFiles, error) {
	if len(segments) == 0 {
		segments = DefaultPathSegments
	}
	want := make(map[string]bool, len(segments))
	for _, s := range segments {
		want[strings.ToLower(s)] = true
	}

	var found []SourceFiles
	var filtered int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".component.ts") || strings.Contains(name, ".spec.") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			filtered++
			return nil
		}
		if !underSegment(rel, want) {
			logging.ComponentsDebug("Discover: skipping %s (not under %v)", rel, segments)
			filtered++
			return nil
		}

		base := strings.TrimSuffix(name, ".component.ts")
		dir := filepath.Dir(path)
		found = append(found, SourceFiles{
			BaseName: base,
			RelPath:  filepath.ToSlash(rel),
			TSPath:   path,
			HTMLPath: existing(filepath.Join(dir, base+".component.html")),
			SCSSPath: existing(filepath.Join(dir, base+".component.scss")),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].RelPath < found[j].RelPath })
	logging.Components("Discovered %d components (%d filtered out) under %s", len(found), filtered, root)
	return found, nil
}

func underSegment(rel string, want map[string]bool) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if want[strings.ToLower(part)] {
			return true
		}
	}
	return false
}

func existing(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
