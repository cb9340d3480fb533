package diagfmt

import (
	"path/filepath"
	"strings"

	"hlsched/internal/source"
)

// autoPathLimit is the length above which PathModeAuto falls back to the
// basename.
const autoPathLimit = 40

func formatPath(f *source.File, mode PathMode, base string) string {
	if f == nil {
		return "<unknown>"
	}
	if f.Flags&source.FileVirtual != 0 && mode != PathModeBasename {
		return f.Path
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(filepath.FromSlash(f.Path)); err == nil {
			return filepath.ToSlash(abs)
		}
	case PathModeRelative:
		if base == "" {
			base = "."
		}
		absBase, err1 := filepath.Abs(base)
		absPath, err2 := filepath.Abs(filepath.FromSlash(f.Path))
		if err1 == nil && err2 == nil {
			if rel, err := filepath.Rel(absBase, absPath); err == nil && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
	case PathModeBasename:
		return filepath.Base(f.Path)
	case PathModeAuto:
		if len(f.Path) > autoPathLimit {
			return filepath.Base(f.Path)
		}
	}
	return f.Path
}
