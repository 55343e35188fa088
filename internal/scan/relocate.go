package scan

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"metapho/internal/imagelist"
)

// Relocation reports what RelocateMissing did.
type Relocation struct {
	Moved   map[string]string // old filename -> new filename
	Removed []string          // filenames dropped from the registry, sorted
}

// Changed reports whether any record was touched.
func (r Relocation) Changed() bool {
	return len(r.Moved) > 0 || len(r.Removed) > 0
}

// RelocateMissing looks for images that no longer exist on disk and tries to
// find them again under topdir by base name, on the assumption that they were
// moved into a different subdirectory. Found ones get their path rewritten;
// the rest are removed from the registry. Missing files sharing a base name
// are paired with the candidates in sorted order, and files that are already
// known images are never candidates.
func RelocateMissing(images *imagelist.Registry, topdir string, rules *Rules, logger LoggerFunc) (Relocation, error) {
	logf := func(format string, args ...interface{}) {
		if logger != nil {
			logger(fmt.Sprintf(format, args...))
		} else {
			log.Printf(format, args...)
		}
	}

	res := Relocation{Moved: make(map[string]string)}
	missing := images.NonexistentFiles()
	if len(missing) == 0 {
		return res, nil
	}

	byBase := make(map[string][]string, len(missing))
	for _, f := range missing {
		base := filepath.Base(f)
		byBase[base] = append(byBase[base], f)
	}

	found := make(map[string][]string)
	err := filepath.WalkDir(topdir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == topdir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != topdir && rules.IgnoreDirectory(d.Name(), filepath.Dir(p)) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := byBase[d.Name()]; !ok {
			return nil
		}
		p = filepath.Clean(p)
		if images.Find(p) != nil {
			return nil
		}
		found[d.Name()] = append(found[d.Name()], p)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("searching %s for moved files: %w", topdir, err)
	}

	bases := make([]string, 0, len(byBase))
	for base := range byBase {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for _, base := range bases {
		olds, hits := byBase[base], found[base]
		if len(olds) > 1 || len(hits) > 1 {
			logf("Warning: %d missing files named %s, %d found", len(olds), base, len(hits))
		}
		for i, old := range olds {
			if i >= len(hits) {
				res.Removed = append(res.Removed, old)
				continue
			}
			for _, img := range images.Images() {
				if img.Filename == old {
					img.Filename = hits[i]
					img.Relpath = hits[i]
				}
			}
			res.Moved[old] = hits[i]
		}
	}

	sort.Strings(res.Removed)
	if len(res.Removed) > 0 {
		logf("Removing missing files from Tags file: %s", strings.Join(res.Removed, " "))
	}
	for _, old := range res.Removed {
		for {
			img := images.Find(old)
			if img == nil {
				break
			}
			if err := images.Remove(img); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
