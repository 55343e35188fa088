// Package scan walks directory trees looking for tag files, images, and
// images nobody has tagged yet.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoggerFunc defines a function signature for logging messages.
type LoggerFunc func(message string)

// IsImage checks if a file name has an image extension we can display.
func IsImage(n string) bool {
	switch strings.ToLower(filepath.Ext(n)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// ImageFiles returns the absolute paths of the non-empty image files under
// dir, sorted, skipping ignored directories.
func ImageFiles(dir string, rules *Rules) ([]string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && rules.IgnoreDirectory(d.Name(), filepath.Dir(p)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsImage(p) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > 0 {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// TagDirs returns every directory below top (not top itself) whose tag file
// should be read, in walk order. Ignored directories are not descended into.
func TagDirs(top string, rules *Rules) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(top, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == top {
				return err
			}
			// An unreadable subdirectory just has no tags for us.
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() || p == top {
			return nil
		}
		if rules.IgnoreDirectory(d.Name(), filepath.Dir(p)) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	return dirs, err
}

// DirGroup is a set of file names that share a directory.
type DirGroup struct {
	Dir   string
	Names []string
}

// GroupByDirectory splits paths into directory and base name, grouping the
// names by directory. Groups and names are sorted.
func GroupByDirectory(paths []string) []DirGroup {
	byDir := make(map[string][]string)
	for _, p := range paths {
		dir, base := filepath.Split(p)
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		if dir == "" && strings.HasPrefix(p, string(filepath.Separator)) {
			dir = string(filepath.Separator)
		}
		byDir[dir] = append(byDir[dir], base)
	}
	groups := make([]DirGroup, 0, len(byDir))
	for dir, names := range byDir {
		sort.Strings(names)
		groups = append(groups, DirGroup{Dir: dir, Names: names})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Dir < groups[j].Dir })
	return groups
}
