package scan

import (
	"os"
	"path/filepath"

	"metapho/internal/imagelist"
)

// FindUntaggedFiles walks topdir and reports what still needs tagging.
//
// A directory where at least one taggable file already carries tags
// contributes its untagged files individually. A directory where nothing is
// tagged is reported as a whole in dirs instead, since it was presumably
// never processed. Ignored directories and those holding a NoTags file are
// neither descended into nor reported. All paths are absolute.
func FindUntaggedFiles(images *imagelist.Registry, topdir string, rules *Rules) (files, dirs []string, err error) {
	topdir, err = filepath.Abs(topdir)
	if err != nil {
		return nil, nil, err
	}

	tagged := make(map[string]bool)
	for _, img := range images.Images() {
		if len(img.Tags) > 0 {
			tagged[img.Filename] = true
		}
	}

	var (
		localUntagged []string
		someTagged    bool
		nfiles        int
	)
	flush := func(dir string) {
		if someTagged {
			files = append(files, localUntagged...)
		} else if nfiles > 0 {
			dirs = append(dirs, dir)
		}
		localUntagged, someTagged, nfiles = nil, false, 0
	}

	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		var subdirs []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if !rules.IgnoreDirectory(name, dir) {
					subdirs = append(subdirs, filepath.Join(dir, name))
				}
				continue
			}
			if !rules.Taggable(name) {
				continue
			}
			nfiles++
			p := filepath.Join(dir, name)
			if tagged[p] {
				someTagged = true
			} else {
				localUntagged = append(localUntagged, p)
			}
		}
		flush(dir)
		for _, sub := range subdirs {
			if err := walkDir(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walkDir(topdir); err != nil {
		return nil, nil, err
	}
	return files, dirs, nil
}
