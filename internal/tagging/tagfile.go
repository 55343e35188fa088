package tagging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"metapho/internal/scan"
)

// TagFileName is the name tags are saved under. KeywordsFileName is the
// older name, read when there is no Tags file.
const (
	TagFileName      = "Tags"
	KeywordsFileName = "Keywords"
)

const tagFilePerms = 0644

// ReadTags reads the tag file in dirname, if there is one, tagging the
// registry's images and creating non-displayed images for files it names
// that aren't known yet. With recursive set, tag files in subdirectories
// (minus ignored ones) are read first, so the top-level file is read last.
// A directory without a tag file is not an error.
func (t *Tagger) ReadTags(dirname string, recursive bool) error {
	dirname, err := filepath.Abs(dirname)
	if err != nil {
		return err
	}
	t.CheckCommonDir(dirname)

	if recursive {
		dirs, err := scan.TagDirs(dirname, t.rules)
		if err != nil {
			return fmt.Errorf("looking for tag files under %s: %w", dirname, err)
		}
		for _, d := range dirs {
			if err := t.ReadTags(d, false); err != nil {
				return err
			}
		}
	}

	if t.CurrentCategory == "" {
		t.CurrentCategory = DefaultCategory
	}
	t.Categories.ensure(t.CurrentCategory)

	f, pathname, err := openTagFile(dirname)
	if err != nil || f == nil {
		return err
	}
	defer f.Close()

	t.TagFiles = append(t.TagFiles, pathname)
	if err := t.parseTagFile(f, dirname, pathname); err != nil {
		return fmt.Errorf("reading %s: %w", pathname, err)
	}
	return nil
}

// openTagFile opens Tags in dir, else Keywords. Returns a nil file if
// neither exists.
func openTagFile(dir string) (*os.File, string, error) {
	for _, name := range []string{TagFileName, KeywordsFileName} {
		pathname := filepath.Join(dir, name)
		f, err := os.Open(pathname)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("opening tag file: %w", err)
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("opening tag file: %w", err)
		}
		if fi.IsDir() {
			f.Close()
			continue
		}
		return f, pathname, nil
	}
	return nil, "", nil
}

// ReadAllTagsForImages reads the tag files of every directory holding a
// known image, plus the directory common to them. Afterwards images that no
// longer exist are searched for under the common directory; found ones are
// moved, the rest dropped.
func (t *Tagger) ReadAllTagsForImages() error {
	seen := make(map[string]bool)
	var dirs []string
	for _, img := range t.images.Images() {
		d := filepath.Dir(img.Filename)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, d := range dirs {
		t.CheckCommonDir(d)
	}
	if t.CommonDir == "" {
		t.logMessage("No common directory; no tags read")
		return nil
	}
	if !seen[t.CommonDir] {
		dirs = append(dirs, t.CommonDir)
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		if err := t.ReadTags(d, false); err != nil {
			return err
		}
	}

	res, err := scan.RelocateMissing(t.images, t.CommonDir, t.rules, scan.LoggerFunc(t.logger))
	if err != nil {
		return err
	}
	if res.Changed() {
		t.Changed = true
	}
	return nil
}

// WriteTagFile saves the tags to a Tags file in CommonDir, keeping any
// previous one as Tags.bak. Does nothing unless something changed.
// Returns the path written, or "" if nothing was.
func (t *Tagger) WriteTagFile() (string, error) {
	if !t.Changed {
		t.logMessage("No tags changed; not rewriting Tags file")
		return "", nil
	}
	if t.CommonDir == "" {
		return "", ErrNoCommonDir
	}

	outpath := filepath.Join(t.CommonDir, TagFileName)
	t.logMessage("Saving to %s", outpath)

	if _, err := os.Lstat(outpath); err == nil {
		if err := os.Rename(outpath, outpath+".bak"); err != nil {
			return "", fmt.Errorf("backing up %s: %w", outpath, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", outpath, err)
	}

	if err := atomic.WriteFile(outpath, strings.NewReader(t.String())); err != nil {
		return "", fmt.Errorf("failed to write tag file: %w", err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(outpath, tagFilePerms); err != nil {
		return "", fmt.Errorf("failed to set file permissions: %w", err)
	}

	t.Changed = false
	return outpath, nil
}
