package tagging

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"metapho/internal/imagelist"
)

/*
Format of a Tags (or Keywords) file:

	category Animals
	tag squirrels: img_001.jpg img_030.jpg
	tag horses, ponies: img_042.jpg
	penguins: "img 008.jpg"

	category Places
	tag New Mexico: img_020.jpg img_042.jpg

Category lines are optional and switch the category that following tags are
filed under. "tag " at the start of a tag line is optional, and several
comma-separated tags may share one line. Everything after the last colon is
a list of filenames, split like shell words, relative to the file's
directory. Lines starting with "tagtype " or "photo " are accepted and
ignored. Anything else without a colon is ignored.
*/

// maxLineLength bounds a single tag line; one tag can list many files.
const maxLineLength = 16 * 1024 * 1024

// parseTagFile reads tag file content from r. dirname is the directory the
// file lives in and pathname its path, for diagnostics.
func (t *Tagger) parseTagFile(r io.Reader, dirname, pathname string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineno := 0
	for sc.Scan() {
		lineno++
		t.parseLine(strings.TrimRight(sc.Text(), "\r"), dirname, pathname, lineno)
	}
	return sc.Err()
}

func (t *Tagger) parseLine(line, dirname, pathname string, lineno int) {
	// The one line type that doesn't need a colon.
	if rest, ok := strings.CutPrefix(line, "category "); ok {
		name := strings.TrimSpace(rest)
		if name == "" {
			t.logMessage("%s:%d: parse error: couldn't read category name: %q", pathname, lineno, line)
			return
		}
		t.CurrentCategory = name
		t.Categories.ensure(name)
		return
	}

	// Tags may contain colons, filenames usually don't.
	colon := strings.LastIndex(line, ":")
	if colon < 0 {
		return
	}
	head, tail := line[:colon], line[colon+1:]

	words, err := shellquote.Split(strings.TrimSpace(tail))
	if err != nil {
		t.logMessage("%s:%d: couldn't parse %q: %v", pathname, lineno, line, err)
		return
	}
	paths := resolvePaths(dirname, words)

	if strings.HasPrefix(head, "tagtype ") || strings.HasPrefix(head, "photo ") {
		return
	}

	head = strings.TrimPrefix(head, "tag ")
	for _, name := range strings.Split(head, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t.processTag(name, paths)
	}
}

// resolvePaths makes the filenames of a tag line relative to dirname.
func resolvePaths(dirname string, words []string) []string {
	if dirname == "." {
		return words
	}
	paths := make([]string, len(words))
	for i, w := range words {
		if filepath.IsAbs(w) {
			paths[i] = filepath.Clean(w)
		} else {
			paths[i] = filepath.Join(dirname, w)
		}
	}
	return paths
}

// processTag applies a tag read from a file to the given paths, adding the
// tag to the tag list and the current category as needed. Paths that match
// no known image become non-displayed images so their tags are kept.
func (t *Tagger) processTag(name string, paths []string) {
	tagno := t.TagIndex(name)
	if tagno < 0 {
		tagno = t.newTag(name)
	} else {
		t.Categories.add(t.CurrentCategory, tagno)
	}

	for _, p := range paths {
		if img := t.findImage(p); img != nil {
			img.AddTag(tagno)
			continue
		}
		ghost := imagelist.NewImage(p, false)
		ghost.Tags = []int{tagno}
		t.images.Add(ghost)
	}
}

// findImage returns the record for path p: the one with exactly that
// filename if there is one, else the first whose relpath matches.
func (t *Tagger) findImage(p string) *imagelist.Image {
	if img := t.images.Find(filepath.Clean(p)); img != nil {
		return img
	}
	for _, img := range t.images.Images() {
		if imagelist.MatchPath(img, p) {
			return img
		}
	}
	return nil
}

// String returns the tag state in tag file format: a block per category,
// each tag followed by the sorted paths of its images relative to CommonDir.
// Deleted tags are left out.
func (t *Tagger) String() string {
	var b strings.Builder
	for _, cat := range t.Categories.Names() {
		b.WriteString("\ncategory " + cat + "\n\n")
		for _, tagno := range t.Categories.Tags(cat) {
			name := t.TagName(tagno)
			if strings.TrimSpace(name) == "" {
				continue
			}
			// Tags no image carries yet are written with an empty list so
			// they survive a reload.
			b.WriteString("tag " + name + " :")
			for _, img := range t.ImagesWithTag(tagno) {
				b.WriteString(" " + quoteFilename(t.relativePath(img.Filename)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// relativePath strips CommonDir from filename when it is inside it.
func (t *Tagger) relativePath(filename string) string {
	if t.CommonDir == "" {
		return filename
	}
	prefix := t.CommonDir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if rel, ok := strings.CutPrefix(filename, prefix); ok && rel != "" {
		return rel
	}
	return filename
}

// quoteFilename quotes a name so that shell-word splitting gives it back.
// Names with spaces get double quotes, as tag files always had.
func quoteFilename(name string) string {
	if !strings.ContainsAny(name, " \t\n'\"\\") {
		return name
	}
	if !strings.ContainsAny(name, "\"\\\n$`") {
		return `"` + name + `"`
	}
	return shellquote.Join(name)
}
