package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"metapho/internal/config"
	"metapho/internal/imagelist"
)

// NoTagsFile marks a directory that should never be tagged or reported.
const NoTagsFile = "NoTags"

// Rules decides which directories are ignored and which files are expected
// to carry tags.
type Rules struct {
	skipExtensions map[string]bool
	ignoreDirnames []*regexp.Regexp
}

// CompileRules builds Rules from a config. Ignore patterns match at the
// start of a directory name.
func CompileRules(cfg config.Config) (*Rules, error) {
	r := &Rules{skipExtensions: make(map[string]bool, len(cfg.SkipExtensions))}
	for _, ext := range cfg.SkipExtensions {
		r.skipExtensions[strings.ToLower(ext)] = true
	}
	for _, pat := range cfg.IgnoreDirnames {
		re, err := regexp.Compile("^(?:" + pat + ")")
		if err != nil {
			return nil, fmt.Errorf("bad ignore pattern %q: %w", pat, err)
		}
		r.ignoreDirnames = append(r.ignoreDirnames, re)
	}
	return r, nil
}

// DefaultRules returns the rules for config.Default.
func DefaultRules() *Rules {
	r, err := CompileRules(config.Default())
	if err != nil {
		panic(err) // the defaults are constant
	}
	return r
}

// IgnoreDirectory reports whether directory name inside parent should be
// skipped: its name matches an ignore pattern, or it contains a NoTags file.
// parent may be empty to check the name only.
func (r *Rules) IgnoreDirectory(name, parent string) bool {
	for _, re := range r.ignoreDirnames {
		if re.MatchString(name) {
			return true
		}
	}
	if parent != "" {
		if _, err := os.Stat(filepath.Join(parent, name, NoTagsFile)); err == nil {
			return true
		}
	}
	return false
}

// Taggable reports whether a file with this name is plausibly an image that
// should carry tags: it has an extension that isn't skipped and it isn't a
// tag file.
func (r *Rules) Taggable(name string) bool {
	if imagelist.IsTagFileName(name) || strings.HasPrefix(name, ".") {
		return false
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	return !r.skipExtensions[strings.ToLower(ext)]
}
