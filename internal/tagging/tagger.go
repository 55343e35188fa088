// Package tagging manages image tags: the tag vocabulary, the categories
// grouping it, and the Tags files they are read from and saved to.
//
// A tag is stored once in the tag list; everywhere else it is referred to by
// its index there, the tag number. Tag numbers are never reused or
// renumbered during a session. Deleting a tag leaves an empty string in its
// slot.
package tagging

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"metapho/internal/imagelist"
	"metapho/internal/scan"
)

// DefaultCategory is the category tags go into when nothing else is chosen.
const DefaultCategory = "Tags"

var (
	ErrUnknownTag       = errors.New("unknown tag")
	ErrEmptyTagName     = errors.New("tag name cannot be empty")
	ErrDuplicateTag     = errors.New("tag already exists")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrCategoryExists   = errors.New("category already exists")
	ErrNoCurrentImage   = errors.New("no current image")
	ErrNoCommonDir      = errors.New("no directory to save tags in")
	errEmptyCategoryArg = errors.New("category name cannot be empty")
)

// LoggerFunc defines a function signature for logging messages.
// This allows front-ends to provide their logging mechanism.
type LoggerFunc func(message string)

// TagWithCount holds a tag name and the number of images carrying it.
type TagWithCount struct {
	Name  string
	Count int
}

// Tagger owns the tag vocabulary and categories and applies tags to the
// images of a Registry. It is not safe for concurrent use.
type Tagger struct {
	// TagList holds every tag name; the index is the tag number.
	TagList []string
	// Categories groups tag numbers under names.
	Categories *Categories
	// CurrentCategory receives new tags, both while parsing and from the UI.
	CurrentCategory string
	// CommonDir is the common path of every directory read, where tags are saved.
	CommonDir string
	// Changed is set by every mutation; WriteTagFile does nothing without it.
	Changed bool
	// TagFiles lists the tag files read so far.
	TagFiles []string

	images *imagelist.Registry
	rules  *scan.Rules
	logger LoggerFunc
}

// NewTagger creates a Tagger working on the given images. rules decides which
// subdirectories are read recursively; nil means the defaults. logger may be nil.
func NewTagger(images *imagelist.Registry, rules *scan.Rules, logger LoggerFunc) *Tagger {
	if rules == nil {
		rules = scan.DefaultRules()
	}
	return &Tagger{
		Categories:      newCategories(),
		CurrentCategory: DefaultCategory,
		images:          images,
		rules:           rules,
		logger:          logger,
	}
}

// Images returns the registry the tagger works on.
func (t *Tagger) Images() *imagelist.Registry {
	return t.images
}

// logMessage is a helper to use the configured logger or fall back to standard log.
func (t *Tagger) logMessage(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger(fmt.Sprintf(format, args...))
	} else {
		log.Printf(format, args...)
	}
}

// TagIndex returns the tag number for name, or -1.
func (t *Tagger) TagIndex(name string) int {
	if name == "" {
		return -1
	}
	return slices.Index(t.TagList, name)
}

// TagName returns the name of tag number tagno, "" if it doesn't exist.
func (t *Tagger) TagName(tagno int) string {
	if tagno < 0 || tagno >= len(t.TagList) {
		return ""
	}
	return t.TagList[tagno]
}

func (t *Tagger) validTag(tagno int) bool {
	return t.TagName(tagno) != ""
}

// newTag appends name to the tag list and files it under the current category.
func (t *Tagger) newTag(name string) int {
	tagno := len(t.TagList)
	t.TagList = append(t.TagList, name)
	t.Categories.add(t.CurrentCategory, tagno)
	return tagno
}

// AddTagByIndex assigns an existing tag number to img.
func (t *Tagger) AddTagByIndex(tagno int, img *imagelist.Image) (int, error) {
	if !t.validTag(tagno) {
		return -1, fmt.Errorf("%w: %d", ErrUnknownTag, tagno)
	}
	t.Changed = true
	img.AddTag(tagno)
	return tagno, nil
}

// AddTagByName assigns the named tag to img, creating it if it's new.
// The tag is also filed under the current category. Returns its tag number.
func (t *Tagger) AddTagByName(name string, img *imagelist.Image) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, ErrEmptyTagName
	}
	t.Changed = true

	tagno := t.TagIndex(name)
	if tagno < 0 {
		tagno = t.newTag(name)
	} else {
		t.Categories.add(t.CurrentCategory, tagno)
	}
	img.AddTag(tagno)
	return tagno, nil
}

// RemoveTagByIndex removes a tag number from img only.
func (t *Tagger) RemoveTagByIndex(tagno int, img *imagelist.Image) {
	t.Changed = true
	img.RemoveTag(tagno)
}

// RemoveTagByName deletes the named tag altogether: its slot in the tag list
// is emptied, and it is removed from every category and every image,
// including img. Returns false if there was no such tag.
func (t *Tagger) RemoveTagByName(name string, img *imagelist.Image) bool {
	t.Changed = true
	if img != nil {
		if tagno := t.TagIndex(name); tagno >= 0 {
			img.RemoveTag(tagno)
		}
	}
	return t.DeleteTag(name)
}

// DeleteTag empties the named tag's slot and sweeps its number out of all
// categories and images, so no stale reference to it remains.
func (t *Tagger) DeleteTag(name string) bool {
	tagno := t.TagIndex(name)
	if tagno < 0 {
		return false
	}
	t.Changed = true
	t.TagList[tagno] = ""
	t.Categories.removeTag(tagno)
	for _, img := range t.images.Images() {
		img.RemoveTag(tagno)
	}
	return true
}

// ToggleTag removes tag number tagno from img if it has it, else adds it.
func (t *Tagger) ToggleTag(tagno int, img *imagelist.Image) error {
	if !t.validTag(tagno) {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tagno)
	}
	t.Changed = true
	if !img.RemoveTag(tagno) {
		img.AddTag(tagno)
	}
	return nil
}

// ChangeTag edits entry entryno of the current category.
//
// If the entry exists its tag is renamed to newstr, which renames it in
// every category and on every image since they share the tag number. An
// entry past the end of the category makes newstr a new tag on the current
// image. Blank strings are ignored. Returns the affected tag number, or -1.
func (t *Tagger) ChangeTag(entryno int, newstr string) (int, error) {
	newstr = strings.TrimSpace(newstr)
	if newstr == "" || entryno < 0 {
		return -1, nil
	}

	entries := t.Categories.Tags(t.CurrentCategory)
	if entryno < len(entries) {
		tagno := entries[entryno]
		if t.TagList[tagno] == newstr {
			return tagno, nil
		}
		if t.TagIndex(newstr) >= 0 {
			return -1, fmt.Errorf("%w: %s", ErrDuplicateTag, newstr)
		}
		t.TagList[tagno] = newstr
		t.Changed = true
		return tagno, nil
	}

	cur := t.images.Current()
	if cur == nil {
		return -1, ErrNoCurrentImage
	}
	return t.AddTagByName(newstr, cur)
}

// RenameTag renames a tag everywhere. Renaming onto an existing name is an error.
func (t *Tagger) RenameTag(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyTagName
	}
	tagno := t.TagIndex(oldName)
	if tagno < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTag, oldName)
	}
	if oldName == newName {
		return nil
	}
	if t.TagIndex(newName) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, newName)
	}
	t.TagList[tagno] = newName
	t.Changed = true
	return nil
}

// ClearTags removes every tag from img. The tag list is untouched.
func (t *Tagger) ClearTags(img *imagelist.Image) {
	img.Tags = nil
	t.Changed = true
}

// SetCurrentCategory switches the current category, creating it if needed.
func (t *Tagger) SetCurrentCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errEmptyCategoryArg
	}
	if !t.Categories.Has(name) {
		t.Categories.ensure(name)
		t.Changed = true
	}
	t.CurrentCategory = name
	return nil
}

// RenameCategory renames a category keeping its position and tags.
func (t *Tagger) RenameCategory(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return errEmptyCategoryArg
	}
	if !t.Categories.Has(oldName) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, oldName)
	}
	if oldName == newName {
		return nil
	}
	if t.Categories.Has(newName) {
		return fmt.Errorf("%w: %s", ErrCategoryExists, newName)
	}
	if err := t.Categories.rename(oldName, newName); err != nil {
		return fmt.Errorf("renaming category %s: %w", oldName, err)
	}
	if t.CurrentCategory == oldName {
		t.CurrentCategory = newName
	}
	t.Changed = true
	return nil
}

// HasTagsIn reports whether img carries any tag from the named category.
func (t *Tagger) HasTagsIn(img *imagelist.Image, category string) bool {
	for _, tagno := range t.Categories.Tags(category) {
		if img.HasTag(tagno) {
			return true
		}
	}
	return false
}

// TagNames returns the names of img's tags in assignment order.
func (t *Tagger) TagNames(img *imagelist.Image) []string {
	names := make([]string, 0, len(img.Tags))
	for _, tagno := range img.Tags {
		if name := t.TagName(tagno); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ImagesWithTag returns the images carrying tagno, sorted by filename.
func (t *Tagger) ImagesWithTag(tagno int) []*imagelist.Image {
	var imgs []*imagelist.Image
	for _, img := range t.images.Images() {
		if img.HasTag(tagno) {
			imgs = append(imgs, img)
		}
	}
	sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].Less(imgs[j]) })
	return imgs
}

// AllTags returns every live tag with the number of images carrying it,
// sorted by name.
func (t *Tagger) AllTags() []TagWithCount {
	counts := make(map[int]int)
	for _, img := range t.images.Images() {
		for _, tagno := range img.Tags {
			counts[tagno]++
		}
	}
	var all []TagWithCount
	for tagno, name := range t.TagList {
		if name == "" {
			continue
		}
		all = append(all, TagWithCount{Name: name, Count: counts[tagno]})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// CheckCommonDir folds dir into CommonDir.
func (t *Tagger) CheckCommonDir(dir string) {
	if t.CommonDir == "" {
		t.CommonDir = filepath.Clean(dir)
		return
	}
	t.CommonDir = CommonPrefix(t.CommonDir, dir)
}

// CommonPrefix returns the longest path shared by all paths, compared a
// whole component at a time so that /a/bc and /a/bd give /a and not /a/b.
// Absolute paths with nothing else in common share the root.
func CommonPrefix(paths ...string) string {
	if len(paths) == 0 {
		return ""
	}
	sep := string(filepath.Separator)
	split := make([][]string, len(paths))
	allAbs := true
	for i, p := range paths {
		p = filepath.Clean(p)
		allAbs = allAbs && filepath.IsAbs(p)
		split[i] = strings.Split(p, sep)
	}

	var common []string
	for i, name := range split[0] {
		for _, s := range split[1:] {
			if i >= len(s) || s[i] != name {
				return joinPrefix(common, allAbs)
			}
		}
		common = append(common, name)
	}
	return joinPrefix(common, allAbs)
}

func joinPrefix(common []string, abs bool) string {
	sep := string(filepath.Separator)
	p := strings.Join(common, sep)
	if p == "" {
		if abs {
			return sep
		}
		return ""
	}
	return filepath.Clean(p)
}
