// Package imagelist holds the images known to a tagging session and the
// cursor pointing at the one currently being viewed.
package imagelist

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// RotUnknown means the rotation has not been determined yet.
const RotUnknown = -1

// Image is one image file plus its tag assignments.
type Image struct {
	Filename  string // Absolute path, the identity key
	Relpath   string // Path as originally supplied
	Tags      []int  // Tag numbers, no duplicates
	Displayed bool   // False for records only known from a tag file
	Invalid   bool   // Not a real image (tag file, undecodable, ...)
	Rot       int    // Rotation in degrees relative to disk; RotUnknown if not probed
}

// NewImage creates a record for the given path. Pass displayed=false for
// images that are only remembered for their tags and not viewed this session.
func NewImage(path string, displayed bool) *Image {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Image{
		Filename:  abs,
		Relpath:   path,
		Displayed: displayed,
		Invalid:   IsTagFileName(filepath.Base(path)),
		Rot:       RotUnknown,
	}
}

// IsTagFileName reports whether name is a tag file or the backup of one.
func IsTagFileName(name string) bool {
	name = strings.TrimSuffix(name, ".bak")
	return name == "Tags" || name == "Keywords"
}

// Viewable reports whether navigation should stop on this image.
func (img *Image) Viewable() bool {
	return img.Displayed && !img.Invalid
}

// HasTag reports whether tag number tagno is assigned to the image.
func (img *Image) HasTag(tagno int) bool {
	return slices.Contains(img.Tags, tagno)
}

// AddTag appends tagno unless it is already present. Returns true if added.
func (img *Image) AddTag(tagno int) bool {
	if img.HasTag(tagno) {
		return false
	}
	img.Tags = append(img.Tags, tagno)
	return true
}

// RemoveTag drops tagno from the image. Returns true if it was there.
func (img *Image) RemoveTag(tagno int) bool {
	i := slices.Index(img.Tags, tagno)
	if i < 0 {
		return false
	}
	img.Tags = slices.Delete(img.Tags, i, i+1)
	return true
}

// Equal reports whether both records name the same file with the same tags.
func (img *Image) Equal(other *Image) bool {
	if img == nil || other == nil {
		return img == other
	}
	return img.Filename == other.Filename && slices.Equal(img.Tags, other.Tags)
}

// Less orders images by filename.
func (img *Image) Less(other *Image) bool {
	return img.Filename < other.Filename
}

func (img *Image) String() string {
	s := fmt.Sprintf("Image '%s'", img.Filename)
	if img.Rot > 0 {
		s += fmt.Sprintf(" (rotation %d)", img.Rot)
	}
	if len(img.Tags) > 0 {
		s += fmt.Sprintf(": Tags: %v", img.Tags)
	}
	return s
}

// MatchPath reports whether a path read from a tag file refers to img.
//
// Tag files traditionally store bare filenames, so besides an exact match on
// the absolute filename this accepts any fragment ending in the record's
// relpath on a path-component boundary. Two images with the same relpath in
// different directories are indistinguishable to this check; parsing one
// directory at a time keeps that from mattering in practice.
func MatchPath(img *Image, fragment string) bool {
	if fragment == "" {
		return false
	}
	fragment = filepath.Clean(fragment)
	if img.Filename == fragment {
		return true
	}
	if img.Relpath == "" {
		return false
	}
	rel := filepath.Clean(img.Relpath)
	if filepath.IsAbs(rel) {
		return rel == fragment
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return fragment == rel || strings.HasSuffix(fragment, string(filepath.Separator)+rel)
}
