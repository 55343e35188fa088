// Package service ties the image registry, the tagger and the scanners
// together behind the operations the front-ends need.
package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"metapho/internal/imagelist"
	"metapho/internal/scan"
	"metapho/internal/tagging"
)

var ErrInvalidTagName = errors.New("invalid tag name")

// Prober fills in details of an image record from its file.
type Prober interface {
	Apply(img *imagelist.Image) error
}

// Indexer receives a copy of the tags after they change.
type Indexer interface {
	Rebuild(s tagging.Snapshot) error
}

// Service is the main entry point for business logic.
type Service struct {
	Images *imagelist.Registry
	Tagger *tagging.Tagger
	Rules  *scan.Rules
	Prober Prober // may be nil
	Logger func(string)
}

// NewService constructs a Service with an empty registry. rules may be nil
// for the defaults.
func NewService(rules *scan.Rules, prober Prober, logger func(string)) *Service {
	if rules == nil {
		rules = scan.DefaultRules()
	}
	if logger == nil {
		logger = func(string) {}
	}
	images := imagelist.NewRegistry()
	return &Service{
		Images: images,
		Tagger: tagging.NewTagger(images, rules, tagging.LoggerFunc(logger)),
		Rules:  rules,
		Prober: prober,
		Logger: logger,
	}
}

// AddImages adds the given files, and the images under the given
// directories, for viewing. Known images that were only remembered from a
// tag file become displayed. Returns the number of images added. The cursor
// moves to the first viewable image if it wasn't set.
func (s *Service) AddImages(paths []string) (int, error) {
	added := 0
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return added, fmt.Errorf("adding %s: %w", p, err)
		}
		files := []string{p}
		if fi.IsDir() {
			files, err = scan.ImageFiles(p, s.Rules)
			if err != nil {
				return added, fmt.Errorf("scanning %s: %w", p, err)
			}
		}
		for _, f := range files {
			if s.addImage(f) {
				added++
			}
		}
	}
	if s.Images.CurrentIndex() < 0 {
		_ = s.Images.Advance()
	}
	return added, nil
}

func (s *Service) addImage(path string) bool {
	img := imagelist.NewImage(path, true)
	if known := s.Images.Find(img.Filename); known != nil {
		known.Displayed = true
		return false
	}
	if s.Prober != nil {
		if err := s.Prober.Apply(img); err != nil {
			s.Logger(fmt.Sprintf("Can't read %s: %v", path, err))
		}
	}
	s.Images.Add(img)
	return true
}

// LoadTags reads the tag files of the given directories.
func (s *Service) LoadTags(dirs []string, recursive bool) error {
	for _, d := range dirs {
		if err := s.Tagger.ReadTags(d, recursive); err != nil {
			return err
		}
	}
	return nil
}

// LoadTagsForImages reads the tag files covering the images added so far.
func (s *Service) LoadTagsForImages() error {
	return s.Tagger.ReadAllTagsForImages()
}

func validTagName(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.ContainsAny(tag, ",\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidTagName, tag)
	}
	return nil
}

func (s *Service) image(imagePath string) (*imagelist.Image, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, err
	}
	img := s.Images.Find(abs)
	if img == nil {
		return nil, fmt.Errorf("%w: %s", imagelist.ErrNotFound, imagePath)
	}
	return img, nil
}

// AddTagsToImage adds one or more tags to a known image.
func (s *Service) AddTagsToImage(imagePath string, tags []string) error {
	if imagePath == "" || len(tags) == 0 {
		return errors.New("image path and tags required")
	}
	img, err := s.image(imagePath)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if err := validTagName(tag); err != nil {
			return err
		}
		if _, err := s.Tagger.AddTagByName(tag, img); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTagsFromImage removes one or more tags from a known image. The
// tags stay defined.
func (s *Service) RemoveTagsFromImage(imagePath string, tags []string) error {
	if imagePath == "" || len(tags) == 0 {
		return errors.New("image path and tags required")
	}
	img, err := s.image(imagePath)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		tagno := s.Tagger.TagIndex(tag)
		if tagno < 0 {
			return fmt.Errorf("%w: %s", tagging.ErrUnknownTag, tag)
		}
		s.Tagger.RemoveTagByIndex(tagno, img)
	}
	return nil
}

// ListTagsForImage returns the tags of an image.
func (s *Service) ListTagsForImage(imagePath string) ([]string, error) {
	img, err := s.image(imagePath)
	if err != nil {
		return nil, err
	}
	return s.Tagger.TagNames(img), nil
}

// ListImagesForTag returns the filenames of the images carrying tag, sorted.
func (s *Service) ListImagesForTag(tag string) ([]string, error) {
	tagno := s.Tagger.TagIndex(tag)
	if tagno < 0 {
		return nil, fmt.Errorf("%w: %s", tagging.ErrUnknownTag, tag)
	}
	var paths []string
	for _, img := range s.Tagger.ImagesWithTag(tagno) {
		paths = append(paths, img.Filename)
	}
	return paths, nil
}

// ListAllTags returns all tags with their image counts.
func (s *Service) ListAllTags() []tagging.TagWithCount {
	return s.Tagger.AllTags()
}

// ReplaceTag replaces oldTag with newTag across all images. If newTag
// already exists the two are merged.
func (s *Service) ReplaceTag(oldTag, newTag string) error {
	if oldTag == "" || newTag == "" || oldTag == newTag {
		return errors.New("invalid tags")
	}
	if err := validTagName(newTag); err != nil {
		return err
	}
	oldno := s.Tagger.TagIndex(oldTag)
	if oldno < 0 {
		return fmt.Errorf("%w: %s", tagging.ErrUnknownTag, oldTag)
	}
	newno := s.Tagger.TagIndex(newTag)
	if newno < 0 {
		return s.Tagger.RenameTag(oldTag, newTag)
	}

	for _, img := range s.Tagger.ImagesWithTag(oldno) {
		if _, err := s.Tagger.AddTagByIndex(newno, img); err != nil {
			return err
		}
	}
	s.Logger(fmt.Sprintf("Merged tag '%s' into '%s'", oldTag, newTag))
	s.Tagger.DeleteTag(oldTag)
	return nil
}

// RemoveTagGlobally deletes a tag, removing it from every image. Returns
// how many images had it.
func (s *Service) RemoveTagGlobally(tag string) (int, error) {
	tagno := s.Tagger.TagIndex(tag)
	if tagno < 0 {
		return 0, fmt.Errorf("%w: %s", tagging.ErrUnknownTag, tag)
	}
	n := len(s.Tagger.ImagesWithTag(tagno))
	s.Tagger.DeleteTag(tag)
	return n, nil
}

// BatchAddTagsToDirectory adds tags to every image under dir, adding the
// images to the registry as needed. Returns the number of images tagged.
func (s *Service) BatchAddTagsToDirectory(dir string, tags []string) (int, error) {
	if dir == "" || len(tags) == 0 {
		return 0, errors.New("directory and tags required")
	}
	for _, tag := range tags {
		if err := validTagName(tag); err != nil {
			return 0, err
		}
	}
	files, err := scan.ImageFiles(dir, s.Rules)
	if err != nil {
		return 0, err
	}
	tagged := 0
	for _, file := range files {
		s.addImage(file)
		if err := s.AddTagsToImage(file, tags); err != nil {
			s.Logger(fmt.Sprintf("Failed to tag %s: %v", file, err))
			continue
		}
		tagged++
	}
	return tagged, nil
}

// Untagged reports the files and directories under topdir that still need
// tagging.
func (s *Service) Untagged(topdir string) (files, dirs []string, err error) {
	return scan.FindUntaggedFiles(s.Images, topdir, s.Rules)
}

// Missing returns the known images that no longer exist on disk.
func (s *Service) Missing() []string {
	return s.Images.NonexistentFiles()
}

// Save writes the Tags file if anything changed. Returns its path, or ""
// if nothing needed saving.
func (s *Service) Save() (string, error) {
	return s.Tagger.WriteTagFile()
}

// UpdateIndex copies the current tags to ix.
func (s *Service) UpdateIndex(ix Indexer) error {
	if err := ix.Rebuild(s.Tagger.Snapshot()); err != nil {
		return fmt.Errorf("updating tag index: %w", err)
	}
	return nil
}
