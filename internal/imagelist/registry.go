package imagelist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"
)

var (
	// ErrOutOfRange is returned when the cursor cannot move any further.
	ErrOutOfRange = errors.New("image index out of range")
	// ErrNotFound is returned when removing an image that isn't in the list.
	ErrNotFound = errors.New("image not in list")
)

// Registry is the ordered list of images in a session plus the cursor.
// The cursor is -1 when unset or when the list is empty, otherwise a valid index.
// A Registry is not safe for concurrent use.
type Registry struct {
	images       []*Image
	currentIndex int
}

// NewRegistry returns an empty registry with an unset cursor.
func NewRegistry() *Registry {
	return &Registry{currentIndex: -1}
}

// Add appends one or more images. No deduplication is done.
func (r *Registry) Add(imgs ...*Image) {
	r.images = append(r.images, imgs...)
}

// Images returns the underlying list. Callers may mutate the records but
// must not reorder or resize the slice.
func (r *Registry) Images() []*Image {
	return r.images
}

// Get returns the image at index i.
func (r *Registry) Get(i int) (*Image, error) {
	if i < 0 || i >= len(r.images) {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(r.images))
	}
	return r.images[i], nil
}

// Current returns the image under the cursor, or nil.
func (r *Registry) Current() *Image {
	if r.currentIndex < 0 || r.currentIndex >= len(r.images) {
		return nil
	}
	return r.images[r.currentIndex]
}

// CurrentIndex returns the cursor, -1 if unset.
func (r *Registry) CurrentIndex() int {
	return r.currentIndex
}

// SetCurrentIndex moves the cursor to i. -1 unsets it.
func (r *Registry) SetCurrentIndex(i int) error {
	if i < -1 || i >= len(r.images) {
		return fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(r.images))
	}
	r.currentIndex = i
	return nil
}

// Advance moves the cursor to the next viewable image.
// At the end of the list it returns ErrOutOfRange and leaves the cursor alone;
// callers treat that as "no more images".
func (r *Registry) Advance() error {
	for i := r.currentIndex + 1; i < len(r.images); i++ {
		if r.images[i].Viewable() {
			r.currentIndex = i
			return nil
		}
	}
	return fmt.Errorf("%w: no image after %d", ErrOutOfRange, r.currentIndex)
}

// Retreat moves the cursor to the previous viewable image.
func (r *Registry) Retreat() error {
	for i := r.currentIndex - 1; i >= 0; i-- {
		if r.images[i].Viewable() {
			r.currentIndex = i
			return nil
		}
	}
	return fmt.Errorf("%w: no image before %d", ErrOutOfRange, r.currentIndex)
}

// Index returns the position of the image with the given filename, or -1.
func (r *Registry) Index(filename string) int {
	for i, img := range r.images {
		if img.Filename == filename {
			return i
		}
	}
	return -1
}

// Find returns the image with the given filename, or nil.
func (r *Registry) Find(filename string) *Image {
	if i := r.Index(filename); i >= 0 {
		return r.images[i]
	}
	return nil
}

// Remove deletes img from the list, or the current image if img is nil.
func (r *Registry) Remove(img *Image) error {
	if img == nil {
		img = r.Current()
		if img == nil {
			return fmt.Errorf("%w: no current image", ErrNotFound)
		}
	}
	i := slices.Index(r.images, img)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, img.Filename)
	}
	_, err := r.Pop(i)
	return err
}

// PopCurrent removes and returns the current image.
func (r *Registry) PopCurrent() (*Image, error) {
	return r.Pop(r.currentIndex)
}

// Pop removes and returns the image at index i.
//
// If the removed image was at or before the cursor, the cursor steps back
// to the previous image (clamped at 0) so that a following Advance lands on
// what is now the next image.
func (r *Registry) Pop(i int) (*Image, error) {
	if i < 0 || i >= len(r.images) {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(r.images))
	}
	img := r.images[i]
	r.images = slices.Delete(r.images, i, i+1)

	if len(r.images) == 0 {
		r.currentIndex = -1
		return img, nil
	}
	if r.currentIndex >= 0 && i <= r.currentIndex {
		r.currentIndex--
		if r.currentIndex < 0 {
			r.currentIndex = 0
		}
	}
	return img, nil
}

// Len returns the number of images, including ghosts and invalid entries.
func (r *Registry) Len() int {
	return len(r.images)
}

// NumValid returns the number of images that can be viewed.
func (r *Registry) NumValid() int {
	n := 0
	for _, img := range r.images {
		if img.Viewable() {
			n++
		}
	}
	return n
}

// Clear empties the list and unsets the cursor.
func (r *Registry) Clear() {
	r.images = nil
	r.currentIndex = -1
}

// NonexistentFiles returns the sorted, deduplicated filenames of images
// that don't exist on disk.
func (r *Registry) NonexistentFiles() []string {
	seen := make(map[string]bool)
	var missing []string
	for _, img := range r.images {
		if seen[img.Filename] {
			continue
		}
		seen[img.Filename] = true
		if _, err := os.Stat(img.Filename); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, img.Filename)
		}
	}
	sort.Strings(missing)
	return missing
}
