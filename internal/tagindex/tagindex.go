// Package tagindex keeps a BoltDB copy of the tags read from Tags files, so
// tag queries over large photo trees don't need every file parsed again.
// The Tags files stay authoritative; the index is rebuilt from them.
package tagindex

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"metapho/internal/tagging"
)

const (
	DefaultFileName    = "metapho_tags.db"
	ImagesToTagsBucket = "ImagesToTags" // image path -> tag names
	TagsToImagesBucket = "TagsToImages" // tag name -> image paths
	CategoriesBucket   = "Categories"   // category name -> tag names
	metaBucket         = "Meta"         // category order
)

var categoryOrderKey = []byte("category_order")

// LoggerFunc defines a function signature for logging messages.
type LoggerFunc func(message string)

// Index manages the tag index database.
type Index struct {
	db     *bolt.DB
	logger LoggerFunc
}

// DefaultPath returns the index location under the user cache directory,
// creating the directory if needed.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not get user cache dir: %w", err)
	}
	dir := filepath.Join(cacheDir, "metapho")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// Open creates or opens the index file at path.
func Open(path string, logger LoggerFunc) (*Index, error) {
	idx := &Index{logger: logger}
	idx.logMessage("Using tag index at: %s", path)

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open tag index %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{ImagesToTagsBucket, TagsToImagesBucket, CategoriesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx.db = db
	return idx, nil
}

func (idx *Index) logMessage(format string, args ...interface{}) {
	if idx.logger != nil {
		idx.logger(fmt.Sprintf(format, args...))
	} else {
		log.Printf(format, args...)
	}
}

// Close closes the database.
func (idx *Index) Close() error {
	if idx.db != nil {
		return idx.db.Close()
	}
	return nil
}

func encodeList(list []string) ([]byte, error) {
	return json.Marshal(list)
}

func decodeList(data []byte) ([]string, error) {
	var list []string
	if data == nil {
		return []string{}, nil
	}
	err := json.Unmarshal(data, &list)
	return list, err
}

func putList(b *bolt.Bucket, key string, list []string) error {
	data, err := encodeList(list)
	if err != nil {
		return fmt.Errorf("failed to encode list for key '%s': %w", key, err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to put list for key '%s': %w", key, err)
	}
	return nil
}

// Rebuild replaces the whole index with the contents of s in one
// transaction.
func (idx *Index) Rebuild(s tagging.Snapshot) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{ImagesToTagsBucket, TagsToImagesBucket, CategoriesBucket, metaBucket} {
			if tx.Bucket([]byte(name)) != nil {
				if err := tx.DeleteBucket([]byte(name)); err != nil {
					return fmt.Errorf("failed to clear bucket %s: %w", name, err)
				}
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		imgBucket := tx.Bucket([]byte(ImagesToTagsBucket))
		byTag := make(map[string][]string)
		for path, tags := range s.ImageTags {
			if err := putList(imgBucket, path, tags); err != nil {
				return err
			}
			for _, tag := range tags {
				byTag[tag] = append(byTag[tag], path)
			}
		}

		tagBucket := tx.Bucket([]byte(TagsToImagesBucket))
		for tag, paths := range byTag {
			sort.Strings(paths)
			if err := putList(tagBucket, tag, paths); err != nil {
				return err
			}
		}

		catBucket := tx.Bucket([]byte(CategoriesBucket))
		for name, tags := range s.Categories {
			if err := putList(catBucket, name, tags); err != nil {
				return err
			}
		}
		order, err := encodeList(s.CategoryOrder)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Put(categoryOrderKey, order)
	})
}

func (idx *Index) getList(bucketName, key string) ([]string, error) {
	var list []string
	err := idx.db.View(func(tx *bolt.Tx) error {
		var err error
		list, err = decodeList(tx.Bucket([]byte(bucketName)).Get([]byte(key)))
		if err != nil {
			return fmt.Errorf("failed to decode %s entry %s: %w", bucketName, key, err)
		}
		return nil
	})
	return list, err
}

// GetTags retrieves the tags of an image, sorted.
func (idx *Index) GetTags(imagePath string) ([]string, error) {
	tags, err := idx.getList(ImagesToTagsBucket, imagePath)
	sort.Strings(tags)
	return tags, err
}

// GetImages retrieves the images carrying a tag, sorted.
func (idx *Index) GetImages(tag string) ([]string, error) {
	images, err := idx.getList(TagsToImagesBucket, tag)
	sort.Strings(images)
	return images, err
}

// GetAllTags retrieves every tag with the number of images carrying it,
// sorted by name.
func (idx *Index) GetAllTags() ([]tagging.TagWithCount, error) {
	var allTagsInfo []tagging.TagWithCount
	err := idx.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(TagsToImagesBucket))
		return bucket.ForEach(func(k, v []byte) error {
			tagName := string(k)
			imageList, err := decodeList(v)
			if err != nil {
				idx.logMessage("Error decoding image list for tag '%s', skipping: %v", tagName, err)
				return nil
			}
			allTagsInfo = append(allTagsInfo, tagging.TagWithCount{Name: tagName, Count: len(imageList)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(allTagsInfo, func(i, j int) bool {
		return allTagsInfo[i].Name < allTagsInfo[j].Name
	})
	return allTagsInfo, nil
}

// Category is a category name and its tags.
type Category struct {
	Name string
	Tags []string
}

// GetCategories returns the categories in their original order.
func (idx *Index) GetCategories() ([]Category, error) {
	var cats []Category
	err := idx.db.View(func(tx *bolt.Tx) error {
		order, err := decodeList(tx.Bucket([]byte(metaBucket)).Get(categoryOrderKey))
		if err != nil {
			return fmt.Errorf("failed to decode category order: %w", err)
		}
		catBucket := tx.Bucket([]byte(CategoriesBucket))
		for _, name := range order {
			tags, err := decodeList(catBucket.Get([]byte(name)))
			if err != nil {
				return fmt.Errorf("failed to decode category %s: %w", name, err)
			}
			cats = append(cats, Category{Name: name, Tags: tags})
		}
		return nil
	})
	return cats, err
}

// GetAllImagePaths retrieves every image path with tags, sorted.
func (idx *Index) GetAllImagePaths() ([]string, error) {
	var paths []string
	err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ImagesToTagsBucket)).ForEach(func(k, v []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all image paths: %w", err)
	}
	return paths, nil
}
