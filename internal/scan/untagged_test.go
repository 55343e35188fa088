package scan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapho/internal/imagelist"
)

func tagged(paths ...string) *imagelist.Registry {
	r := imagelist.NewRegistry()
	for _, p := range paths {
		img := imagelist.NewImage(p, false)
		img.Tags = []int{0}
		r.Add(img)
	}
	return r
}

func TestFindUntaggedFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"dir1/img1.jpg", "dir1/img2.jpg", "dir1/img3.jpg", "dir1/img4.jpg", "dir1/Tags",
		"dir1/raw.CR2", "dir1/clip.mov",
		"dir2/imga.jpg", "dir2/imgb.jpg", "dir2/imgc.jpg",
		"dir3/NoTags", "dir3/lost.jpg",
		"dir1/web/small.jpg",
		"empty/readme.txt",
	)
	images := tagged(
		filepath.Join(root, "dir1", "img1.jpg"),
		filepath.Join(root, "dir1", "img2.jpg"),
		filepath.Join(root, "dir1", "img5.jpg"),
	)

	files, dirs, err := FindUntaggedFiles(images, root, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "dir1", "img3.jpg"),
		filepath.Join(root, "dir1", "img4.jpg"),
	}, files)
	assert.Equal(t, []string{filepath.Join(root, "dir2")}, dirs)
}

func TestFindUntaggedFilesIgnoresUntaggedRecords(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.jpg", "b.jpg")
	images := imagelist.NewRegistry()
	images.Add(imagelist.NewImage(filepath.Join(root, "a.jpg"), true))

	files, dirs, err := FindUntaggedFiles(images, root, DefaultRules())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, []string{root}, dirs, "a record without tags doesn't count as tagged")
}

func TestFindUntaggedFilesMissingTop(t *testing.T) {
	_, _, err := FindUntaggedFiles(imagelist.NewRegistry(), filepath.Join(t.TempDir(), "nope"), DefaultRules())
	assert.Error(t, err)
}
