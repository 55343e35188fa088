package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapho/internal/config"
)

// writeFiles creates each path (relative to root) with non-empty content,
// making parent directories as needed.
func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"image.PNG", true},
		{"image.jpg", true},
		{"image.jpeg", true},
		{"image.gif", true},
		{"image.webp", true},
		{"image.TIF", true},
		{"image.txt", false},
		{"image", false},
		{".jpeg", true}, // Test with only extension
	}

	for _, test := range tests {
		result := IsImage(test.name)
		if result != test.expected {
			t.Errorf("IsImage(%s) = %v; want %v", test.name, result, test.expected)
		}
	}
}

func TestTaggable(t *testing.T) {
	r := DefaultRules()
	assert.True(t, r.Taggable("img.jpg"))
	assert.True(t, r.Taggable("scan.pdf"), "anything with an extension is a candidate")
	assert.False(t, r.Taggable("IMG_0001.CR2"), "skip list is case-insensitive")
	assert.False(t, r.Taggable("notes.txt"))
	assert.False(t, r.Taggable("Tags"))
	assert.False(t, r.Taggable("Keywords.bak"))
	assert.False(t, r.Taggable("README"))
	assert.False(t, r.Taggable(".hidden.jpg"))
}

func TestIgnoreDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "skipme/NoTags", "keep/a.jpg")
	r := DefaultRules()

	assert.True(t, r.IgnoreDirectory("html", ""))
	assert.True(t, r.IgnoreDirectory("web-small", ""), "patterns match at the start of the name")
	assert.True(t, r.IgnoreDirectory("trip_assets", ""))
	assert.False(t, r.IgnoreDirectory("mywebstuff", ""))
	assert.True(t, r.IgnoreDirectory("skipme", root))
	assert.False(t, r.IgnoreDirectory("keep", root))
}

func TestCompileRulesBadPattern(t *testing.T) {
	_, err := CompileRules(config.Config{IgnoreDirnames: []string{"("}})
	assert.Error(t, err)
}

func TestImageFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"image1.png", "image2.JPG", "document.txt",
		"sub1/image3.jpeg", "sub1/notes.md",
		"sub1/subsub/image4.PNG",
		"web/small.jpg",
	)
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.gif"), nil, 0644))

	files, err := ImageFiles(root, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "image1.png"),
		filepath.Join(root, "image2.JPG"),
		filepath.Join(root, "sub1", "image3.jpeg"),
		filepath.Join(root, "sub1", "subsub", "image4.PNG"),
	}, files)
}

func TestTagDirs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/Tags", "a/b/Tags", "html/Tags", "c/NoTags", "c/d/Tags")

	dirs, err := TagDirs(root, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "a", "b")}, dirs)
}

func TestGroupByDirectory(t *testing.T) {
	groups := GroupByDirectory([]string{"d2/b.jpg", "d1/z.jpg", "d1/a.jpg", "top.jpg", "/root.jpg"})
	assert.Equal(t, []DirGroup{
		{Dir: "", Names: []string{"top.jpg"}},
		{Dir: "/", Names: []string{"root.jpg"}},
		{Dir: "d1", Names: []string{"a.jpg", "z.jpg"}},
		{Dir: "d2", Names: []string{"b.jpg"}},
	}, groups)
}
