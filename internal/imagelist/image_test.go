package imagelist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewImage(t *testing.T) {
	img := NewImage("sub/pic.jpg", true)
	assert.True(t, filepath.IsAbs(img.Filename))
	assert.Equal(t, "sub/pic.jpg", img.Relpath)
	assert.True(t, img.Viewable())
	assert.Equal(t, RotUnknown, img.Rot)

	for _, name := range []string{"Tags", "Keywords", "Tags.bak", "dir/Keywords.bak"} {
		assert.True(t, NewImage(name, true).Invalid, name)
	}
	assert.False(t, NewImage("Tagsfoo.jpg", true).Invalid)
}

func TestImageTags(t *testing.T) {
	img := NewImage("a.jpg", true)
	assert.True(t, img.AddTag(3))
	assert.False(t, img.AddTag(3))
	assert.True(t, img.AddTag(1))
	assert.Equal(t, []int{3, 1}, img.Tags)
	assert.True(t, img.RemoveTag(3))
	assert.False(t, img.RemoveTag(3))
	assert.Equal(t, []int{1}, img.Tags)
}

func TestEqualAndLess(t *testing.T) {
	a := &Image{Filename: "/p/a.jpg", Tags: []int{1, 2}}
	a2 := &Image{Filename: "/p/a.jpg", Tags: []int{1, 2}, Displayed: true}
	b := &Image{Filename: "/p/b.jpg", Tags: []int{1, 2}}

	assert.True(t, a.Equal(a2))
	assert.False(t, a.Equal(b))
	a2.Tags = []int{2, 1}
	assert.False(t, a.Equal(a2))
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestString(t *testing.T) {
	img := &Image{Filename: "/p/a.jpg", Tags: []int{0, 4}, Rot: 90}
	assert.Equal(t, "Image '/p/a.jpg' (rotation 90): Tags: [0 4]", img.String())
	assert.Equal(t, "Image '/p/b.jpg'", (&Image{Filename: "/p/b.jpg"}).String())
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		name     string
		img      *Image
		fragment string
		want     bool
	}{
		{"exact filename", &Image{Filename: "/photos/a/img1.jpg", Relpath: "x.jpg"}, "/photos/a/img1.jpg", true},
		{"relpath suffix", &Image{Filename: "/home/u/img1.jpg", Relpath: "img1.jpg"}, "/photos/a/img1.jpg", true},
		{"relpath with dirs", &Image{Filename: "/cwd/a/img1.jpg", Relpath: "a/img1.jpg"}, "/photos/a/img1.jpg", true},
		{"partial name is not a match", &Image{Filename: "/cwd/g1.jpg", Relpath: "g1.jpg"}, "/photos/img1.jpg", false},
		{"other directory", &Image{Filename: "/cwd/b/img1.jpg", Relpath: "b/img1.jpg"}, "/photos/a/img1.jpg", false},
		{"absolute relpath", &Image{Filename: "/x/img1.jpg", Relpath: "/x/img1.jpg"}, "/y/x/img1.jpg", false},
		{"parent relpath", &Image{Filename: "/z/img1.jpg", Relpath: "../img1.jpg"}, "/a/../img1.jpg", false},
		{"empty fragment", &Image{Filename: "/a.jpg", Relpath: "a.jpg"}, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchPath(tc.img, tc.fragment))
		})
	}
}
