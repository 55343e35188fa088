package tagging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metapho/internal/imagelist"
	"metapho/internal/scan"
)

const sampleTags = `category Animals

tag squirrels : img1.jpg img2.jpg
tag horses, ponies: img2.jpg
photo img1.jpg: 3 stars
tagtype Animals: whatever

category Places
New Mexico: img1.jpg "sub dir/img 3.jpg"
`

func TestReadTags(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TagFileName), sampleTags)
	tg, images := newTestTagger(t, filepath.Join(root, "img1.jpg"), filepath.Join(root, "img2.jpg"))

	require.NoError(t, tg.ReadTags(root, false))

	assert.Equal(t, []string{"squirrels", "horses", "ponies", "New Mexico"}, tg.TagList)
	assert.Equal(t, []string{DefaultCategory, "Animals", "Places"}, tg.Categories.Names())
	assert.Equal(t, []int{0, 1, 2}, tg.Categories.Tags("Animals"))
	assert.Equal(t, []int{3}, tg.Categories.Tags("Places"))
	assert.Equal(t, []string{filepath.Join(root, TagFileName)}, tg.TagFiles)
	assert.Equal(t, root, tg.CommonDir)
	assert.False(t, tg.Changed)

	img1, _ := images.Get(0)
	img2, _ := images.Get(1)
	assert.Equal(t, []int{0, 3}, img1.Tags)
	assert.Equal(t, []int{0, 1, 2}, img2.Tags)

	require.Equal(t, 3, images.Len())
	ghost, _ := images.Get(2)
	assert.Equal(t, filepath.Join(root, "sub dir", "img 3.jpg"), ghost.Filename)
	assert.False(t, ghost.Displayed)
	assert.Equal(t, []int{3}, ghost.Tags)
}

func TestTagFileExample(t *testing.T) {
	root := t.TempDir()
	dir1 := filepath.Join(root, "dir1")
	for _, name := range []string{"img1.jpg", "img2.jpg", "img3.jpg", "img4.jpg"} {
		writeFile(t, filepath.Join(dir1, name), "jpeg")
	}
	writeFile(t, filepath.Join(dir1, TagFileName), "tag tagged file: img1.jpg img2.jpg img5.jpg img6.jpg\n")
	for _, name := range []string{"imga.jpg", "imgb.jpg", "imgc.jpg"} {
		writeFile(t, filepath.Join(root, "dir2", name), "jpeg")
	}

	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(dir1, false))

	assert.Equal(t, []string{
		filepath.Join(dir1, "img5.jpg"),
		filepath.Join(dir1, "img6.jpg"),
	}, tg.Images().NonexistentFiles())

	files, dirs, err := scan.FindUntaggedFiles(tg.Images(), dir1, scan.DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir1, "img3.jpg"), filepath.Join(dir1, "img4.jpg")}, files)
	assert.Empty(t, dirs)

	files, dirs, err = scan.FindUntaggedFiles(tg.Images(), root, scan.DefaultRules())
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, []string{filepath.Join(root, "dir2")}, dirs)
}

func TestRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TagFileName), sampleTags)
	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, false))
	first := tg.String()

	tg.Changed = true
	out, err := tg.WriteTagFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, TagFileName), out)

	again := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, again.ReadTags(root, false))
	assert.Equal(t, first, again.String())
	assert.Equal(t, tg.TagList, again.TagList)
	assert.Equal(t, tg.Images().Len(), again.Images().Len())

	assert.Contains(t, first, `tag New Mexico : img1.jpg "sub dir/img 3.jpg"`)
	assert.Contains(t, first, "\ncategory Animals\n\ntag squirrels : img1.jpg img2.jpg\n")
}

func TestQuoteFilenameRoundTrip(t *testing.T) {
	root := t.TempDir()
	names := []string{
		"plain.jpg",
		"with space.jpg",
		`it's here.jpg`,
		`say "cheese".jpg`,
		`back\slash.jpg`,
		"$HOME.jpg",
	}
	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	tg.CheckCommonDir(root)
	for _, n := range names {
		img := imagelist.NewImage(filepath.Join(root, n), true)
		tg.Images().Add(img)
		_, err := tg.AddTagByName("odd names", img)
		require.NoError(t, err)
	}
	_, err := tg.WriteTagFile()
	require.NoError(t, err)

	again := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, again.ReadTags(root, false))
	var got []string
	for _, img := range again.Images().Images() {
		got = append(got, filepath.Base(img.Filename))
	}
	assert.ElementsMatch(t, names, got)
}

func TestParseErrorSkipsLine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TagFileName),
		"tag broken: \"unterminated.jpg\n"+
			"category \n"+
			"no colon here\n"+
			"tag fine: ok.jpg\n")
	var logged []string
	tg := NewTagger(imagelist.NewRegistry(), nil, func(m string) { logged = append(logged, m) })

	require.NoError(t, tg.ReadTags(root, false))
	assert.Equal(t, []string{"fine"}, tg.TagList)
	assert.Equal(t, []string{DefaultCategory}, tg.Categories.Names())
	require.Len(t, logged, 2)
	assert.Contains(t, logged[0], TagFileName+":1:")
	assert.Contains(t, logged[1], TagFileName+":2:")
}

func TestReadTagsNoFile(t *testing.T) {
	root := t.TempDir()
	tg := NewTagger(imagelist.NewRegistry(), nil, nil)
	require.NoError(t, tg.ReadTags(root, false))
	assert.Empty(t, tg.TagFiles)
	assert.Equal(t, root, tg.CommonDir)
}

func TestReadTagsKeywordsFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, KeywordsFileName), "tag old: a.jpg\n")
	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, false))
	assert.Equal(t, []string{filepath.Join(root, KeywordsFileName)}, tg.TagFiles)
	assert.Equal(t, []string{"old"}, tg.TagList)

	// Tags wins over Keywords.
	writeFile(t, filepath.Join(root, TagFileName), "tag new: a.jpg\n")
	tg = NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, false))
	assert.Equal(t, []string{"new"}, tg.TagList)
}

func TestReadTagsRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TagFileName), "tag top: a.jpg\n")
	writeFile(t, filepath.Join(root, "sub", TagFileName), "tag nested: b.jpg\n")
	writeFile(t, filepath.Join(root, "web", TagFileName), "tag ignored: c.jpg\n")

	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, true))

	assert.Equal(t, []string{
		filepath.Join(root, "sub", TagFileName),
		filepath.Join(root, TagFileName),
	}, tg.TagFiles)
	assert.Equal(t, []string{"nested", "top"}, tg.TagList)
	assert.Equal(t, root, tg.CommonDir)
	assert.NotNil(t, tg.Images().Find(filepath.Join(root, "sub", "b.jpg")))
}

func TestWriteTagFileBackup(t *testing.T) {
	root := t.TempDir()
	tagfile := filepath.Join(root, TagFileName)
	writeFile(t, tagfile, "tag old: a.jpg\n")
	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, false))

	_, err := tg.AddTagByName("added", tg.Images().Find(filepath.Join(root, "a.jpg")))
	require.NoError(t, err)
	_, err = tg.WriteTagFile()
	require.NoError(t, err)
	assert.False(t, tg.Changed)

	bak, err := os.ReadFile(tagfile + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "tag old: a.jpg\n", string(bak))

	cur, err := os.ReadFile(tagfile)
	require.NoError(t, err)
	assert.Contains(t, string(cur), "tag added : a.jpg\n")

	fi, err := os.Stat(tagfile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

func TestWriteTagFileUnchanged(t *testing.T) {
	root := t.TempDir()
	tagfile := filepath.Join(root, TagFileName)
	writeFile(t, tagfile, "tag old: a.jpg\n")
	tg := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, tg.ReadTags(root, false))

	out, err := tg.WriteTagFile()
	require.NoError(t, err)
	assert.Empty(t, out)
	_, err = os.Stat(tagfile + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTagFileNoCommonDir(t *testing.T) {
	tg := NewTagger(imagelist.NewRegistry(), nil, nil)
	tg.Changed = true
	_, err := tg.WriteTagFile()
	assert.ErrorIs(t, err, ErrNoCommonDir)
}

func TestMultiCategoryMembershipSurvivesRoundTrip(t *testing.T) {
	root := t.TempDir()
	tg, images := newTestTagger(t, filepath.Join(root, "a.jpg"))
	tg.CheckCommonDir(root)
	_, _ = tg.AddTagByName("shared", images.Current())
	require.NoError(t, tg.SetCurrentCategory("Second"))
	_, _ = tg.AddTagByName("shared", images.Current())
	_, err := tg.WriteTagFile()
	require.NoError(t, err)

	again := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, again.ReadTags(root, false))
	assert.Equal(t, []int{0}, again.Categories.Tags(DefaultCategory))
	assert.Equal(t, []int{0}, again.Categories.Tags("Second"))
	assert.Equal(t, 1, strings.Count(again.String(), "category Second"))
}

func TestReadAllTagsForImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "one.jpg"), "jpeg")
	writeFile(t, filepath.Join(root, "b", "two.jpg"), "jpeg")
	writeFile(t, filepath.Join(root, "moved", "three.jpg"), "jpeg")
	writeFile(t, filepath.Join(root, "a", TagFileName), "tag alpha: one.jpg\n")
	writeFile(t, filepath.Join(root, TagFileName), "tag top: b/two.jpg three.jpg gone.jpg\n")

	tg, images := newTestTagger(t, filepath.Join(root, "a", "one.jpg"), filepath.Join(root, "b", "two.jpg"))
	require.NoError(t, tg.ReadAllTagsForImages())

	assert.Equal(t, root, tg.CommonDir)
	assert.ElementsMatch(t, []string{"alpha", "top"}, tg.TagList)
	two, _ := images.Get(1)
	assert.Equal(t, []string{"top"}, tg.TagNames(two))

	assert.NotNil(t, images.Find(filepath.Join(root, "moved", "three.jpg")), "relocated")
	assert.Nil(t, images.Find(filepath.Join(root, "gone.jpg")), "dropped")
	assert.True(t, tg.Changed)
}

func TestReadTagsPrefersExactFilename(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a", "img1.jpg")
	b := filepath.Join(root, "b", "img1.jpg")
	writeFile(t, filepath.Join(root, "b", TagFileName), "tag bee: img1.jpg\n")

	// As if started in root/a with "img1.jpg ../b/img1.jpg" on the command line.
	images := imagelist.NewRegistry()
	images.Add(
		&imagelist.Image{Filename: a, Relpath: "img1.jpg", Displayed: true},
		&imagelist.Image{Filename: b, Relpath: "../b/img1.jpg", Displayed: true},
	)
	tg := NewTagger(images, nil, func(string) {})

	require.NoError(t, tg.ReadTags(filepath.Join(root, "b"), false))

	assert.Empty(t, images.Find(a).Tags)
	assert.Equal(t, []int{0}, images.Find(b).Tags)
	assert.Equal(t, 2, images.Len(), "no ghost record")
}

func TestRoundTripKeepsUnusedTags(t *testing.T) {
	root := t.TempDir()
	tg, images := newTestTagger(t, filepath.Join(root, "a.jpg"))
	tg.CheckCommonDir(root)
	img, _ := images.Get(0)
	_, err := tg.AddTagByName("keep", img)
	require.NoError(t, err)
	unused, err := tg.AddTagByName("unused", img)
	require.NoError(t, err)
	tg.RemoveTagByIndex(unused, img)

	_, err = tg.WriteTagFile()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, TagFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "tag keep : a.jpg\ntag unused :\n")

	again := NewTagger(imagelist.NewRegistry(), nil, func(string) {})
	require.NoError(t, again.ReadTags(root, false))
	assert.Equal(t, []string{"keep", "unused"}, again.TagList)
	assert.Equal(t, []int{0, 1}, again.Categories.Tags(DefaultCategory))
	assert.Equal(t, 1, again.Images().Len())
}
