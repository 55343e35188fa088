package tagging

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchTags returns the live tag names fuzzily matching pattern, case
// insensitively, best match first.
func (t *Tagger) MatchTags(pattern string) []string {
	var names []string
	for _, name := range t.TagList {
		if name != "" {
			names = append(names, name)
		}
	}
	ranks := fuzzy.RankFindFold(pattern, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].Target < ranks[j].Target
	})
	matches := make([]string, len(ranks))
	for i, r := range ranks {
		matches[i] = r.Target
	}
	return matches
}

// Snapshot is a name-keyed copy of the tag state, independent of tag
// numbers.
type Snapshot struct {
	// ImageTags maps image filenames to tag names.
	ImageTags map[string][]string
	// Categories maps category names to tag names.
	Categories map[string][]string
	// CategoryOrder lists the categories in order.
	CategoryOrder []string
}

// Snapshot copies the current tags by name. Images without tags are left out.
func (t *Tagger) Snapshot() Snapshot {
	s := Snapshot{
		ImageTags:     make(map[string][]string),
		Categories:    make(map[string][]string),
		CategoryOrder: t.Categories.Names(),
	}
	for _, img := range t.images.Images() {
		if names := t.TagNames(img); len(names) > 0 {
			s.ImageTags[img.Filename] = names
		}
	}
	for _, cat := range s.CategoryOrder {
		names := []string{}
		for _, tagno := range t.Categories.Tags(cat) {
			if name := t.TagName(tagno); name != "" {
				names = append(names, name)
			}
		}
		s.Categories[cat] = names
	}
	return s
}
