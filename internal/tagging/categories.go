package tagging

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Categories maps category names to the tag numbers filed under them,
// remembering the order in which categories were created.
type Categories struct {
	m *orderedmap.OrderedMap[string, []int]
}

func newCategories() *Categories {
	return &Categories{m: orderedmap.New[string, []int]()}
}

// Len returns the number of categories.
func (c *Categories) Len() int {
	return c.m.Len()
}

// Names returns the category names in creation order.
func (c *Categories) Names() []string {
	names := make([]string, 0, c.m.Len())
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Has reports whether the category exists.
func (c *Categories) Has(name string) bool {
	_, ok := c.m.Get(name)
	return ok
}

// Tags returns the tag numbers in a category, nil if it doesn't exist.
// The slice must not be modified.
func (c *Categories) Tags(name string) []int {
	tags, _ := c.m.Get(name)
	return tags
}

// ensure creates an empty category unless it already exists.
func (c *Categories) ensure(name string) {
	if !c.Has(name) {
		c.m.Set(name, []int{})
	}
}

// add files tagno under name, creating the category if needed.
func (c *Categories) add(name string, tagno int) {
	tags, _ := c.m.Get(name)
	if slices.Contains(tags, tagno) {
		c.ensure(name)
		return
	}
	c.m.Set(name, append(tags, tagno))
}

// removeTag drops tagno from every category.
func (c *Categories) removeTag(tagno int) {
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		if i := slices.Index(pair.Value, tagno); i >= 0 {
			c.m.Set(pair.Key, slices.Delete(slices.Clone(pair.Value), i, i+1))
		}
	}
}

// rename changes a category's key in place. The caller checks that oldName
// exists and newName doesn't.
func (c *Categories) rename(oldName, newName string) error {
	tags, _ := c.m.Get(oldName)
	c.m.Set(newName, tags)
	if err := c.m.MoveBefore(newName, oldName); err != nil {
		return err
	}
	c.m.Delete(oldName)
	return nil
}
