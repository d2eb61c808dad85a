package prompt

import "strings"

// Store exposes suggested prompts for HTTP handlers and responders.
type Store interface {
	ForPage(path string) []Category
	All() []Prompt
}

// MemoryStore implements Store over a fixed catalogue.
type MemoryStore struct {
	defaults []Category
	pages    []Page
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied sets.
func NewMemoryStore(defaults []Category, pages []Page) *MemoryStore {
	return &MemoryStore{
		defaults: append([]Category(nil), defaults...),
		pages:    append([]Page(nil), pages...),
	}
}

// ForPage returns the categories for an exact route match, then for the
// first page that is a parent of path, then the defaults.
func (s *MemoryStore) ForPage(path string) []Category {
	for _, p := range s.pages {
		if p.Path == path {
			return cloneCategories(p.Categories)
		}
	}
	for _, p := range s.pages {
		if strings.HasPrefix(path, p.Path+"/") {
			return cloneCategories(p.Categories)
		}
	}
	return cloneCategories(s.defaults)
}

// All flattens the default categories.
func (s *MemoryStore) All() []Prompt {
	var out []Prompt
	for _, c := range s.defaults {
		out = append(out, c.Prompts...)
	}
	return out
}

func cloneCategories(in []Category) []Category {
	out := make([]Category, len(in))
	for i, c := range in {
		out[i] = Category{Category: c.Category, Prompts: append([]Prompt(nil), c.Prompts...)}
	}
	return out
}
