// Package catalog holds the bookable categories and the immutable snapshots
// the conversation engine reads from.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags how a category's offerings are organised.
type Kind int

const (
	// KindFlat categories list items directly (group courses, venues).
	KindFlat Kind = iota
	// KindSpecialized categories group providers by specialty (private coaches).
	KindSpecialized
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindSpecialized:
		return "specialized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Specialty groups the providers offering one kind of coaching.
type Specialty struct {
	Name      string   `json:"name"`
	Providers []string `json:"providers"`
}

// HasProvider reports whether name is one of the specialty's providers.
func (s Specialty) HasProvider(name string) bool {
	return contains(s.Providers, name)
}

// Category is one bookable category. Items is set for KindFlat, Specialties
// for KindSpecialized. Values obtained from a Catalog must not be modified.
type Category struct {
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Items       []string    `json:"items,omitempty"`
	Specialties []Specialty `json:"specialties,omitempty"`
}

// Empty reports whether the category has nothing to book.
func (c Category) Empty() bool {
	if c.Kind == KindSpecialized {
		return len(c.Specialties) == 0
	}
	return len(c.Items) == 0
}

// HasItem reports whether a flat category offers name.
func (c Category) HasItem(name string) bool {
	return c.Kind == KindFlat && contains(c.Items, name)
}

// Specialty looks up a specialty of a specialized category.
func (c Category) Specialty(name string) (Specialty, bool) {
	for _, s := range c.Specialties {
		if s.Name == name {
			return s, true
		}
	}
	return Specialty{}, false
}

// SpecialtyNames lists specialty names in catalog order.
func (c Category) SpecialtyNames() []string {
	names := make([]string, len(c.Specialties))
	for i, s := range c.Specialties {
		names[i] = s.Name
	}
	return names
}

// Catalog is an immutable snapshot of categories in configuration order.
type Catalog struct {
	categories []Category
	byName     map[string]int
	loadedAt   time.Time
}

// New builds a snapshot from categories. The input is copied.
func New(categories []Category, loadedAt time.Time) *Catalog {
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byName:     make(map[string]int, len(categories)),
		loadedAt:   loadedAt,
	}
	for _, cat := range categories {
		if _, dup := c.byName[cat.Name]; dup {
			continue
		}
		c.byName[cat.Name] = len(c.categories)
		c.categories = append(c.categories, cloneCategory(cat))
	}
	return c
}

// Empty returns a catalog with no categories.
func Empty() *Catalog {
	return New(nil, time.Time{})
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.categories)
}

// Names lists category names in order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Category looks up a category by name.
func (c *Catalog) Category(name string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	idx, ok := c.byName[name]
	if !ok {
		return Category{}, false
	}
	return c.categories[idx], true
}

// Categories returns the categories in order.
func (c *Catalog) Categories() []Category {
	if c == nil {
		return nil
	}
	return append([]Category(nil), c.categories...)
}

// LoadedAt is when the snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.loadedAt
}

// MarshalJSON renders the snapshot for the admin API.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Categories []Category `json:"categories"`
		LoadedAt   time.Time  `json:"loaded_at"`
	}{Categories: c.Categories(), LoadedAt: c.LoadedAt()})
}

func cloneCategory(c Category) Category {
	out := Category{Name: c.Name, Kind: c.Kind}
	if c.Items != nil {
		out.Items = append([]string(nil), c.Items...)
	}
	for _, s := range c.Specialties {
		out.Specialties = append(out.Specialties, Specialty{
			Name:      s.Name,
			Providers: append([]string(nil), s.Providers...),
		})
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
