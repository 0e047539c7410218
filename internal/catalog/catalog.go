// Package catalog loads and holds the reference table of hijab colours that
// photos are matched against.
package catalog

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/security"
)

// DefaultPerPage is the page size used by Page when none is given.
const DefaultPerPage = 12

var (
	// ErrEmptyName is returned for an entry without a name.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrDuplicateName is returned when two entries share a name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrNegativeStock is returned for an entry with a stock count below zero.
	ErrNegativeStock = errors.New("stock must not be negative")
)

// ReferenceColor is a single catalog product.
type ReferenceColor struct {
	Name  string `json:"name" yaml:"name"`
	Hex   string `json:"hex" yaml:"hex"`
	URL   string `json:"url" yaml:"url"`
	Stock int    `json:"stock" yaml:"stock"`

	rgb colour.RGB
}

// RGB returns the decoded hex value. It is only populated for entries that
// came out of a Catalog.
func (c ReferenceColor) RGB() colour.RGB {
	return c.rgb
}

// InStock reports whether at least one unit is available.
func (c ReferenceColor) InStock() bool {
	return c.Stock > 0
}

// RowError reports an invalid catalog entry. Row is the 1-based position of
// the entry in its source, not counting any header line.
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Catalog is an ordered, immutable list of reference colours.
type Catalog struct {
	entries []ReferenceColor
	inStock int
}

// New validates entries and builds a catalog, keeping their order.
func New(entries []ReferenceColor) (*Catalog, error) {
	c := &Catalog{entries: make([]ReferenceColor, 0, len(entries))}
	seen := make(map[string]int, len(entries))

	for i, e := range entries {
		row := i + 1
		e.Name = strings.TrimSpace(e.Name)
		e.Hex = strings.TrimSpace(e.Hex)
		e.URL = strings.TrimSpace(e.URL)

		if e.Name == "" {
			return nil, &RowError{Row: row, Field: "name", Err: ErrEmptyName}
		}
		key := strings.ToLower(e.Name)
		if prev, ok := seen[key]; ok {
			return nil, &RowError{Row: row, Field: "name", Err: fmt.Errorf("%w %q (first seen in row %d)", ErrDuplicateName, e.Name, prev)}
		}
		seen[key] = row

		rgb, err := colour.ParseHex(e.Hex)
		if err != nil {
			return nil, &RowError{Row: row, Field: "hex", Err: err}
		}
		e.rgb = rgb

		if e.Stock < 0 {
			return nil, &RowError{Row: row, Field: "stock", Err: ErrNegativeStock}
		}
		if err := security.ValidateProductURL(e.URL); err != nil {
			return nil, &RowError{Row: row, Field: "url", Err: err}
		}

		if e.InStock() {
			c.inStock++
		}
		c.entries = append(c.entries, e)
	}

	return c, nil
}

// MustNew is like New but panics on invalid entries. Intended for tests and
// static tables.
func MustNew(entries []ReferenceColor) *Catalog {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of entries. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the i-th entry.
func (c *Catalog) At(i int) ReferenceColor {
	return c.entries[i]
}

// Entries returns a copy of all entries in catalog order.
func (c *Catalog) Entries() []ReferenceColor {
	if c == nil {
		return nil
	}
	out := make([]ReferenceColor, len(c.entries))
	copy(out, c.entries)
	return out
}

// All iterates over the entries in catalog order.
func (c *Catalog) All() iter.Seq2[int, ReferenceColor] {
	return func(yield func(int, ReferenceColor) bool) {
		if c == nil {
			return
		}
		for i, e := range c.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// InStock returns how many entries have stock available.
func (c *Catalog) InStock() int {
	if c == nil {
		return 0
	}
	return c.inStock
}

// Page returns the entries on a 1-based page and the total number of pages.
// Pages below 1 are treated as 1 and a non-positive perPage uses
// DefaultPerPage. A page past the end yields no entries.
func (c *Catalog) Page(page, perPage int) ([]ReferenceColor, int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page = max(page, 1)

	n := c.Len()
	pages := (n + perPage - 1) / perPage
	if page > pages {
		return []ReferenceColor{}, pages
	}
	start := (page - 1) * perPage
	end := min(start+perPage, n)

	out := make([]ReferenceColor, end-start)
	copy(out, c.entries[start:end])
	return out, pages
}
