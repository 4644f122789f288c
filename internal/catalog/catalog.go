// Package catalog holds the storefront's book catalog. Books are declared in
// configuration; the catalog is immutable after construction.
package catalog

import (
	"fmt"
	"sort"
)

// Book is one sellable story volume.
type Book struct {
	// ID is the stable catalog identifier (e.g., "entangled-pipes").
	ID string

	// Title is the display title.
	Title string

	// Problem is the household quantum malfunction the story opens with.
	Problem string

	// Resolution names the tool or trick that fixes it.
	Resolution string

	// PriceCents is the checkout price in USD cents.
	PriceCents int64

	// PriceID is the Stripe price identifier, when pre-provisioned.
	PriceID string

	// WordCount is the approximate story length, shown on the storefront.
	WordCount int

	// CoverKey is the content-store asset key for the cover image.
	CoverKey string

	// AmbienceKey is the content-store asset key for the looping room-tone
	// layer, empty if the book has none.
	AmbienceKey string

	// MusicKey is the content-store asset key for the looping background
	// music layer, empty if the book has none.
	MusicKey string
}

// Catalog is a lookup table over the configured books.
type Catalog struct {
	byID  map[string]Book
	order []string
}

// New builds a catalog from the configured books. Every book must have a
// non-empty unique ID, a title, and a positive price.
func New(books []Book) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Book, len(books))}
	for i, b := range books {
		if b.ID == "" {
			return nil, fmt.Errorf("catalog: book %d has an empty id", i)
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate book id %q", b.ID)
		}
		if b.Title == "" {
			return nil, fmt.Errorf("catalog: book %q has an empty title", b.ID)
		}
		if b.PriceCents <= 0 {
			return nil, fmt.Errorf("catalog: book %q has a non-positive price", b.ID)
		}
		c.byID[b.ID] = b
		c.order = append(c.order, b.ID)
	}
	return c, nil
}

// Get returns the book with the given id.
func (c *Catalog) Get(id string) (Book, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// List returns all books in declaration order.
func (c *Catalog) List() []Book {
	out := make([]Book, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of books.
func (c *Catalog) Len() int {
	return len(c.order)
}

// IDs returns a sorted copy of all book ids.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	sort.Strings(out)
	return out
}
