package config

import "github.com/elfinch/waveform/internal/catalog"

// Catalog builds an immutable [catalog.Catalog] from the configured books.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	books := make([]catalog.Book, 0, len(c.Books))
	for _, b := range c.Books {
		books = append(books, catalog.Book{
			ID:          b.ID,
			Title:       b.Title,
			Problem:     b.Problem,
			Resolution:  b.Resolution,
			PriceCents:  b.PriceCents,
			PriceID:     b.PriceID,
			WordCount:   b.WordCount,
			CoverKey:    b.CoverKey,
			AmbienceKey: b.AmbienceKey,
			MusicKey:    b.MusicKey,
		})
	}
	return catalog.New(books)
}
