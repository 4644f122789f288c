package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	BooksChanged    bool       // true if any book's text, price, or media keys changed
	BookChanges     []BookDiff // per-book diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// BookDiff describes what changed for a single catalog entry between two configs.
type BookDiff struct {
	ID           string
	TextChanged  bool // title, problem, or resolution
	PriceChanged bool
	MediaChanged bool // cover, ambience, or music keys
	Added        bool
	Removed      bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build book lookup maps keyed by ID.
	oldBooks := make(map[string]*BookConfig, len(old.Books))
	for i := range old.Books {
		oldBooks[old.Books[i].ID] = &old.Books[i]
	}
	newBooks := make(map[string]*BookConfig, len(new.Books))
	for i := range new.Books {
		newBooks[new.Books[i].ID] = &new.Books[i]
	}

	// Detect modified and removed books.
	for id, oldBook := range oldBooks {
		newBook, exists := newBooks[id]
		if !exists {
			d.BookChanges = append(d.BookChanges, BookDiff{
				ID:      id,
				Removed: true,
			})
			d.BooksChanged = true
			continue
		}
		bd := diffBook(id, oldBook, newBook)
		if bd.TextChanged || bd.PriceChanged || bd.MediaChanged {
			d.BookChanges = append(d.BookChanges, bd)
			d.BooksChanged = true
		}
	}

	// Detect added books.
	for id := range newBooks {
		if _, exists := oldBooks[id]; !exists {
			d.BookChanges = append(d.BookChanges, BookDiff{
				ID:    id,
				Added: true,
			})
			d.BooksChanged = true
		}
	}

	return d
}

// diffBook compares two book configs with the same ID.
func diffBook(id string, old, new *BookConfig) BookDiff {
	bd := BookDiff{ID: id}

	if old.Title != new.Title || old.Problem != new.Problem || old.Resolution != new.Resolution {
		bd.TextChanged = true
	}

	if old.PriceCents != new.PriceCents || old.PriceID != new.PriceID {
		bd.PriceChanged = true
	}

	if old.CoverKey != new.CoverKey || old.AmbienceKey != new.AmbienceKey || old.MusicKey != new.MusicKey {
		bd.MediaChanged = true
	}

	return bd
}
