package resolve

import (
	"github.com/jamesbarge/pictures/internal/core/domain"
	"github.com/jamesbarge/pictures/internal/core/title"
)

// cacheEntry is the slice of a Film the cache needs for identity
// decisions.
type cacheEntry struct {
	ID         string
	MetadataID *int64
}

// Cache is the per-run film index: normalized title -> film and external
// metadata id -> film. It is owned by one ingestion run, built once from
// all existing film rows at run start and discarded at run end. Not safe
// for concurrent writers; venues within a run are processed sequentially.
type Cache struct {
	byTitle      map[string]cacheEntry
	byMetadataID map[int64]string
}

// NewCache builds the run cache from existing film rows. When two rows
// collide on normalized title, the one carrying an external metadata id
// wins the slot.
func NewCache(films []domain.Film) *Cache {
	c := &Cache{
		byTitle:      make(map[string]cacheEntry, len(films)),
		byMetadataID: make(map[int64]string, len(films)),
	}

	for _, film := range films {
		normalized := film.NormalizedTitle
		if normalized == "" {
			normalized = title.Normalize(film.Title)
		}

		entry := cacheEntry{ID: film.ID, MetadataID: film.MetadataID}

		existing, ok := c.byTitle[normalized]
		if !ok || (existing.MetadataID == nil && entry.MetadataID != nil) {
			c.byTitle[normalized] = entry
		}

		if film.MetadataID != nil {
			c.byMetadataID[*film.MetadataID] = film.ID
		}
	}

	return c
}

// LookupTitle returns the film id cached for a normalized title.
func (c *Cache) LookupTitle(normalized string) (string, bool) {
	entry, ok := c.byTitle[normalized]

	return entry.ID, ok
}

// LookupMetadataID returns the film id holding an external metadata id.
func (c *Cache) LookupMetadataID(metadataID int64) (string, bool) {
	id, ok := c.byMetadataID[metadataID]

	return id, ok
}

// Add indexes a newly created or newly resolved film so subsequent
// lookups within the same run see it.
func (c *Cache) Add(film domain.Film) {
	normalized := film.NormalizedTitle
	if normalized == "" {
		normalized = title.Normalize(film.Title)
	}

	entry := cacheEntry{ID: film.ID, MetadataID: film.MetadataID}

	existing, ok := c.byTitle[normalized]
	if !ok || (existing.MetadataID == nil && entry.MetadataID != nil) || existing.ID == film.ID {
		c.byTitle[normalized] = entry
	}

	if film.MetadataID != nil {
		c.byMetadataID[*film.MetadataID] = film.ID
	}
}

// AddAlias maps an additional normalized title onto an existing film,
// used when a fuzzy or metadata match resolves a variant spelling.
func (c *Cache) AddAlias(normalized, filmID string) {
	if _, ok := c.byTitle[normalized]; !ok {
		c.byTitle[normalized] = cacheEntry{ID: filmID}
	}
}
