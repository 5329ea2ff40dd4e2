package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

func TestNewCacheMetadataHolderWinsTitleCollision(t *testing.T) {
	metadataID := int64(42)

	films := []domain.Film{
		{ID: "fallback", Title: "Heat"},
		{ID: "matched", Title: "Heat", MetadataID: &metadataID},
	}

	c := NewCache(films)

	id, ok := c.LookupTitle("heat")
	assert.True(t, ok)
	assert.Equal(t, "matched", id)

	id, ok = c.LookupMetadataID(42)
	assert.True(t, ok)
	assert.Equal(t, "matched", id)
}

func TestCacheUsesStoredNormalizedTitle(t *testing.T) {
	c := NewCache([]domain.Film{{ID: "f1", Title: "The Godfather", NormalizedTitle: "godfather"}})

	id, ok := c.LookupTitle("godfather")
	assert.True(t, ok)
	assert.Equal(t, "f1", id)
}

func TestAddAliasDoesNotOverwrite(t *testing.T) {
	c := NewCache([]domain.Film{{ID: "original", Title: "Heat"}})

	c.AddAlias("heat", "other")

	id, _ := c.LookupTitle("heat")
	assert.Equal(t, "original", id)
}

func TestLookupTitleMiss(t *testing.T) {
	c := NewCache(nil)

	_, ok := c.LookupTitle("anything")
	assert.False(t, ok)
}
