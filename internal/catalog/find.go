package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Entry is one motion found in the catalog.
type Entry struct {
	Database string  `json:"database"`
	Motion   string  `json:"motion"`
	Kind     string  `json:"kind"`
	Looping  bool    `json:"looping"`
	Events   string  `json:"events,omitempty"`
	Poses    int     `json:"poses"`
	Score    float64 `json:"score"`
}

var storedFields = []string{"database", "kind", "looping", "events", "poses"}

// Find returns the motions best matching text.
func (i *Indexer) Find(text string, limit int) ([]Entry, error) {
	return i.search(buildMatchQuery(text), limit)
}

// FindInDatabase is Find restricted to one database.
func (i *Indexer) FindInDatabase(text, database string, limit int) ([]Entry, error) {
	dbQuery := bleve.NewTermQuery(database)
	dbQuery.SetField("database")
	return i.search(bleve.NewConjunctionQuery(buildMatchQuery(text), dbQuery), limit)
}

// FindWithEvent returns the motions carrying the event tag.
func (i *Indexer) FindWithEvent(tag string, limit int) ([]Entry, error) {
	q := bleve.NewMatchQuery(tag)
	q.SetField("events")
	return i.search(q, limit)
}

// All returns every indexed motion, up to limit.
func (i *Indexer) All(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return i.search(bleve.NewMatchAllQuery(), limit)
}

func (i *Indexer) search(q query.Query, limit int) ([]Entry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = storedFields
	// equal scores fall back to the document id so output is stable
	req.SortBy([]string{"-_score", "_id"})

	results, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	return convertHits(results), nil
}

func convertHits(results *bleve.SearchResult) []Entry {
	entries := make([]Entry, 0, len(results.Hits))
	for _, hit := range results.Hits {
		database, _ := hit.Fields["database"].(string)
		kind, _ := hit.Fields["kind"].(string)
		looping, _ := hit.Fields["looping"].(bool)
		events, _ := hit.Fields["events"].(string)
		poses, _ := hit.Fields["poses"].(float64)

		entries = append(entries, Entry{
			Database: database,
			Motion:   strings.TrimPrefix(hit.ID, database+"/"),
			Kind:     kind,
			Looping:  looping,
			Events:   events,
			Poses:    int(poses),
			Score:    hit.Score,
		})
	}
	return entries
}
