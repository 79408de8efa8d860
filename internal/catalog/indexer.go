/*
Package catalog provides full-text lookup of motions across databases.

Each indexed motion becomes a document holding its name, database, kind
and event tags, so tools can locate a motion without knowing which
database directory it was loaded from.
*/
package catalog

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/khanglvm/posematch/internal/posedb"
)

// Indexer is an in-memory index of motions.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
}

// NewIndexer creates an empty in-memory index.
func NewIndexer() (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Indexer{bleveIndex: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	motionMapping := bleve.NewDocumentMapping()

	motionMapping.AddFieldMappingsAt("name", bleve.NewTextFieldMapping())
	motionMapping.AddFieldMappingsAt("events", bleve.NewTextFieldMapping())

	// exact-match fields used as filters
	databaseField := bleve.NewKeywordFieldMapping()
	motionMapping.AddFieldMappingsAt("database", databaseField)
	kindField := bleve.NewKeywordFieldMapping()
	motionMapping.AddFieldMappingsAt("kind", kindField)

	loopingField := bleve.NewBooleanFieldMapping()
	motionMapping.AddFieldMappingsAt("looping", loopingField)

	poses := bleve.NewNumericFieldMapping()
	poses.Index = false
	motionMapping.AddFieldMappingsAt("poses", poses)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", motionMapping)
	return indexMapping
}

// docID is "<database>/<motion>".
func docID(db, motion string) string {
	return db + "/" + motion
}

// eventTags returns the sorted distinct event tags of m.
func eventTags(m *posedb.Motion) []string {
	seen := map[string]bool{}
	for _, v := range m.Variants {
		for _, f := range v.Frames {
			for _, tag := range f.Events {
				seen[tag] = true
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func frameCount(m *posedb.Motion) int {
	n := 0
	for _, v := range m.Variants {
		n += len(v.Frames)
	}
	return n
}

// IndexDatabase indexes every motion of db, replacing earlier entries with
// the same names.
func (i *Indexer) IndexDatabase(db *posedb.Database) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, m := range db.Motions {
		doc := map[string]interface{}{
			// underscores split motion names into words
			"name":     strings.ReplaceAll(m.Name, "_", " "),
			"database": db.Name,
			"kind":     m.Kind.String(),
			"looping":  m.Looping,
			"events":   strings.Join(eventTags(m), " "),
			"poses":    float64(frameCount(m)),
		}
		id := docID(db.Name, m.Name)
		if err := batch.Index(id, doc); err != nil {
			log.Printf("Warning: failed to index motion %s: %v", id, err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index motions: %w", err)
	}
	return nil
}

// RemoveDatabase removes every motion of the named database.
func (i *Indexer) RemoveDatabase(name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	q := bleve.NewTermQuery(name)
	q.SetField("database")
	req := bleve.NewSearchRequestOptions(q, 10000, 0, false)

	results, err := i.bleveIndex.Search(req)
	if err != nil {
		return fmt.Errorf("failed to find database docs: %w", err)
	}

	batch := i.bleveIndex.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch delete: %w", err)
	}
	return nil
}

// Count returns the number of indexed motions.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return n, nil
}

// Close releases the index.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

// buildMatchQuery matches text against motion names and event tags.
func buildMatchQuery(text string) query.Query {
	name := bleve.NewMatchQuery(strings.ReplaceAll(text, "_", " "))
	name.SetField("name")
	events := bleve.NewMatchQuery(text)
	events.SetField("events")
	return bleve.NewDisjunctionQuery(name, events)
}
