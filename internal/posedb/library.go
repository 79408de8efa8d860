package posedb

import (
	"fmt"
	"log"
	"slices"
	"sync"
)

// Library holds loaded databases and shares one Schema per schema id, so
// databases built from the same schema are cache-compatible.
type Library struct {
	mu        sync.RWMutex
	schemas   map[string]*Schema
	databases map[string]*Database
	order     []*Database
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		schemas:   make(map[string]*Schema),
		databases: make(map[string]*Database),
	}
}

// Load reads the database in dir and registers it.
func (l *Library) Load(dir string) (*Database, error) {
	db, err := loadWith(dir, l.schemaFor)
	if err != nil {
		return nil, err
	}
	if err := l.Add(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Add registers db. Names must be unique.
func (l *Library) Add(db *Database) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.databases[db.Name]; exists {
		return fmt.Errorf("database %s already loaded", db.Name)
	}
	if db.Schema != nil {
		if existing, ok := l.schemas[db.Schema.ID]; ok && existing != db.Schema {
			if !sameLayout(existing, db.Schema) {
				return fmt.Errorf("database %s: schema %s conflicts with a loaded schema of the same id", db.Name, db.Schema.ID)
			}
			db.Schema = existing
		} else if !ok {
			l.schemas[db.Schema.ID] = db.Schema
		}
	}
	l.databases[db.Name] = db
	l.order = append(l.order, db)
	return nil
}

// Get returns the database called name, or nil.
func (l *Library) Get(name string) *Database {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.databases[name]
}

// Databases returns the databases in load order.
func (l *Library) Databases() []*Database {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Database(nil), l.order...)
}

// Link resolves branch-in markers by database name. Markers naming an
// unknown database keep a nil Database and are reported by the resolver.
func (l *Library) Link() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	unresolved := 0
	for _, db := range l.order {
		for _, m := range db.Motions {
			for i := range m.BranchIns {
				b := &m.BranchIns[i]
				if b.Database != nil {
					continue
				}
				b.Database = l.databases[b.Name]
				if b.Database == nil {
					unresolved++
					log.Printf("Warning: motion %s in %s references unknown database %q", m.Name, db.Name, b.Name)
				}
			}
		}
	}
	return unresolved
}

func (l *Library) schemaFor(sm SchemaManifest) (*Schema, error) {
	candidate, err := schemaFromManifest(sm)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.schemas[sm.ID]; ok {
		if !sameLayout(existing, candidate) {
			return nil, fmt.Errorf("schema %s conflicts with a loaded schema of the same id", sm.ID)
		}
		return existing, nil
	}
	l.schemas[sm.ID] = candidate
	return candidate, nil
}

func sameLayout(a, b *Schema) bool {
	return a.Cardinality == b.Cardinality &&
		a.SampleRate == b.SampleRate &&
		slices.Equal(a.Offsets, b.Offsets) &&
		slices.Equal(a.EffectiveWeights(), b.EffectiveWeights())
}
