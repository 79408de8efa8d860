package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/posedb"
)

// loadedDatabase is a database loaded under its config name.
type loadedDatabase struct {
	Name string
	Dir  string
	DB   *posedb.Database
}

// loadDatabases loads the databases named by refs into one library. A ref
// is a configured database name or a database directory; no refs loads
// every enabled configured database. Branch-in markers are linked across
// the loaded set.
func loadDatabases(cfg *config.Config, cfgPath string, refs []string) (*posedb.Library, []loadedDatabase, error) {
	lib := posedb.NewLibrary()

	type target struct {
		name string
		dir  string
		conf *config.DatabaseConfig
	}
	var targets []target

	if len(refs) == 0 {
		if cfg == nil {
			return nil, nil, fmt.Errorf("no databases given and no configuration loaded")
		}
		names := make([]string, 0, len(cfg.Databases))
		for name, d := range cfg.Databases {
			if !d.Disabled {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			d := cfg.Databases[name]
			targets = append(targets, target{name, config.ResolvePath(cfgPath, d.Path), d})
		}
	}
	for _, ref := range refs {
		if cfg != nil {
			if d, ok := cfg.Databases[ref]; ok {
				targets = append(targets, target{ref, config.ResolvePath(cfgPath, d.Path), d})
				continue
			}
		}
		if info, err := os.Stat(ref); err == nil && info.IsDir() {
			targets = append(targets, target{ref, ref, nil})
			continue
		}
		return nil, nil, fmt.Errorf("'%s' is neither a configured database nor a directory", ref)
	}

	loaded := make([]loadedDatabase, 0, len(targets))
	for _, t := range targets {
		db, err := lib.Load(t.dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load %s: %w", t.name, err)
		}
		if t.conf != nil {
			if err := t.conf.Apply(db); err != nil {
				return nil, nil, err
			}
		}
		loaded = append(loaded, loadedDatabase{Name: t.name, Dir: t.dir, DB: db})
	}
	lib.Link()
	return lib, loaded, nil
}

// optionalConfig loads the config when it exists. Commands that accept
// database directories work without one.
func optionalConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err == nil {
		return cfg, nil
	}
	var notFound *config.ConfigNotFoundError
	if errors.As(err, &notFound) {
		return nil, nil
	}
	return nil, err
}
