package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/sim"
	"github.com/khanglvm/posematch/internal/storage"
)

// session is the input shared by the commands that drive the matcher.
type session struct {
	cfg     *config.Config
	cfgPath string

	Names  []string
	DBs    []*posedb.Database
	Params matching.Params

	// Synthetic is set when no database was configured and a generated
	// locomotion database stands in.
	Synthetic bool
}

// Assets returns the databases as matcher assets.
func (s *session) Assets() []posedb.Asset {
	assets := make([]posedb.Asset, len(s.DBs))
	for i, db := range s.DBs {
		assets[i] = db
	}
	return assets
}

// Workers returns the configured number of concurrent builds.
func (s *session) Workers() int {
	if s.cfg == nil || s.cfg.Settings == nil {
		return 0
	}
	return s.cfg.Settings.BuildWorkers
}

// Trace returns the trace settings, defaults when unconfigured.
func (s *session) Trace() config.TraceSettings {
	return traceSettings(s.cfg)
}

func traceSettings(cfg *config.Config) config.TraceSettings {
	if cfg == nil || cfg.Settings == nil {
		return config.DefaultSettings().Trace
	}
	return cfg.Settings.Trace
}

// newSession loads the databases named by refs. Without refs it uses the
// enabled configured databases, falling back to a generated one.
func newSession(cmd *cobra.Command, refs []string) (*session, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := optionalConfig(path)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, cfgPath: path, Params: matching.DefaultParams()}
	if cfg != nil {
		if s.Params, err = cfg.Settings.Params(); err != nil {
			return nil, err
		}
	}

	if len(refs) == 0 && !hasEnabledDatabases(cfg) {
		db, err := sim.Generate(sim.Options{}, sim.LocomotionSpecs()...)
		if err != nil {
			return nil, fmt.Errorf("failed to generate database: %w", err)
		}
		s.Names = []string{db.Name}
		s.DBs = []*posedb.Database{db}
		s.Synthetic = true
		return s, nil
	}

	_, loaded, err := loadDatabases(cfg, path, refs)
	if err != nil {
		return nil, err
	}
	for _, l := range loaded {
		s.Names = append(s.Names, l.Name)
		s.DBs = append(s.DBs, l.DB)
	}
	return s, nil
}

func hasEnabledDatabases(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	for _, d := range cfg.Databases {
		if !d.Disabled {
			return true
		}
	}
	return false
}

// openTraceStore opens the trace database. override wins over the
// configured path, which wins over ~/.posematch/trace.db.
func openTraceStore(cfg *config.Config, cfgPath, override string) (*storage.SQLiteStorage, error) {
	settings := traceSettings(cfg)
	path := override
	if path == "" && settings.Path != "" {
		path = config.ResolvePath(cfgPath, settings.Path)
	}
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	store := storage.NewStorageAt(path)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to open trace database %s: %w", path, err)
	}
	return store, nil
}

// retention returns how long recorded ticks are kept; zero keeps them.
func retention(cfg *config.Config) time.Duration {
	return time.Duration(traceSettings(cfg).RetentionDays) * 24 * time.Hour
}
