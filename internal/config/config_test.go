package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Databases == nil {
		t.Error("NewConfig().Databases should not be nil")
	}
	if cfg.Settings == nil {
		t.Fatal("NewConfig().Settings should not be nil")
	}
	if cfg.Settings.BuildWorkers != 4 {
		t.Errorf("Default BuildWorkers should be 4, got %d", cfg.Settings.BuildWorkers)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDefaultSettingsMatchDefaultParams(t *testing.T) {
	p, err := DefaultSettings().Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if p != matching.DefaultParams() {
		t.Errorf("default settings give %+v, want %+v", p, matching.DefaultParams())
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"posematch.json", "posematch.yaml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)

			cfg := NewConfig()
			cfg.Databases["locomotion"] = &DatabaseConfig{Path: "dbs/locomotion", Mode: "vptree", KNNNeighbors: 32}
			cfg.Settings.ThrottleSeconds = 0.25
			cfg.Settings.Trace.Enabled = true

			if err := Save(cfg, configPath); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := LoadFrom(configPath)
			if err != nil {
				t.Fatalf("LoadFrom failed: %v", err)
			}

			db, ok := loaded.Databases["locomotion"]
			if !ok {
				t.Fatal("locomotion database not found in loaded config")
			}
			if db.Path != "dbs/locomotion" || db.Mode != "vptree" || db.KNNNeighbors != 32 {
				t.Errorf("database entry mismatch: %+v", db)
			}
			if loaded.Settings.ThrottleSeconds != 0.25 {
				t.Errorf("ThrottleSeconds mismatch: got %g", loaded.Settings.ThrottleSeconds)
			}
			if !loaded.Settings.Trace.Enabled {
				t.Error("trace should be enabled")
			}
			if loaded.Settings.PlayRate != (posedb.Interval{Min: 0.8, Max: 1.2}) {
				t.Errorf("PlayRate mismatch: %+v", loaded.Settings.PlayRate)
			}
		})
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"databases": {"idle": {"path": "/tmp/idle"}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Settings == nil || cfg.Settings.BuildWorkers != 4 {
		t.Errorf("expected default settings, got %+v", cfg.Settings)
	}
}

func TestLoadOrCreate(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if len(cfg.Databases) != 0 {
		t.Errorf("expected no databases, got %d", len(cfg.Databases))
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file should have been written: %v", err)
	}

	// second call reads the file instead of overwriting it
	cfg.Databases["walk"] = &DatabaseConfig{Path: "walk"}
	if err := Save(cfg, configPath); err != nil {
		t.Fatal(err)
	}
	again, err := LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if _, ok := again.Databases["walk"]; !ok {
		t.Error("existing config was not loaded")
	}
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name       string
		configPath string
		path       string
		want       string
	}{
		{"absolute", "/etc/posematch.json", "/data/db", "/data/db"},
		{"relative", "/etc/posematch.json", "db", "/etc/db"},
		{"home", "/etc/posematch.json", "~/db", filepath.Join(home, "db")},
		{"no config path", "", "db", "db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.configPath, tt.path); got != tt.want {
				t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.configPath, tt.path, got, tt.want)
			}
		})
	}
}

func TestDatabaseConfigApply(t *testing.T) {
	db := posedb.NewDatabase("loco", posedb.TrajectorySchema("traj", []float64{0.5}, 30))

	d := &DatabaseConfig{Path: "loco", Mode: "vptree", KNNNeighbors: 12}
	if err := d.Apply(db); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if db.Mode != posedb.ModeVPTree || db.KNNNeighbors != 12 {
		t.Errorf("overrides not applied: mode=%v knn=%d", db.Mode, db.KNNNeighbors)
	}

	if err := (&DatabaseConfig{Path: "loco", Mode: "octree"}).Apply(db); err == nil {
		t.Error("expected error for unknown mode")
	}
}
