/*
Package config handles loading, saving and validating posematch configuration.

Configuration is stored in ~/.posematch.json. A .yaml or .yml path is read
and written as YAML instead; everything else is JSON.

Schema:

	{
	  "databases": {
	    "locomotion": {
	      "path": "~/anims/locomotion",
	      "mode": "vptree",
	      "knnNeighbors": 64
	    }
	  },
	  "settings": {
	    "throttleSeconds": 0.1,
	    "poseJumpThreshold": {"min": -0.2, "max": 0.2},
	    "reselectionWindowSeconds": 1,
	    "reselectionPenalty": 0.5,
	    "playRate": {"min": 0.8, "max": 1.2},
	    "interruptMode": "interrupt_on_database_change",
	    "buildWorkers": 4,
	    "trace": {"enabled": false}
	  }
	}
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/khanglvm/posematch/internal/posedb"
)

// Config represents the root configuration structure.
type Config struct {
	// Databases maps database names to where they are stored.
	Databases map[string]*DatabaseConfig `json:"databases" yaml:"databases" validate:"dive,required"`

	// Settings contains the matcher and runtime options.
	Settings *Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// DatabaseConfig points at one database directory. The optional fields
// override what the directory's manifest says.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path" validate:"required"`

	Mode         string `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,searchmode"`
	KNNNeighbors int    `json:"knnNeighbors,omitempty" yaml:"knnNeighbors,omitempty" validate:"gte=0"`

	// Disabled databases stay in the file but are never loaded.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Settings contains the matcher tunables and runtime options.
type Settings struct {
	ThrottleSeconds          float64         `json:"throttleSeconds" yaml:"throttleSeconds" validate:"gte=0"`
	PoseJumpThreshold        posedb.Interval `json:"poseJumpThreshold" yaml:"poseJumpThreshold"`
	ReselectionWindowSeconds float64         `json:"reselectionWindowSeconds" yaml:"reselectionWindowSeconds" validate:"gte=0"`
	ReselectionPenalty       float32         `json:"reselectionPenalty" yaml:"reselectionPenalty" validate:"gte=0"`
	PlayRate                 posedb.Interval `json:"playRate" yaml:"playRate"`
	SpeedMultiplier          float64         `json:"speedMultiplier,omitempty" yaml:"speedMultiplier,omitempty" validate:"gte=0"`
	InterruptMode            string          `json:"interruptMode,omitempty" yaml:"interruptMode,omitempty" validate:"omitempty,interruptmode"`
	UseCachedChannelData     bool            `json:"useCachedChannelData,omitempty" yaml:"useCachedChannelData,omitempty"`

	// BuildWorkers bounds concurrent index builds.
	BuildWorkers int `json:"buildWorkers" yaml:"buildWorkers" validate:"gte=1,lte=64"`

	Trace TraceSettings `json:"trace" yaml:"trace"`
}

// TraceSettings controls the SQLite search trace.
type TraceSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path overrides ~/.posematch/trace.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Candidates also records every evaluated pose. Traces grow quickly.
	Candidates bool `json:"candidates,omitempty" yaml:"candidates,omitempty"`

	RetentionDays int `json:"retentionDays,omitempty" yaml:"retentionDays,omitempty" validate:"gte=0"`
}

// NewConfig creates a new empty configuration with default settings.
func NewConfig() *Config {
	return &Config{
		Databases: make(map[string]*DatabaseConfig),
		Settings:  DefaultSettings(),
	}
}

// DefaultSettings mirrors matching.DefaultParams.
func DefaultSettings() *Settings {
	return &Settings{
		ThrottleSeconds:          0.1,
		PoseJumpThreshold:        posedb.Interval{Min: -0.2, Max: 0.2},
		ReselectionWindowSeconds: 1,
		ReselectionPenalty:       0.5,
		PlayRate:                 posedb.Interval{Min: 0.8, Max: 1.2},
		InterruptMode:            "interrupt_on_database_change",
		BuildWorkers:             4,
		Trace:                    TraceSettings{RetentionDays: 7},
	}
}

// GetDefaultConfigPath returns the path to ~/.posematch.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".posematch.json"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrCreate reads path, writing a default configuration first when the
// file does not exist.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := LoadFrom(path)
	if err == nil {
		return cfg, nil
	}
	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	cfg = NewConfig()
	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath expands a leading ~ and makes relative database paths
// relative to the directory holding the config file.
func ResolvePath(configPath, p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if filepath.IsAbs(p) || configPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
