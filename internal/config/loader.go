package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// LoadFrom reads and validates the config at path.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := decode(path, data)
	if err != nil {
		return nil, &InvalidConfigError{Path: path, Stage: StageDecode, Err: err}
	}

	if err := Validate(cfg); err != nil {
		return nil, &InvalidConfigError{Path: path, Stage: StageValidate, Err: err}
	}
	return cfg, nil
}

// decode parses data as YAML or JSON depending on path and fills in
// defaults for everything the file leaves out.
func decode(path string, data []byte) (*Config, error) {
	cfg := &Config{Settings: DefaultSettings()}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}

	if cfg.Databases == nil {
		cfg.Databases = make(map[string]*DatabaseConfig)
	}
	if cfg.Settings == nil {
		cfg.Settings = DefaultSettings()
	}
	return cfg, nil
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
