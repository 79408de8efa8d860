package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()

	if root.Use != "posematch" {
		t.Errorf("Expected Use='posematch', got %q", root.Use)
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("Flag 'config' not registered")
	}

	want := []string{"init", "add", "remove", "list", "generate", "build", "inspect",
		"find", "simulate", "benchmark", "verify", "trace", "version"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				if c.Short == "" {
					t.Errorf("command %s has no short description", name)
				}
			}
		}
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestConfigPathResolution(t *testing.T) {
	_, cfgPath := workspace(t)
	envPath := filepath.Join(t.TempDir(), "env.json")
	t.Setenv(ConfigEnv, envPath)

	root := NewRootCmd()
	root.SetArgs([]string{"version"})
	cmd, _, err := root.Find([]string{"version"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	got, err := configPath(cmd)
	if err != nil {
		t.Fatalf("configPath failed: %v", err)
	}
	if got != envPath {
		t.Errorf("expected env path %s, got %s", envPath, got)
	}

	if err := root.PersistentFlags().Set("config", cfgPath); err != nil {
		t.Fatal(err)
	}
	got, _ = configPath(cmd)
	if got != cfgPath {
		t.Errorf("expected flag to win, got %s", got)
	}
}

func TestInitCommand(t *testing.T) {
	_, cfgPath := workspace(t)

	out, err := execute(t, "--config", cfgPath, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Created") {
		t.Errorf("unexpected output: %s", out)
	}
	cfg := loadTestConfig(t, cfgPath)
	if cfg.Settings == nil || cfg.Settings.BuildWorkers != 4 {
		t.Errorf("expected default settings, got %+v", cfg.Settings)
	}

	out, err = execute(t, "--config", cfgPath, "init")
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("expected existing config to be kept, got: %s", out)
	}

	if _, err := execute(t, "--config", cfgPath, "init", "--force"); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var info struct {
		Version   string `json:"version"`
		GoVersion string `json:"goVersion"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if info.Version == "" || info.GoVersion == "" {
		t.Errorf("expected version fields, got %+v", info)
	}

	out, err = execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "Version:") {
		t.Errorf("unexpected output: %s", out)
	}
}
