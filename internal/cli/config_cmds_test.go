package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestAddCommand(t *testing.T) {
	dir, cfgPath := workspace(t)
	dbDir := filepath.Join(dir, "synthetic")
	if _, err := execute(t, "--config", cfgPath, "generate", dbDir); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	out, err := execute(t, "--config", cfgPath, "add", "loco", dbDir, "--mode", "vptree", "--knn", "16")
	if err != nil {
		t.Fatalf("add failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "7 motions") {
		t.Errorf("expected the database to be checked, got: %s", out)
	}

	cfg := loadTestConfig(t, cfgPath)
	entry, ok := cfg.Databases["loco"]
	if !ok {
		t.Fatal("database not registered")
	}
	if entry.Mode != "vptree" || entry.KNNNeighbors != 16 {
		t.Errorf("unexpected entry %+v", entry)
	}

	if _, err := execute(t, "--config", cfgPath, "add", "loco", dbDir); err == nil {
		t.Error("expected duplicate name to fail")
	}
	if _, err := execute(t, "--config", cfgPath, "add", "loco", dbDir, "--overwrite"); err != nil {
		t.Errorf("expected --overwrite to succeed: %v", err)
	}
}

func TestAddCommandErrors(t *testing.T) {
	dir, cfgPath := workspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing directory", []string{"add", "a", filepath.Join(dir, "missing")}},
		{"not a database", []string{"add", "b", dir}},
		{"bad mode", []string{"add", "c", dir, "--mode", "fastest", "--no-check"}},
		{"negative knn", []string{"add", "d", dir, "--knn", "-1", "--no-check"}},
		{"missing args", []string{"add", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	// --no-check registers a directory that does not hold a database yet
	if _, err := execute(t, "--config", cfgPath, "add", "later", filepath.Join(dir, "later"), "--no-check"); err != nil {
		t.Errorf("expected --no-check to skip loading: %v", err)
	}
}

func TestRemoveCommand(t *testing.T) {
	dir, cfgPath := workspace(t)
	generated(t, dir, cfgPath)

	out, err := execute(t, "--config", cfgPath, "rm", "locomotion")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !strings.Contains(out, "Removed database 'locomotion'") {
		t.Errorf("unexpected output: %s", out)
	}
	if len(loadTestConfig(t, cfgPath).Databases) != 0 {
		t.Error("expected database to be removed")
	}

	if _, err := execute(t, "--config", cfgPath, "remove", "locomotion"); err == nil {
		t.Error("expected removing an unknown database to fail")
	}
}

func TestRemoveCommandWithoutConfig(t *testing.T) {
	_, cfgPath := workspace(t)
	if _, err := execute(t, "--config", cfgPath, "remove", "x"); err == nil {
		t.Error("expected error without config")
	}
}

func TestListCommand(t *testing.T) {
	dir, cfgPath := workspace(t)

	out, err := execute(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No databases configured") {
		t.Errorf("expected empty list message, got: %s", out)
	}

	generated(t, dir, cfgPath)

	out, err = execute(t, "--config", cfgPath, "ls", "--status")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "locomotion") || !strings.Contains(out, "7 motions") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, "--config", cfgPath, "list", "--json")
	if err != nil {
		t.Fatalf("list --json failed: %v", err)
	}
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Name != "locomotion" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestVerifyCommand(t *testing.T) {
	dir, cfgPath := workspace(t)
	generated(t, dir, cfgPath)

	out, err := execute(t, "--config", cfgPath, "verify")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Databases registered: 1") || !strings.Contains(out, "poses indexed") {
		t.Errorf("unexpected output: %s", out)
	}

	// a broken entry makes verify fail but still reports the good one
	if _, err := execute(t, "--config", cfgPath, "add", "broken", filepath.Join(dir, "nowhere"), "--no-check"); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "--config", cfgPath, "verify", "--no-build")
	if err == nil {
		t.Fatal("expected verify to fail")
	}
	if !strings.Contains(out, "✗ broken") || !strings.Contains(out, "✓ locomotion") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestVerifyCommandWithoutConfig(t *testing.T) {
	_, cfgPath := workspace(t)
	if _, err := execute(t, "--config", cfgPath, "verify"); err == nil {
		t.Error("expected error without config")
	}
}
