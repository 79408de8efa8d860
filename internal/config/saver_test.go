package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	data := []byte(`{"test": "data"}`)
	if err := atomicWrite(testPath, data); err != nil {
		t.Fatalf("atomicWrite failed: %v", err)
	}

	readData, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(readData) != string(data) {
		t.Errorf("content mismatch: got %q, want %q", string(readData), string(data))
	}

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(testPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the config file, found %d entries", len(entries))
	}
}

func TestAtomicWriteCreatesDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := atomicWrite(testPath, []byte(`{}`)); err != nil {
		t.Fatalf("atomicWrite failed: %v", err)
	}
	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}
}

func TestBackupConfig(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	originalData := []byte(`{"original": true}`)
	if err := os.WriteFile(testPath, originalData, 0644); err != nil {
		t.Fatalf("failed to create original config: %v", err)
	}
	if err := backupConfig(testPath); err != nil {
		t.Fatalf("backupConfig failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(bakData) != string(originalData) {
		t.Errorf("backup content mismatch: got %q", string(bakData))
	}
}

func TestBackupConfigFirstRun(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	if err := backupConfig(testPath); err != nil {
		t.Errorf("backupConfig should not fail on first run: %v", err)
	}
	if _, err := os.Stat(testPath + ".bak"); !os.IsNotExist(err) {
		t.Error("backup should not exist on first run")
	}
}

func TestSaveCreatesBackup(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.Databases["first"] = &DatabaseConfig{Path: "first"}
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	cfg.Databases["second"] = &DatabaseConfig{Path: "second"}
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("backup was not created: %v", err)
	}
	if !strings.Contains(string(bakData), "first") || strings.Contains(string(bakData), "second") {
		t.Errorf("backup should hold the first version, got %s", bakData)
	}
}

func TestSaveValidatesBeforeWrite(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.Databases["broken"] = &DatabaseConfig{}

	err := Save(cfg, testPath)
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidConfigError, got %v", err)
	}
	if invalid.Stage != StageSave {
		t.Errorf("expected save stage, got %s", invalid.Stage)
	}
	if _, err := os.Stat(testPath); !os.IsNotExist(err) {
		t.Error("invalid config should not be written")
	}
}

func TestSaveReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	testPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(testPath, []byte(`{}`), 0444); err != nil {
		t.Fatal(err)
	}

	err := Save(NewConfig(), testPath)
	var perm *PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if perm.Op != "write" {
		t.Errorf("expected write op, got %s", perm.Op)
	}
}

func TestSaveConcurrentWrites(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := NewConfig()
			cfg.Settings.BuildWorkers = i + 1
			if err := Save(cfg, testPath); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent save failed: %v", err)
	}

	// whichever write landed last, the file is complete
	if _, err := LoadFrom(testPath); err != nil {
		t.Errorf("config corrupted after concurrent writes: %v", err)
	}
}
