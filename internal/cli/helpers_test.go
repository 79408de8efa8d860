package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/khanglvm/posematch/internal/config"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// workspace returns a config path inside a fresh temp dir.
func workspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	return dir, filepath.Join(dir, "posematch.json")
}

// generated writes a synthetic database under dir and registers it as
// "locomotion" in cfgPath.
func generated(t *testing.T, dir, cfgPath string) string {
	t.Helper()
	dbDir := filepath.Join(dir, "locomotion")
	if out, err := execute(t, "--config", cfgPath, "generate", dbDir, "--add"); err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	return dbDir
}

func loadTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	return cfg
}
