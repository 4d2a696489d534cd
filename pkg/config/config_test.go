package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (c *testConfig) Validate() error {
	c.valid = true
	if c.Port < 0 {
		return errors.New("negative port")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "speclink")
	cfg := &testConfig{}
	if err := Load(writeConfig(t, "name: ${CONFIG_TEST_NAME}\nport: 8080\n"), cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "speclink" || cfg.Port != 8080 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	err := Load(writeConfig(t, "name: x\nprot: 8080\n"), &testConfig{})
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	err := Load(writeConfig(t, "port: -1\n"), &testConfig{})
	if err == nil || !strings.Contains(err.Error(), "negative port") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg := &testConfig{Name: "default", Port: 1}
	if err := Load(writeConfig(t, ""), cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := &testConfig{Name: "default"}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &testConfig{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing = %v, want ErrNotExist", err)
	}
}
