package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/multierr"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output.Dir != "." {
		t.Errorf("expected output dir '.', got %s", cfg.Output.Dir)
	}
	if !reflect.DeepEqual(cfg.Output.Formats, []string{"3mf", "stl"}) {
		t.Errorf("unexpected default formats %v", cfg.Output.Formats)
	}
	if cfg.Model.Unit != "millimeter" {
		t.Errorf("expected unit millimeter, got %s", cfg.Model.Unit)
	}
	if cfg.Model.Metadata["Application"] != "buildplate" {
		t.Errorf("expected Application metadata, got %v", cfg.Model.Metadata)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "buildplate.yaml",
			content: `
output:
  dir: "out"
  formats: ["3mf", "stl-ascii"]
model:
  unit: "inch"
  metadata:
    Designer: "ops"
logging:
  level: "debug"
  log_file: "buildtool.log"
`,
		},
		{
			name: "toml",
			file: "buildplate.toml",
			content: `
[output]
dir = "out"
formats = ["3mf", "stl-ascii"]

[model]
unit = "inch"

[model.metadata]
Designer = "ops"

[logging]
level = "debug"
log_file = "buildtool.log"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, path); err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if cfg.Output.Dir != "out" {
				t.Errorf("expected dir 'out', got %s", cfg.Output.Dir)
			}
			if !reflect.DeepEqual(cfg.Output.Formats, []string{"3mf", "stl-ascii"}) {
				t.Errorf("unexpected formats %v", cfg.Output.Formats)
			}
			if cfg.Model.Unit != "inch" {
				t.Errorf("expected unit inch, got %s", cfg.Model.Unit)
			}
			if cfg.Model.Metadata["Designer"] != "ops" {
				t.Errorf("expected Designer metadata, got %v", cfg.Model.Metadata)
			}
			if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "buildtool.log" {
				t.Errorf("unexpected logging config %+v", cfg.Logging)
			}
		})
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"invalid.yaml": "output:\n  dir: [unclosed\n",
		"invalid.toml": "[output\ndir = 1\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if err := loadFromFile(Default(), path); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Model.Unit = "cubit"
	cfg.Output.Formats = nil
	cfg.Output.Dir = ""

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("expected 3 problems, got %d: %v", got, err)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "buildplate.toml"), []byte("[output]\ndir = \"x\"\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./buildplate.toml" {
		t.Errorf("expected ./buildplate.toml, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "out flag",
			setup: func() { *flagOut = "/tmp/plates" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Output.Dir != "/tmp/plates" {
					t.Errorf("expected output dir /tmp/plates, got %s", cfg.Output.Dir)
				}
			},
			teardown: func() { *flagOut = "" },
		},
		{
			name:  "log file flag",
			setup: func() { *flagLogFile = "run.log" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.LogFile != "run.log" {
					t.Errorf("expected log file run.log, got %s", cfg.Logging.LogFile)
				}
			},
			teardown: func() { *flagLogFile = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
output:
  dir: "from-file"
model:
  unit: "centimeter"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagOut = "from-flag"
	defer func() {
		*flagConfig = ""
		*flagOut = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Output.Dir != "from-flag" {
		t.Errorf("expected output dir from flag, got %s", cfg.Output.Dir)
	}
	if cfg.Model.Unit != "centimeter" {
		t.Errorf("expected unit from file, got %s", cfg.Model.Unit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("model:\n  unit: parsec\n"), 0644); err != nil {
		t.Fatal(err)
	}
	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected validation error")
	}
}

func TestSaveTo(t *testing.T) {
	dir := t.TempDir()
	orig := Default()
	orig.Output.Formats = []string{"stl-ascii"}
	orig.Model.Metadata["Title"] = "Plate"

	for _, name := range []string{"nested/config.yaml", "nested/config.toml"} {
		path := filepath.Join(dir, name)
		if err := orig.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s): %v", name, err)
		}
		loaded := &Config{}
		if err := loadFromFile(loaded, path); err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		if !reflect.DeepEqual(orig, loaded) {
			t.Errorf("%s: round trip mismatch:\n got %+v\nwant %+v", name, loaded, orig)
		}
	}
}
