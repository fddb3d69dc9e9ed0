// internal/config/config.go
//
// This package loads the pipeline configuration file and owns the
// .storyforge directory that sits next to it.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// StateDirName is the directory created next to every pipeline config.
	StateDirName = ".storyforge"

	defaultWorkers = 4
	defaultWidth   = 2
	defaultRetries = 2
	defaultTimeout = 5 * time.Minute
)

// File is the parsed configuration before it is bound to a location on disk.
type File struct {
	Defaults      Defaults          `yaml:"defaults"`
	SplitPatterns map[string]string `yaml:"split_patterns"`
	Stages        []StageConfig     `yaml:"stages"`
}

// Config holds the runtime configuration for one pipeline.
type Config struct {
	// Path is the absolute path of the configuration file.
	Path string

	// BaseDir is the directory holding the configuration file. Relative
	// stage directories resolve against it.
	BaseDir string

	// StateRoot is BaseDir/.storyforge
	StateRoot string

	File
}

// Load reads the configuration at path. INI is the default format; files
// ending in .yaml or .yml are parsed as YAML. A .env next to the file is
// loaded first so ${VAR} references can use it.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", abs, err)
	}
	base := filepath.Dir(abs)
	if err := loadDotEnv(base); err != nil {
		return nil, err
	}

	var parsed File
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		parsed, err = parseYAML(data)
	default:
		parsed, err = parseINI(data)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", abs, err)
	}

	parsed.applyDefaults()
	parsed.normalize(base)
	if err := parsed.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{
		Path:      abs,
		BaseDir:   base,
		StateRoot: filepath.Join(base, StateDirName),
		File:      parsed,
	}, nil
}

// InitStateDir creates the .storyforge directory structure.
//
// .storyforge/
// ├── logs/    <- storyforge.log and journal.log
// └── state/   <- run.json
func (c *Config) InitStateDir() error {
	for _, dir := range []string{c.LogsDir(), c.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateRoot, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.StateRoot, "state")
}

// LogPath returns the structured log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "storyforge.log")
}

// JournalPath returns the stage outcome journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// RunStatePath returns the persisted run state.
func (c *Config) RunStatePath() string {
	return filepath.Join(c.StateDir(), "run.json")
}

// Stage returns the named stage. Names match case-insensitively.
func (c *Config) Stage(name string) (StageConfig, bool) {
	idx := c.stageIndex(name)
	if idx < 0 {
		return StageConfig{}, false
	}
	return c.Stages[idx], true
}

// StageNames lists the stages in pipeline order.
func (c *Config) StageNames() []string {
	names := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		names[i] = s.Name
	}
	return names
}

// Override applies key=value overrides to one stage and re-validates it.
func (c *Config) Override(name string, values map[string]string) error {
	idx := c.stageIndex(name)
	if idx < 0 {
		return fmt.Errorf("config: unknown stage %q", name)
	}
	updated := c.Stages[idx]
	for key, value := range values {
		if err := updated.Set(key, value); err != nil {
			return fmt.Errorf("config: override %s: %w", name, err)
		}
	}
	updated.inherit(c.Defaults)
	updated.normalize(c.BaseDir)
	if err := updated.validate(); err != nil {
		return fmt.Errorf("config: stage %s: %w", name, err)
	}
	c.Stages[idx] = updated
	return nil
}

func (c *Config) stageIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, s := range c.Stages {
		if strings.EqualFold(s.Name, name) {
			return i
		}
	}
	return -1
}

func (f *File) applyDefaults() {
	f.Defaults.applyDefaults()
	if f.SplitPatterns == nil {
		f.SplitPatterns = map[string]string{}
	}
	for i := range f.Stages {
		f.Stages[i].inherit(f.Defaults)
	}
}

func (f *File) normalize(base string) {
	f.Defaults.Backend.normalize()
	for i := range f.Stages {
		f.Stages[i].normalize(base)
	}
}

func (f *File) validate() error {
	if len(f.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	if err := f.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name, expr := range f.SplitPatterns {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("split pattern %s: %w", name, err)
		}
	}
	seen := map[string]bool{}
	for i := range f.Stages {
		s := &f.Stages[i]
		if err := s.validate(); err != nil {
			return fmt.Errorf("stages[%d] %s: %w", i, s.Name, err)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return fmt.Errorf("stage %s declared twice", s.Name)
		}
		seen[key] = true
	}
	return nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references. Bare $ is left alone so regular
// expressions and prompts survive untouched.
func expandEnv(value string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
