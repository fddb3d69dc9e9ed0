package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Backend selects and tunes the generation backend.
type Backend struct {
	Name     string        `yaml:"backend,omitempty"`
	URL      string        `yaml:"url,omitempty"`
	Bearer   string        `yaml:"bearer,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	Insecure bool          `yaml:"insecure,omitempty"`
	RPS      float64       `yaml:"rps,omitempty"`
	Burst    int           `yaml:"burst,omitempty"`
	Retries  *int          `yaml:"retries,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Defaults are inherited by every stage that leaves a value unset.
type Defaults struct {
	Workers int    `yaml:"workers,omitempty"`
	Width   int    `yaml:"width,omitempty"`
	Joiner  string `yaml:"joiner,omitempty"`
	Backend `yaml:",inline"`
}

// StageConfig is one stage section as written in the configuration file.
type StageConfig struct {
	Name          string `yaml:"name"`
	Source        string `yaml:"source"`
	Destination   string `yaml:"destination"`
	Pattern       string `yaml:"pattern,omitempty"`
	InputPrefix   string `yaml:"input_prefix,omitempty"`
	Find          string `yaml:"find,omitempty"`
	OutputPrefix  string `yaml:"output_prefix,omitempty"`
	Replace       string `yaml:"replace,omitempty"`
	OutputPattern string `yaml:"output_pattern,omitempty"`
	Mode          string `yaml:"mode,omitempty"`
	Depth         int    `yaml:"depth,omitempty"`
	Prompt        string `yaml:"prompt,omitempty"`
	Split         string `yaml:"split,omitempty"`
	SplitBackend  string `yaml:"split_backend,omitempty"`
	Joiner        string `yaml:"joiner,omitempty"`
	Width         int    `yaml:"width,omitempty"`
	Workers       int    `yaml:"workers,omitempty"`
	Backend       `yaml:",inline"`
}

// Set assigns one configuration key. Keys are matched case-insensitively and
// '-' or ' ' are treated as '_', so INI sections, YAML-free overrides and
// --set flags share one vocabulary.
func (s *StageConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch normalizeKey(key) {
	case "name":
		s.Name = value
	case "source", "src":
		s.Source = value
	case "destination", "dest", "dst":
		s.Destination = value
	case "pattern", "input_pattern":
		s.Pattern = value
	case "input_prefix", "find":
		s.InputPrefix = value
	case "output_prefix", "replace":
		s.OutputPrefix = value
	case "output_pattern":
		s.OutputPattern = value
	case "mode":
		s.Mode = value
	case "depth":
		s.Depth, err = parseInt(key, value)
	case "prompt":
		s.Prompt = value
	case "split":
		s.Split = value
	case "split_backend":
		s.SplitBackend = value
	case "joiner":
		s.Joiner = unescape(value)
	case "width":
		s.Width, err = parseInt(key, value)
	case "workers":
		s.Workers, err = parseInt(key, value)
	default:
		var handled bool
		handled, err = s.Backend.set(key, value)
		if err == nil && !handled {
			err = fmt.Errorf("unknown key %q", key)
		}
	}
	return err
}

// Set assigns one [DEFAULT] key.
func (d *Defaults) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch normalizeKey(key) {
	case "workers":
		d.Workers, err = parseInt(key, value)
	case "width":
		d.Width, err = parseInt(key, value)
	case "joiner":
		d.Joiner = unescape(value)
	default:
		var handled bool
		handled, err = d.Backend.set(key, value)
		if err == nil && !handled {
			err = fmt.Errorf("unknown key %q", key)
		}
	}
	return err
}

func (b *Backend) set(key, value string) (bool, error) {
	var err error
	switch normalizeKey(key) {
	case "backend":
		b.Name = value
	case "url":
		b.URL = value
	case "bearer", "bearer_token", "token":
		b.Bearer = value
	case "api_key", "apikey":
		b.APIKey = value
	case "model":
		b.Model = value
	case "insecure":
		b.Insecure, err = strconv.ParseBool(value)
	case "rps":
		b.RPS, err = strconv.ParseFloat(value, 64)
	case "burst":
		b.Burst, err = parseInt(key, value)
	case "retries":
		var n int
		if n, err = parseInt(key, value); err == nil {
			b.Retries = &n
		}
	case "timeout":
		b.Timeout, err = time.ParseDuration(value)
	default:
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// PromptPath returns the prompt file and whether it was named explicitly. The
// implicit prompt is <source>/<output prefix>_prompt.txt.
func (s StageConfig) PromptPath() (string, bool) {
	if s.Prompt != "" {
		return s.Prompt, true
	}
	prefix := trimSeparator(s.OutputPrefix)
	if prefix == "" || s.Source == "" {
		return "", false
	}
	return filepath.Join(s.Source, prefix+"_prompt.txt"), false
}

// InputDepth is the id depth of the stage inputs: the explicit depth, else the
// wildcard arity of the input pattern, else 1.
func (s StageConfig) InputDepth() int {
	if s.Depth > 0 {
		return s.Depth
	}
	if arity := PatternArity(s.Pattern); arity > 0 {
		return arity
	}
	return 1
}

// OutputDepth is the wildcard arity of output_pattern, or 0 when none is set.
func (s StageConfig) OutputDepth() int {
	return PatternArity(s.OutputPattern)
}

func (d *Defaults) applyDefaults() {
	if d.Workers <= 0 {
		d.Workers = defaultWorkers
	}
	if d.Width <= 0 {
		d.Width = defaultWidth
	}
	if d.Retries == nil {
		n := defaultRetries
		d.Retries = &n
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultTimeout
	}
	if d.Burst <= 0 {
		d.Burst = 1
	}
}

func (d Defaults) validate() error {
	if d.Width > 9 {
		return fmt.Errorf("width must be between 1 and 9")
	}
	if d.RPS < 0 {
		return fmt.Errorf("rps must be >= 0")
	}
	if d.RetryCount() < 0 {
		return fmt.Errorf("retries must be >= 0")
	}
	return nil
}

// RetryCount is the number of retries after a failed call. An unset value
// counts as zero; applyDefaults fills it before anything reads it.
func (b Backend) RetryCount() int {
	if b.Retries == nil {
		return 0
	}
	return *b.Retries
}

// stageKeys are stage settings that may also appear in [DEFAULT], where every
// stage section inherits them.
var stageKeys = map[string]bool{
	"source": true, "src": true, "destination": true, "dest": true, "dst": true,
	"pattern": true, "input_pattern": true, "input_prefix": true, "find": true,
	"output_prefix": true, "replace": true, "output_pattern": true, "mode": true,
	"depth": true, "prompt": true, "split": true, "split_backend": true,
}

// isStageKey reports whether key is a per-stage setting rather than a default.
func isStageKey(key string) bool {
	return stageKeys[normalizeKey(key)]
}

// inherit fills unset values from the defaults.
func (s *StageConfig) inherit(d Defaults) {
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Joiner == "" {
		s.Joiner = d.Joiner
	}
	b := &s.Backend
	if b.Name == "" {
		b.Name = d.Name
	}
	if b.URL == "" {
		b.URL = d.URL
	}
	if b.Bearer == "" {
		b.Bearer = d.Bearer
	}
	if b.APIKey == "" {
		b.APIKey = d.APIKey
	}
	if b.Model == "" {
		b.Model = d.Model
	}
	if !b.Insecure {
		b.Insecure = d.Insecure
	}
	if b.RPS == 0 {
		b.RPS = d.RPS
	}
	if b.Burst <= 0 {
		b.Burst = d.Burst
	}
	if b.Retries == nil && d.Retries != nil {
		n := *d.Retries
		b.Retries = &n
	}
	if b.Timeout <= 0 {
		b.Timeout = d.Timeout
	}
}

func (s *StageConfig) normalize(base string) {
	s.Name = strings.TrimSpace(s.Name)
	s.Source = resolvePath(base, expandEnv(s.Source))
	s.Destination = resolvePath(base, expandEnv(s.Destination))
	s.Pattern = strings.TrimSpace(s.Pattern)
	s.OutputPattern = strings.TrimSpace(s.OutputPattern)
	if s.InputPrefix == "" {
		s.InputPrefix = s.Find
	}
	if s.InputPrefix == "" {
		s.InputPrefix = PatternPrefix(s.Pattern)
	}
	if s.OutputPrefix == "" {
		s.OutputPrefix = s.Replace
	}
	if s.OutputPrefix == "" {
		s.OutputPrefix = PatternPrefix(s.OutputPattern)
	}
	s.InputPrefix = trimSeparator(s.InputPrefix)
	s.OutputPrefix = trimSeparator(s.OutputPrefix)
	s.Find, s.Replace = "", ""
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	if s.Prompt != "" {
		s.Prompt = resolvePath(base, expandEnv(s.Prompt))
	}
	s.Split = strings.TrimSpace(s.Split)
	s.SplitBackend = strings.ToLower(strings.TrimSpace(s.SplitBackend))
	s.Backend.normalize()
}

func (b *Backend) normalize() {
	b.Name = strings.ToLower(strings.TrimSpace(b.Name))
	b.URL = strings.TrimSpace(expandEnv(b.URL))
	b.Bearer = strings.TrimSpace(expandEnv(b.Bearer))
	b.APIKey = strings.TrimSpace(expandEnv(b.APIKey))
	b.Model = strings.TrimSpace(expandEnv(b.Model))
	if b.Name == "" {
		if b.URL != "" {
			b.Name = "workspace"
		} else {
			b.Name = "echo"
		}
	}
}

func (s StageConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Source == "" {
		return fmt.Errorf("source is required")
	}
	if s.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if s.InputPrefix == "" {
		return fmt.Errorf("input_prefix (or find, or a pattern with a literal prefix) is required")
	}
	if s.OutputPrefix == "" {
		return fmt.Errorf("output_prefix (or replace, or output_pattern) is required")
	}
	switch s.Mode {
	case "", "expand", "split", "merge":
	default:
		return fmt.Errorf("mode must be expand, split or merge, got %q", s.Mode)
	}
	if s.Depth < 0 || s.Width < 0 || s.Workers < 0 || s.Backend.RetryCount() < 0 {
		return fmt.Errorf("depth, width, workers and retries must be >= 0")
	}
	if s.Width > 9 {
		return fmt.Errorf("width must be between 1 and 9")
	}
	return nil
}

// PatternArity counts the wildcard segments of a filename pattern such as
// "scenes_*_*.txt" (2). Segments are separated by '_'.
func PatternArity(pattern string) int {
	stem := strings.TrimSuffix(filepath.Base(strings.TrimSpace(pattern)), filepath.Ext(pattern))
	if stem == "" || stem == "." {
		return 0
	}
	count := 0
	for _, segment := range strings.Split(stem, "_") {
		if strings.ContainsAny(segment, "*?[") {
			count++
		}
	}
	return count
}

// PatternPrefix returns the literal segments before the first wildcard:
// "rundown_*.txt" gives "rundown".
func PatternPrefix(pattern string) string {
	stem := strings.TrimSuffix(filepath.Base(strings.TrimSpace(pattern)), filepath.Ext(pattern))
	var literal []string
	for _, segment := range strings.Split(stem, "_") {
		if strings.ContainsAny(segment, "*?[") {
			return strings.Join(literal, "_")
		}
		literal = append(literal, segment)
	}
	return ""
}

func trimSeparator(prefix string) string {
	return strings.TrimSuffix(strings.TrimSpace(prefix), "_")
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("-", "_", " ", "_").Replace(key)
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// unescape turns the two-character sequences \n and \t into their control
// characters so joiners can be written on one line.
func unescape(value string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(value)
}
