package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Builtin backend names.
const (
	BackendEcho      = "echo"
	BackendWorkspace = "workspace"
	BackendGemini    = "gemini"
)

// Settings is the backend configuration a stage resolves against.
type Settings struct {
	Backend  string
	URL      string
	Bearer   string
	APIKey   string
	Model    string
	Insecure bool
	RPS      float64
	Burst    int
	Retries  int
	Backoff  time.Duration
	Timeout  time.Duration
}

// Factory constructs a bare backend from settings.
type Factory func(ctx context.Context, settings Settings) (Generator, error)

// Registry maintains known backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry holding the echo, workspace and gemini
// backends.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.MustRegister(BackendEcho, func(context.Context, Settings) (Generator, error) {
		return Echo{}, nil
	})
	reg.MustRegister(BackendWorkspace, func(_ context.Context, s Settings) (Generator, error) {
		return NewWorkspaceGenerator(WorkspaceConfig{URL: s.URL, Bearer: s.Bearer, Insecure: s.Insecure, Timeout: s.Timeout})
	})
	reg.MustRegister(BackendGemini, func(ctx context.Context, s Settings) (Generator, error) {
		return NewGeminiGenerator(ctx, GeminiConfig{APIKey: s.APIKey, Model: s.Model})
	})
	return reg
}

// Register installs a backend factory. Returns an error if the name exists.
func (r *Registry) Register(name string, factory Factory) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("generate: backend name is required")
	}
	if factory == nil {
		return fmt.Errorf("generate: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("generate: backend %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve builds the backend named by settings and decorates it with the
// timeout, rate limit, retry and classification middleware the settings ask
// for.
func (r *Registry) Resolve(ctx context.Context, settings Settings) (Generator, error) {
	name := normalizeName(settings.Backend)
	if name == "" {
		name = BackendEcho
	}
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("generate: unknown backend %s (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	base, err := factory(ctx, settings)
	if err != nil {
		return nil, err
	}
	return Wrap(base,
		Classify(name),
		Retry(settings.Retries+1, settings.Backoff),
		RateLimit(settings.RPS, settings.Burst),
		Timeout(settings.Timeout),
	), nil
}

// Names returns the sorted backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
