package transport

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is wrapped when a backend alias is not registered.
var ErrUnknownBackend = errors.New("unknown backend")

// DefaultAlias is used for messages that do not name a backend.
const DefaultAlias = "default"

// Registry maps backend aliases to transports.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

// Register adds t under its name, replacing any previous entry.
func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Name()] = t
}

// Get returns the transport for alias. An empty alias selects DefaultAlias.
func (r *Registry) Get(alias string) (Transport, error) {
	if alias == "" {
		alias = DefaultAlias
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, alias)
	}
	return t, nil
}

// Names returns the registered aliases in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a transport from cfg under alias.
func New(alias string, cfg Config) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend %s: %w", alias, err)
	}

	switch cfg.Type {
	case "smtp":
		return NewSMTP(alias, cfg), nil
	case "stdout":
		return NewStdout(alias), nil
	case "file":
		return NewFile(alias, cfg.Path), nil
	case "sendgrid":
		return NewSendGrid(alias, cfg, newHTTPClient(cfg)), nil
	case "mailgun":
		return NewMailgun(alias, cfg, newHTTPClient(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

// NewRegistryFromConfig builds a registry with one transport per alias.
// A default backend must be present.
func NewRegistryFromConfig(backends map[string]Config) (*Registry, error) {
	if _, ok := backends[DefaultAlias]; !ok {
		return nil, fmt.Errorf("backend %q is not configured", DefaultAlias)
	}
	r := NewRegistry()
	for alias, cfg := range backends {
		t, err := New(alias, cfg)
		if err != nil {
			return nil, err
		}
		r.Register(t)
	}
	return r, nil
}
