package llm

import "fmt"

// Registry maps provider names to clients and tracks the default provider.
// Skills resolve their client through it, which lets tests swap in a scripted
// fake for every skill at once.
type Registry struct {
	clients         map[string]Client
	defaultProvider string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client under a provider name. The first registered provider
// becomes the default.
func (r *Registry) Register(name string, client Client) {
	r.clients[name] = client
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
}

// SetDefault selects the default provider. The provider must be registered.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.clients[name]; !ok {
		return fmt.Errorf("unknown LLM provider %q", name)
	}
	r.defaultProvider = name
	return nil
}

// Get returns the client for a provider name. An empty name returns the
// default provider's client.
func (r *Registry) Get(name string) (Client, error) {
	if name == "" {
		name = r.defaultProvider
	}
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
	return client, nil
}

// Default returns the default provider's client.
func (r *Registry) Default() (Client, error) {
	return r.Get("")
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
