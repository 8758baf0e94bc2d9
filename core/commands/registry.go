package commands

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered commands keyed by name. Unlike the bot's handler
// sequence it is mutable: reply commands can be reloaded at runtime.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Command)}
}

// Register adds a command. Returns an error if the name is taken.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.cmds[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}
	r.cmds[name] = c
	return nil
}

// Unregister removes a command by name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cmds, name)
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cmds[name]
}

// List returns all commands sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Command, len(names))
	for i, name := range names {
		result[i] = r.cmds[name]
	}
	return result
}
