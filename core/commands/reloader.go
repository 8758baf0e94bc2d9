package commands

import (
	"log/slog"
	"sync"
)

// Reloader hot-reloads config-defined reply commands, unregistering the
// previous generation before registering the new one. Commands registered
// outside the reloader are never touched.
type Reloader struct {
	registry *Registry
	logger   *slog.Logger

	mu    sync.Mutex
	names []string
}

// NewReloader creates a reloader bound to a registry.
func NewReloader(registry *Registry, logger *slog.Logger) *Reloader {
	return &Reloader{registry: registry, logger: logger}
}

// Reload replaces the tracked reply commands with the contents of the file
// at path. A load failure leaves the previous generation in place.
func (r *Reloader) Reload(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmds, err := LoadReplies(path)
	if err != nil {
		r.logger.Error("reload replies failed", "path", path, "error", err)
		return
	}

	for _, name := range r.names {
		r.registry.Unregister(name)
	}
	r.names = nil

	var names []string
	for i := range cmds {
		if err := r.registry.Register(&cmds[i]); err != nil {
			r.logger.Warn("skip reloaded reply", "name", cmds[i].Name(), "error", err)
			continue
		}
		names = append(names, cmds[i].Name())
	}
	r.names = names
	r.logger.Info("replies reloaded", "count", len(names))
}
