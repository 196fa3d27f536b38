// Package registry keeps the session's module list and the name → id map
// needed to turn matrix rows into wire records.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"console/internal/client"

	"go.uber.org/zap"
)

// ModuleSource lists the modules known to the backend.
type ModuleSource interface {
	ListModules(ctx context.Context) ([]client.Module, error)
}

type Registry struct {
	source ModuleSource
	log    *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	ids     map[string]string
	modules []client.Module
}

func New(source ModuleSource, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		source: source,
		log:    log,
		ids:    make(map[string]string),
	}
}

// Load fetches the module list once per session. After a successful load
// further calls return immediately; after a failure the map stays empty and
// Load may be called again.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	modules, err := r.source.ListModules(ctx)
	for _, m := range modules {
		if m.Name == "" || m.ID == "" {
			continue
		}
		if _, dup := r.ids[m.Name]; !dup {
			r.modules = append(r.modules, m)
		}
		r.ids[m.Name] = m.ID
	}
	if err != nil {
		r.log.Warn("module load failed", zap.Error(err), zap.Int("partial", len(r.ids)))
		return fmt.Errorf("loading modules: %w", err)
	}

	sort.Slice(r.modules, func(i, j int) bool { return r.modules[i].Name < r.modules[j].Name })
	r.loaded = true
	r.log.Debug("modules loaded", zap.Int("count", len(r.ids)))
	return nil
}

// Loaded reports whether a load has completed successfully.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// ID returns the backend id of the named module.
func (r *Registry) ID(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[name]
	return id, ok
}

// IDs returns a copy of the name → id map.
func (r *Registry) IDs() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out
}

// Modules returns the loaded modules ordered by name.
func (r *Registry) Modules() []client.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]client.Module, len(r.modules))
	copy(out, r.modules)
	return out
}
