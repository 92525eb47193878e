package capability

import (
	"sort"
	"sync"
)

// Callable is an invocable collaborator entry point. Return values are
// discarded by callers; a Callable must handle its own errors.
type Callable func(params ...any)

// Module is a named set of callables. Values may be Callable or a nested
// Module, so a callback path can walk more than two keys deep.
type Module map[string]any

// Registry is the process-wide mapping from module name to callables.
// Collaborator modules register themselves at load time and unregister at
// unload time; the scheduler resolves callback paths against it with no
// compile-time knowledge of the targets.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func New() *Registry {
	return &Registry{modules: map[string]Module{}}
}

// Register installs m under name, replacing any previous registration.
func (r *Registry) Register(name string, m Module) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.modules[name] = m
	r.mu.Unlock()
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.modules, name)
	r.mu.Unlock()
}

// Resolve walks path through the registry: the first key selects a module,
// subsequent keys select nested entries. It reports false if any key is
// missing or the final value is not a Callable.
func (r *Registry) Resolve(path []string) (Callable, bool) {
	if len(path) < 2 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[path[0]]
	if !ok {
		return nil, false
	}
	var cur any = mod
	for _, key := range path[1:] {
		m, ok := cur.(Module)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	fn, ok := cur.(Callable)
	if !ok || fn == nil {
		return nil, false
	}
	return fn, true
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for name := range r.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
