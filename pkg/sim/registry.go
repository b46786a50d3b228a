package sim

import (
	"fmt"
	"sort"
)

// Factory creates a fresh action value for one execution.
type Factory func() Action

// Registry is the name → action-type directory. It is a plain value passed
// to the simulator at construction so tests can build isolated registries;
// nothing depends on a process-wide singleton.
type Registry struct {
	factories map[string]Factory
	specs     map[string]Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		specs:     make(map[string]Spec),
	}
}

// Register adds an action type. The factory is invoked once here to record
// the type's Spec. Duplicate names are an error.
func (r *Registry) Register(f Factory) error {
	probe := f()
	name := probe.Name()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("action %q already registered", name)
	}
	r.factories[name] = f
	r.specs[name] = probe.Spec()
	return nil
}

// MustRegister is Register panicking on error; used during startup wiring.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// New instantiates an action by name.
func (r *Registry) New(name string) (Action, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Spec returns the class-level declaration of a registered type.
func (r *Registry) Spec(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// All returns every registered name, sorted so registration order never
// affects semantics.
func (r *Registry) All() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ActualOnly returns the names directly selectable by AI decisions, sorted.
func (r *Registry) ActualOnly() []string {
	var out []string
	for name, spec := range r.specs {
		if spec.Actual {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
