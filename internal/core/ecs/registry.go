package ecs

import "fmt"

// Registry looks managers up by kind name. It is built once at startup;
// component kinds keep their registration order, which is also the order
// components are created when loading and the reverse of teardown order.
type Registry struct {
	components []*ComponentManager
	resources  []*ResourceManager
	byKind     map[string]any
}

func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]any)}
}

func (r *Registry) claim(kind string, m any) {
	if _, ok := r.byKind[kind]; ok {
		panic(fmt.Sprintf("ecs: kind %q registered twice", kind))
	}
	r.byKind[kind] = m
}

func (r *Registry) RegisterComponent(m *ComponentManager) {
	r.claim(m.Kind(), m)
	r.components = append(r.components, m)
}

func (r *Registry) RegisterResource(m *ResourceManager) {
	r.claim(m.Kind(), m)
	r.resources = append(r.resources, m)
}

func (r *Registry) Component(kind string) (*ComponentManager, error) {
	m, ok := r.byKind[kind].(*ComponentManager)
	if !ok {
		return nil, fmt.Errorf("component %q: %w", kind, ErrUnknownKind)
	}
	return m, nil
}

func (r *Registry) Resource(kind string) (*ResourceManager, error) {
	m, ok := r.byKind[kind].(*ResourceManager)
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", kind, ErrUnknownKind)
	}
	return m, nil
}

func (r *Registry) Components() []*ComponentManager { return r.components }
func (r *Registry) Resources() []*ResourceManager   { return r.resources }

// SetAssertRefs switches every registered manager into or out of assert
// mode.
func (r *Registry) SetAssertRefs(on bool) {
	for _, m := range r.components {
		m.SetAssertRefs(on)
	}
	for _, m := range r.resources {
		m.SetAssertRefs(on)
	}
}
