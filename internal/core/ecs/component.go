package ecs

import (
	"fmt"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// Liveness reports whether a ref is alive. The entity manager implements it.
type Liveness interface {
	Alive(ref Ref) bool
}

type dependency struct {
	col      *Column[Ref]
	target   *ResourceManager
	baseName string
}

// ComponentManager manages a kind owned 1:1 by entities. It keeps the
// entity→component index and runs the dependent-resource cascade.
type ComponentManager struct {
	Manager
	entities []Ref
	byEntity *intmap.Map[Ref, Ref]
	deps     []dependency
	source   Liveness

	createResources  func([]Ref)
	destroyResources func([]Ref)
}

func NewComponentManager(kind string, capacity int, log *zap.Logger) *ComponentManager {
	return &ComponentManager{
		Manager:  newManager(kind, capacity, log),
		entities: make([]Ref, capacity),
		byEntity: intmap.New[Ref, Ref](capacity),
	}
}

// SetEntitySource makes Create reject entities that are not alive.
func (m *ComponentManager) SetEntitySource(src Liveness) { m.source = src }

// Owns declares that every component exclusively owns one resource of the
// target kind, stored in col. Dependencies are created in declaration order
// and destroyed in reverse.
func (m *ComponentManager) Owns(col *Column[Ref], target *ResourceManager, baseName string) {
	col.SetReset(func(*Ref) {})
	m.deps = append(m.deps, dependency{col: col, target: target, baseName: baseName})
}

// SetResourceHooks installs the batch hooks that create and destroy the
// secondary resources of already initialized components.
func (m *ComponentManager) SetResourceHooks(create, destroy func([]Ref)) {
	m.createResources = create
	m.destroyResources = destroy
}

// Create allocates a component for the entity. Field contents are undefined
// until ResetToDefault or InitFromDescriptor is called.
func (m *ComponentManager) Create(entity Ref) (Ref, error) {
	if m.source != nil && !m.source.Alive(entity) {
		return InvalidRef, m.invalid("create for entity", entity)
	}
	if _, ok := m.byEntity.Get(entity); ok {
		return InvalidRef, fmt.Errorf("%s: entity %s: %w", m.kind, entity, ErrDuplicateComponent)
	}

	ref, err := m.allocate()
	if err != nil {
		return InvalidRef, err
	}
	m.entities[ref.Index()] = entity
	m.byEntity.Put(entity, ref)

	for i, d := range m.deps {
		dep, err := d.target.Create(fmt.Sprintf("%s#%d.%d", d.baseName, ref.Index(), ref.Generation()))
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				m.destroyDependency(m.deps[j], ref)
			}
			m.byEntity.Del(entity)
			m.entities[ref.Index()] = InvalidRef
			m.release(ref)
			m.log.Error("cascade failed", zap.String("dependency", d.target.Kind()), zap.Error(err))
			return InvalidRef, fmt.Errorf("%s: create %s: %w: %w", m.kind, d.target.Kind(), ErrMissingDependency, err)
		}
		d.target.SetTransient(dep, true)
		d.target.owner.Set(dep, ref)
		d.target.ResetToDefault(dep)
		d.col.Set(ref, dep)
	}

	m.notify(OpCreated, ref)
	return ref, nil
}

// Destroy tears down owned resources, drops the entity association and
// releases the slot.
func (m *ComponentManager) Destroy(ref Ref) error {
	if !m.Alive(ref) {
		return m.invalid("destroy", ref)
	}
	for i := len(m.deps) - 1; i >= 0; i-- {
		m.destroyDependency(m.deps[i], ref)
	}
	entity := m.entities[ref.Index()]
	m.byEntity.Del(entity)
	m.entities[ref.Index()] = InvalidRef
	m.release(ref)
	m.notify(OpDestroyed, ref)
	return nil
}

func (m *ComponentManager) destroyDependency(d dependency, ref Ref) {
	dep := d.col.Get(ref)
	if d.target.Alive(dep) {
		if err := d.target.destroyOwned(dep, ref); err != nil {
			m.log.Error("destroy dependency", zap.String("dependency", d.target.Kind()), zap.Error(err))
		}
	}
	d.col.Set(ref, InvalidRef)
}

// Entity returns the owning entity, or InvalidRef for dead refs.
func (m *ComponentManager) Entity(ref Ref) Ref {
	if !m.Alive(ref) {
		return InvalidRef
	}
	return m.entities[ref.Index()]
}

// ForEntity returns the entity's component of this kind, or InvalidRef.
func (m *ComponentManager) ForEntity(entity Ref) Ref {
	ref, ok := m.byEntity.Get(entity)
	if !ok {
		return InvalidRef
	}
	return ref
}

// CreateResources runs the kind's resource hook on live refs.
func (m *ComponentManager) CreateResources(refs []Ref) {
	if m.createResources == nil {
		return
	}
	m.createResources(m.filterAlive("create resources", refs))
}

// DestroyResources runs the kind's resource teardown hook on live refs.
func (m *ComponentManager) DestroyResources(refs []Ref) {
	if m.destroyResources == nil {
		return
	}
	m.destroyResources(m.filterAlive("destroy resources", refs))
}

func (m *ComponentManager) filterAlive(op string, refs []Ref) []Ref {
	out := refs[:0:0]
	for _, ref := range refs {
		if !m.Alive(ref) {
			m.invalid(op, ref)
			continue
		}
		out = append(out, ref)
	}
	return out
}
