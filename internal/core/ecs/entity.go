package ecs

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EntityKind = "Entity"

// EntityManager allocates entity refs. Entities carry no data of their own
// besides a display name, a stable GUID and the transient flag; everything
// else lives in components.
type EntityManager struct {
	Manager
	names     *Column[string]
	guids     *Column[uuid.UUID]
	transient *Column[bool]
}

func NewEntityManager(capacity int, log *zap.Logger) *EntityManager {
	m := &EntityManager{Manager: newManager(EntityKind, capacity, log)}
	m.names = AddColumn(m.table, "name", "")
	m.guids = AddColumn(m.table, "guid", uuid.Nil)
	m.guids.SetReset(func(*uuid.UUID) {})
	m.transient = AddColumn(m.table, "transient", false)
	Expose(m, m.names, "name", Category("General"))
	Expose(m, m.transient, "transient", Category("General"), Internal())
	return m
}

// Create allocates an entity with a fresh GUID.
func (m *EntityManager) Create(name string) (Ref, error) {
	return m.CreateWithGUID(name, uuid.New())
}

// CreateWithGUID is used when loading saved entities.
func (m *EntityManager) CreateWithGUID(name string, guid uuid.UUID) (Ref, error) {
	ref, err := m.allocate()
	if err != nil {
		return InvalidRef, err
	}
	m.table.Reset(ref)
	m.names.Set(ref, name)
	m.guids.Set(ref, guid)
	m.notify(OpCreated, ref)
	return ref, nil
}

// Destroy releases the entity slot only. World.DestroyEntity also tears
// down the components.
func (m *EntityManager) Destroy(ref Ref) error {
	if !m.Alive(ref) {
		return m.invalid("destroy", ref)
	}
	m.release(ref)
	m.notify(OpDestroyed, ref)
	return nil
}

func (m *EntityManager) Name(ref Ref) string {
	if !m.Alive(ref) {
		return ""
	}
	return m.names.Get(ref)
}

func (m *EntityManager) GUID(ref Ref) uuid.UUID {
	if !m.Alive(ref) {
		return uuid.Nil
	}
	return m.guids.Get(ref)
}

// SetTransient marks runtime-spawned entities that are never saved.
func (m *EntityManager) SetTransient(ref Ref, on bool) {
	if !m.Alive(ref) {
		m.invalid("set transient", ref)
		return
	}
	m.transient.Set(ref, on)
}

func (m *EntityManager) Transient(ref Ref) bool {
	return m.Alive(ref) && m.transient.Get(ref)
}
