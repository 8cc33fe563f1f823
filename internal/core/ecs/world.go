package ecs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// World is the top-level container. It owns the entity manager, the kind
// registry, and a deferred destruction queue flushed by CleanupSystem each
// tick.
type World struct {
	entities     *EntityManager
	registry     *Registry
	destroyQueue []Ref
	log          *zap.Logger
}

func NewWorld(entityCapacity int, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		entities:     NewEntityManager(entityCapacity, log),
		registry:     NewRegistry(),
		destroyQueue: make([]Ref, 0, 64),
		log:          log,
	}
}

func (w *World) Entities() *EntityManager { return w.entities }
func (w *World) Registry() *Registry      { return w.registry }

// RegisterComponent registers the kind and makes its Create reject dead
// entities.
func (w *World) RegisterComponent(m *ComponentManager) {
	m.SetEntitySource(w.entities)
	w.registry.RegisterComponent(m)
}

func (w *World) RegisterResource(m *ResourceManager) {
	w.registry.RegisterResource(m)
}

func (w *World) SetAssertRefs(on bool) {
	w.entities.SetAssertRefs(on)
	w.registry.SetAssertRefs(on)
}

func (w *World) CreateEntity(name string) (Ref, error) {
	return w.entities.Create(name)
}

func (w *World) Alive(entity Ref) bool {
	return w.entities.Alive(entity)
}

// AddComponent creates the kind's component for entity and resets it to
// defaults.
func (w *World) AddComponent(entity Ref, kind string) (Ref, error) {
	m, err := w.registry.Component(kind)
	if err != nil {
		return InvalidRef, err
	}
	ref, err := m.Create(entity)
	if err != nil {
		return InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

// DestroyEntity destroys the entity's components in reverse registration
// order, each after its secondary resources, then releases the entity.
func (w *World) DestroyEntity(entity Ref) error {
	if !w.entities.Alive(entity) {
		return w.entities.invalid("destroy entity", entity)
	}
	comps := w.registry.Components()
	for i := len(comps) - 1; i >= 0; i-- {
		m := comps[i]
		ref := m.ForEntity(entity)
		if !ref.IsValid() {
			continue
		}
		m.DestroyResources([]Ref{ref})
		if err := m.Destroy(ref); err != nil {
			w.log.Error("destroy component", zap.String("kind", m.Kind()), zap.Error(err))
		}
	}
	return w.entities.Destroy(entity)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(entity Ref) {
	w.destroyQueue = append(w.destroyQueue, entity)
}

// FlushDestroyQueue destroys all queued entities. Entities queued twice or
// already gone are skipped. Returns the number destroyed.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, e := range w.destroyQueue {
		if !w.entities.Alive(e) {
			continue
		}
		if err := w.DestroyEntity(e); err == nil {
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// EntityDocument is the saved form of an entity and all of its components.
type EntityDocument struct {
	Name       string              `json:"name"`
	GUID       uuid.UUID           `json:"guid"`
	Components map[string]Fragment `json:"components"`
}

func (w *World) CompileEntity(entity Ref, opts CompileOptions) (EntityDocument, error) {
	if !w.entities.Alive(entity) {
		return EntityDocument{}, w.entities.invalid("compile entity", entity)
	}
	doc := EntityDocument{
		Name:       w.entities.Name(entity),
		GUID:       w.entities.GUID(entity),
		Components: make(map[string]Fragment),
	}
	for _, m := range w.registry.Components() {
		ref := m.ForEntity(entity)
		if !ref.IsValid() {
			continue
		}
		frag, err := m.CompileDescriptor(ref, opts)
		if err != nil {
			return EntityDocument{}, err
		}
		doc.Components[m.Kind()] = frag
	}
	return doc, nil
}

// InitEntity creates an entity from a document. Components are created in
// registration order; once all exist their secondary resources are built.
// Unknown kinds are logged and skipped. Property errors do not abort the
// load; they are returned joined together with the new entity.
func (w *World) InitEntity(doc EntityDocument) (Ref, error) {
	guid := doc.GUID
	if guid == uuid.Nil {
		guid = uuid.New()
	}
	entity, err := w.entities.CreateWithGUID(doc.Name, guid)
	if err != nil {
		return InvalidRef, err
	}

	for kind := range doc.Components {
		if _, err := w.registry.Component(kind); err != nil {
			w.log.Warn("skipped component", zap.String("entity", doc.Name), zap.Error(err))
		}
	}

	type created struct {
		m   *ComponentManager
		ref Ref
	}
	var made []created
	var errs []error
	for _, m := range w.registry.Components() {
		frag, ok := doc.Components[m.Kind()]
		if !ok {
			continue
		}
		ref, err := m.Create(entity)
		if err != nil {
			for i := len(made) - 1; i >= 0; i-- {
				_ = made[i].m.Destroy(made[i].ref)
			}
			_ = w.entities.Destroy(entity)
			return InvalidRef, fmt.Errorf("entity %q: %w", doc.Name, err)
		}
		m.ResetToDefault(ref)
		if err := m.InitFromDescriptor(ref, frag); err != nil {
			errs = append(errs, err)
		}
		made = append(made, created{m, ref})
	}
	for _, c := range made {
		c.m.CreateResources([]Ref{c.ref})
	}
	return entity, errors.Join(errs...)
}

// SaveEntities writes every non-transient entity as a JSON array.
func (w *World) SaveEntities(out io.Writer) (int, error) {
	docs := make([]EntityDocument, 0, w.entities.Len())
	for _, e := range w.entities.Live() {
		if w.entities.Transient(e) {
			continue
		}
		doc, err := w.CompileEntity(e, CompileOptions{})
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return 0, fmt.Errorf("encode entities: %w", err)
	}
	return len(docs), nil
}

// LoadEntities reads an array written by SaveEntities. Entities that fail
// to load are logged and skipped.
func (w *World) LoadEntities(in io.Reader) (int, error) {
	var docs []EntityDocument
	if err := json.NewDecoder(in).Decode(&docs); err != nil {
		return 0, fmt.Errorf("decode entities: %w", err)
	}
	var errs []error
	n := 0
	for _, doc := range docs {
		entity, err := w.InitEntity(doc)
		if err != nil {
			w.log.Warn("load entity", zap.String("name", doc.Name), zap.Error(err))
			errs = append(errs, err)
		}
		if entity.IsValid() {
			n++
		}
	}
	return n, errors.Join(errs...)
}
