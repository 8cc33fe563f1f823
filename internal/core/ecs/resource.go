package ecs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const nameProperty = "name"

// ResourceManager manages a kind owned by name. Names are NFC-normalized and
// unique within the kind.
type ResourceManager struct {
	Manager
	names     *Column[string]
	transient *Column[bool]
	owner     *Column[Ref]
	byName    map[string]Ref
}

func NewResourceManager(kind string, capacity int, log *zap.Logger) *ResourceManager {
	m := &ResourceManager{
		Manager: newManager(kind, capacity, log),
		byName:  make(map[string]Ref, capacity),
	}
	m.names = AddColumn(m.table, nameProperty, "")
	m.names.SetReset(func(*string) {})
	m.transient = AddColumn(m.table, "transient", false)
	m.transient.SetReset(func(*bool) {})
	m.owner = AddColumn(m.table, "owner", InvalidRef)
	m.owner.SetReset(func(*Ref) {})
	m.props.add(&nameBinding{m: m, s: &propertySpec{name: nameProperty, typ: TypeString, category: "General"}})
	return m
}

// Create allocates a named resource. Field contents are undefined until
// ResetToDefault or InitFromDescriptor is called.
func (m *ResourceManager) Create(name string) (Ref, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return InvalidRef, fmt.Errorf("%s: %w", m.kind, ErrEmptyName)
	}
	if _, ok := m.byName[name]; ok {
		return InvalidRef, fmt.Errorf("%s %q: %w", m.kind, name, ErrDuplicateName)
	}
	ref, err := m.allocate()
	if err != nil {
		return InvalidRef, err
	}
	m.names.Set(ref, name)
	m.byName[name] = ref
	m.notify(OpCreated, ref)
	return ref, nil
}

// Destroy refuses resources owned by a component cascade; they go away with
// their owner.
func (m *ResourceManager) Destroy(ref Ref) error {
	if !m.Alive(ref) {
		return m.invalid("destroy", ref)
	}
	if owner := m.owner.Get(ref); owner.IsValid() {
		err := fmt.Errorf("%s: destroy %s: owned by %s: %w", m.kind, ref, owner, ErrInvalidReference)
		if m.assertRefs {
			panic(err)
		}
		m.log.Error("destroy owned resource", zap.Stringer("ref", ref), zap.Stringer("owner", owner))
		return err
	}
	m.destroy(ref)
	return nil
}

func (m *ResourceManager) destroy(ref Ref) {
	delete(m.byName, m.names.Get(ref))
	m.release(ref)
	m.notify(OpDestroyed, ref)
}

// destroyOwned releases a cascade-created resource on behalf of its owner.
func (m *ResourceManager) destroyOwned(ref, owner Ref) error {
	if !m.Alive(ref) {
		return m.invalid("destroy", ref)
	}
	if got := m.owner.Get(ref); got != owner {
		return fmt.Errorf("%s: destroy %s: owned by %s, not %s: %w", m.kind, ref, got, owner, ErrInvalidReference)
	}
	m.destroy(ref)
	return nil
}

// Owner returns the component that created ref through a cascade, or
// InvalidRef for free-standing resources.
func (m *ResourceManager) Owner(ref Ref) Ref {
	if !m.Alive(ref) {
		return InvalidRef
	}
	return m.owner.Get(ref)
}

// ByName returns InvalidRef when no resource has the name.
func (m *ResourceManager) ByName(name string) Ref {
	ref, ok := m.byName[norm.NFC.String(name)]
	if !ok {
		return InvalidRef
	}
	return ref
}

func (m *ResourceManager) Name(ref Ref) string {
	if !m.Alive(ref) {
		return ""
	}
	return m.names.Get(ref)
}

func (m *ResourceManager) Rename(ref Ref, name string) error {
	if !m.Alive(ref) {
		return m.invalid("rename", ref)
	}
	name = norm.NFC.String(name)
	old := m.names.Get(ref)
	if name == old {
		return nil
	}
	if name == "" {
		return fmt.Errorf("%s: %w", m.kind, ErrEmptyName)
	}
	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("%s %q: %w", m.kind, name, ErrDuplicateName)
	}
	delete(m.byName, old)
	m.byName[name] = ref
	m.names.Set(ref, name)
	return nil
}

// SetTransient excludes a resource from SaveTo. Resources created by a
// component cascade are transient; their owner rebuilds them.
func (m *ResourceManager) SetTransient(ref Ref, on bool) {
	if !m.Alive(ref) {
		m.invalid("set transient", ref)
		return
	}
	m.transient.Set(ref, on)
}

func (m *ResourceManager) Transient(ref Ref) bool {
	return m.Alive(ref) && m.transient.Get(ref)
}

// Blend writes lerp(left, right, factor) into target for every blendable
// column. The factor is clamped to [0, 1].
func (m *ResourceManager) Blend(target, left, right Ref, factor float32) error {
	for _, ref := range [...]Ref{target, left, right} {
		if !m.Alive(ref) {
			return m.invalid("blend", ref)
		}
	}
	factor = min(max(factor, 0), 1)
	m.table.blend(target, left, right, factor)
	return nil
}

// CompileDocument compiles the instance for persistence. Defaults are elided.
func (m *ResourceManager) CompileDocument(ref Ref) (Document, error) {
	frag, err := m.CompileDescriptor(ref, CompileOptions{})
	if err != nil {
		return Document{}, err
	}
	return Document{Properties: frag}, nil
}

// SaveTo writes every live, non-transient instance to the store. Failures are
// logged and the rest are still written.
func (m *ResourceManager) SaveTo(ctx context.Context, store DescriptorStore) (int, error) {
	var errs []error
	saved := 0
	for _, ref := range m.Live() {
		if m.transient.Get(ref) {
			continue
		}
		doc, err := m.CompileDocument(ref)
		if err == nil {
			err = store.Save(ctx, m.kind, m.names.Get(ref), doc)
		}
		if err != nil {
			m.log.Error("save descriptor", zap.String("name", m.names.Get(ref)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// LoadFrom creates or updates one instance per stored document. Existing
// instances with the same name are reset before the document is applied.
func (m *ResourceManager) LoadFrom(ctx context.Context, store DescriptorStore) (int, error) {
	stored, err := store.LoadAll(ctx, m.kind)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", m.kind, err)
	}
	var errs []error
	loaded := 0
	for _, sd := range stored {
		ref := m.ByName(sd.Name)
		if !ref.IsValid() {
			ref, err = m.Create(sd.Name)
			if err != nil {
				m.log.Error("load descriptor", zap.String("name", sd.Name), zap.Error(err))
				errs = append(errs, err)
				continue
			}
		}
		m.ResetToDefault(ref)
		if err := m.InitFromDescriptor(ref, sd.Doc.Properties); err != nil {
			errs = append(errs, err)
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// SaveToMultipleFiles writes one file per instance into dir, named after
// the instance with ext appended.
func (m *ResourceManager) SaveToMultipleFiles(dir, ext string) (int, error) {
	return m.SaveTo(context.Background(), NewFlatDirStore(dir, ext))
}

func (m *ResourceManager) LoadFromMultipleFiles(dir, ext string) (int, error) {
	return m.LoadFrom(context.Background(), NewFlatDirStore(dir, ext))
}

type nameBinding struct {
	m *ResourceManager
	s *propertySpec
}

func (b *nameBinding) spec() *propertySpec { return b.s }

func (b *nameBinding) compile(ref Ref, _ bool) (json.RawMessage, bool, error) {
	raw, err := json.Marshal(b.m.names.Get(ref))
	return raw, err == nil, err
}

func (b *nameBinding) init(ref Ref, raw json.RawMessage) error {
	name, err := decodeString(raw)
	if err != nil {
		return err
	}
	return b.m.Rename(ref, name)
}
