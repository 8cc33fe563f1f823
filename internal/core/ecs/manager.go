package ecs

import (
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// LifecycleOp says what happened to a slot.
type LifecycleOp uint8

const (
	OpCreated LifecycleOp = iota
	OpDestroyed
)

func (op LifecycleOp) String() string {
	if op == OpCreated {
		return "created"
	}
	return "destroyed"
}

// Lifecycle is delivered to observers after a slot is created or destroyed.
type Lifecycle struct {
	Kind string
	Ref  Ref
	Op   LifecycleOp
}

// Manager is the part of the lifecycle authority shared by every kind: slot
// allocation, the data table and the reflection schema.
type Manager struct {
	kind       string
	slots      *SlotAllocator
	table      *Table
	props      *Properties
	log        *zap.Logger
	assertRefs bool
	observers  []func(Lifecycle)
}

func newManager(kind string, capacity int, log *zap.Logger) Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return Manager{
		kind:  kind,
		slots: NewSlotAllocator(capacity),
		table: NewTable(capacity),
		props: newProperties(),
		log:   log.With(zap.String("kind", kind)),
	}
}

func (m *Manager) Kind() string               { return m.kind }
func (m *Manager) Table() *Table              { return m.table }
func (m *Manager) Properties() *Properties    { return m.props }
func (m *Manager) Alive(ref Ref) bool         { return m.slots.Alive(ref) }
func (m *Manager) Len() int                   { return m.slots.Len() }
func (m *Manager) Capacity() int              { return m.slots.Capacity() }
func (m *Manager) All() iter.Seq[Ref]         { return m.slots.All() }
func (m *Manager) Live() []Ref                { return m.slots.Live() }
func (m *Manager) Logger() *zap.Logger        { return m.log }
func (m *Manager) Observe(fn func(Lifecycle)) { m.observers = append(m.observers, fn) }

// SetAssertRefs makes operations on invalid refs panic instead of
// returning ErrInvalidReference. Meant for debug runs.
func (m *Manager) SetAssertRefs(on bool) { m.assertRefs = on }

// ResetToDefault writes the documented defaults into every exposed field.
func (m *Manager) ResetToDefault(ref Ref) {
	if !m.Alive(ref) {
		m.invalid("reset", ref)
		return
	}
	m.table.Reset(ref)
}

// CompileDescriptor produces the property fragment of one instance.
func (m *Manager) CompileDescriptor(ref Ref, opts CompileOptions) (Fragment, error) {
	if !m.Alive(ref) {
		return nil, m.invalid("compile descriptor", ref)
	}
	frag, err := m.props.Compile(ref, opts)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", m.kind, ref, err)
	}
	return frag, nil
}

// InitFromDescriptor applies a fragment. Properties that fail to convert
// are logged and skipped; the others are still written.
func (m *Manager) InitFromDescriptor(ref Ref, frag Fragment) error {
	if !m.Alive(ref) {
		return m.invalid("init from descriptor", ref)
	}
	errs := m.props.Init(ref, frag)
	for _, err := range errs {
		m.log.Warn("skipped property", zap.Stringer("ref", ref), zap.Error(err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s %s: %w", m.kind, ref, errors.Join(errs...))
	}
	return nil
}

func (m *Manager) allocate() (Ref, error) {
	ref, err := m.slots.Allocate()
	if err != nil {
		return InvalidRef, fmt.Errorf("%s: %w (capacity %d)", m.kind, err, m.slots.Capacity())
	}
	return ref, nil
}

func (m *Manager) release(ref Ref) {
	m.table.Clear(ref)
	_ = m.slots.Release(ref)
}

func (m *Manager) invalid(op string, ref Ref) error {
	err := fmt.Errorf("%s: %s %s: %w", m.kind, op, ref, ErrInvalidReference)
	if m.assertRefs {
		panic(err)
	}
	m.log.Error("invalid reference", zap.String("op", op), zap.Stringer("ref", ref))
	return err
}

func (m *Manager) notify(op LifecycleOp, ref Ref) {
	if len(m.observers) == 0 {
		return
	}
	ev := Lifecycle{Kind: m.kind, Ref: ref, Op: op}
	for _, fn := range m.observers {
		fn(ev)
	}
}
