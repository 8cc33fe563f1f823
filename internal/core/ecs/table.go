package ecs

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// column is the type-erased view of a Column used by generic reset, clear
// and blend paths.
type column interface {
	Name() string
	reset(idx uint32)
	clear(idx uint32)
	blend(target, left, right uint32, t float32) bool
}

// Column is one field of a kind, stored densely for every slot. Storage is
// sized once at construction and never moves.
type Column[T any] struct {
	name    string
	data    []T
	def     T
	resetFn func(*T)
	lerpFn  func(a, b T, t float32) T
}

// At returns a pointer to the slot's value. The ref must be alive; this is
// not checked here.
func (c *Column[T]) At(ref Ref) *T { return &c.data[ref.Index()] }

func (c *Column[T]) Get(ref Ref) T        { return c.data[ref.Index()] }
func (c *Column[T]) Set(ref Ref, v T)     { c.data[ref.Index()] = v }
func (c *Column[T]) Default() T           { return c.def }
func (c *Column[T]) Name() string         { return c.name }
func (c *Column[T]) Len() int             { return len(c.data) }
func (c *Column[T]) SetReset(fn func(*T)) { c.resetFn = fn }

// SetLerp marks the column as blendable.
func (c *Column[T]) SetLerp(fn func(a, b T, t float32) T) { c.lerpFn = fn }

func (c *Column[T]) reset(idx uint32) {
	if c.resetFn != nil {
		c.resetFn(&c.data[idx])
		return
	}
	c.data[idx] = c.def
}

func (c *Column[T]) clear(idx uint32) {
	var zero T
	c.data[idx] = zero
}

func (c *Column[T]) blend(target, left, right uint32, t float32) bool {
	if c.lerpFn == nil {
		return false
	}
	c.data[target] = c.lerpFn(c.data[left], c.data[right], t)
	return true
}

// Table is the structure-of-arrays storage of one kind.
type Table struct {
	capacity int
	columns  []column
	byName   map[string]column
}

func NewTable(capacity int) *Table {
	return &Table{
		capacity: capacity,
		byName:   make(map[string]column),
	}
}

// AddColumn allocates a column for every slot of the table. Column names are
// unique per table.
func AddColumn[T any](t *Table, name string, def T) *Column[T] {
	if _, ok := t.byName[name]; ok {
		panic(fmt.Sprintf("ecs: column %q declared twice", name))
	}
	c := &Column[T]{
		name: name,
		data: make([]T, t.capacity),
		def:  def,
	}
	t.columns = append(t.columns, c)
	t.byName[name] = c
	return c
}

func (t *Table) Capacity() int { return t.capacity }

// ColumnNames lists columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name()
	}
	return names
}

// Reset writes every column's default into the slot.
func (t *Table) Reset(ref Ref) {
	idx := ref.Index()
	for _, c := range t.columns {
		c.reset(idx)
	}
}

// Clear zeroes the slot. Used when a slot is released.
func (t *Table) Clear(ref Ref) {
	idx := ref.Index()
	for _, c := range t.columns {
		c.clear(idx)
	}
}

// blend lerps every blendable column and reports how many were written.
func (t *Table) blend(target, left, right Ref, f float32) int {
	n := 0
	for _, c := range t.columns {
		if c.blend(target.Index(), left.Index(), right.Index(), f) {
			n++
		}
	}
	return n
}

// LerpFloat32 is exact at both ends: t=0 yields a, t=1 yields b.
func LerpFloat32(a, b, t float32) float32 { return a*(1-t) + b*t }

func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 { return a.Mul(1 - t).Add(b.Mul(t)) }
