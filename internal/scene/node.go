// Package scene holds the Node component: the spatial hierarchy every
// positioned entity hangs off.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/intrinsic/engine/internal/core/ecs"
)

const Kind = "Node"

// NodeFlags mark runtime state of a node.
type NodeFlags uint32

const (
	// FlagSpawned marks nodes created at runtime rather than loaded.
	FlagSpawned NodeFlags = 1 << iota
	FlagHidden
)

// NodeManager stores local and world transforms plus parent/child links.
// Children are kept as an intrusive singly linked list per parent.
type NodeManager struct {
	*ecs.ComponentManager

	Position    *ecs.Column[mgl32.Vec3]
	Orientation *ecs.Column[mgl32.Quat]
	Size        *ecs.Column[mgl32.Vec3]
	Flags       *ecs.Column[NodeFlags]

	parent      *ecs.Column[ecs.Ref]
	firstChild  *ecs.Column[ecs.Ref]
	nextSibling *ecs.Column[ecs.Ref]

	worldPosition    *ecs.Column[mgl32.Vec3]
	worldOrientation *ecs.Column[mgl32.Quat]
	worldSize        *ecs.Column[mgl32.Vec3]

	order []ecs.Ref
}

func NewNodeManager(capacity int, log *zap.Logger) *NodeManager {
	m := &NodeManager{ComponentManager: ecs.NewComponentManager(Kind, capacity, log)}
	t := m.Table()
	m.Position = ecs.AddColumn(t, "position", mgl32.Vec3{})
	m.Orientation = ecs.AddColumn(t, "orientation", mgl32.QuatIdent())
	m.Size = ecs.AddColumn(t, "size", mgl32.Vec3{1, 1, 1})
	m.Flags = ecs.AddColumn(t, "flags", NodeFlags(0))

	keep := func(*ecs.Ref) {}
	m.parent = ecs.AddColumn(t, "parent", ecs.InvalidRef)
	m.parent.SetReset(keep)
	m.firstChild = ecs.AddColumn(t, "firstChild", ecs.InvalidRef)
	m.firstChild.SetReset(keep)
	m.nextSibling = ecs.AddColumn(t, "nextSibling", ecs.InvalidRef)
	m.nextSibling.SetReset(keep)

	m.worldPosition = ecs.AddColumn(t, "worldPosition", mgl32.Vec3{})
	m.worldOrientation = ecs.AddColumn(t, "worldOrientation", mgl32.QuatIdent())
	m.worldSize = ecs.AddColumn(t, "worldSize", mgl32.Vec3{1, 1, 1})

	ecs.Expose(m, m.Position, "position", ecs.Category("Transform"))
	ecs.Expose(m, m.Orientation, "orientation", ecs.Category("Transform"))
	ecs.Expose(m, m.Size, "size", ecs.Category("Transform"))

	m.SetResourceHooks(nil, m.detachAll)
	return m
}

// CreateNode creates and resets the node of an entity.
func (m *NodeManager) CreateNode(entity ecs.Ref) (ecs.Ref, error) {
	ref, err := m.Create(entity)
	if err != nil {
		return ecs.InvalidRef, err
	}
	m.ResetToDefault(ref)
	return ref, nil
}

// AttachChild moves child under parent, detaching it from its previous
// parent first. World transforms are not updated here.
func (m *NodeManager) AttachChild(parent, child ecs.Ref) error {
	if !m.Alive(parent) || !m.Alive(child) {
		return fmt.Errorf("attach %s to %s: %w", child, parent, ecs.ErrInvalidReference)
	}
	for p := parent; p.IsValid(); p = m.parent.Get(p) {
		if p == child {
			return fmt.Errorf("attach %s to %s: would create a cycle", child, parent)
		}
	}
	m.DetachChild(child)

	m.parent.Set(child, parent)
	last := m.firstChild.Get(parent)
	if !last.IsValid() {
		m.firstChild.Set(parent, child)
		return nil
	}
	for next := m.nextSibling.Get(last); next.IsValid(); next = m.nextSibling.Get(last) {
		last = next
	}
	m.nextSibling.Set(last, child)
	return nil
}

// DetachChild unlinks a node from its parent. Its own children stay attached.
func (m *NodeManager) DetachChild(child ecs.Ref) {
	parent := m.parent.Get(child)
	if !m.Alive(parent) {
		m.parent.Set(child, ecs.InvalidRef)
		return
	}
	next := m.nextSibling.Get(child)
	if m.firstChild.Get(parent) == child {
		m.firstChild.Set(parent, next)
	} else {
		for c := m.firstChild.Get(parent); c.IsValid(); c = m.nextSibling.Get(c) {
			if m.nextSibling.Get(c) == child {
				m.nextSibling.Set(c, next)
				break
			}
		}
	}
	m.parent.Set(child, ecs.InvalidRef)
	m.nextSibling.Set(child, ecs.InvalidRef)
}

func (m *NodeManager) Parent(ref ecs.Ref) ecs.Ref {
	if !m.Alive(ref) {
		return ecs.InvalidRef
	}
	return m.parent.Get(ref)
}

func (m *NodeManager) Children(ref ecs.Ref) []ecs.Ref {
	var out []ecs.Ref
	if !m.Alive(ref) {
		return out
	}
	for c := m.firstChild.Get(ref); c.IsValid(); c = m.nextSibling.Get(c) {
		out = append(out, c)
	}
	return out
}

// Subtree returns ref and all of its descendants, children before parents.
func (m *NodeManager) Subtree(ref ecs.Ref) []ecs.Ref {
	var out []ecs.Ref
	var walk func(ecs.Ref)
	walk = func(n ecs.Ref) {
		for c := m.firstChild.Get(n); c.IsValid(); c = m.nextSibling.Get(c) {
			walk(c)
		}
		out = append(out, n)
	}
	if m.Alive(ref) {
		walk(ref)
	}
	return out
}

// detachAll runs before a node is destroyed: the node leaves its parent and
// its children become roots.
func (m *NodeManager) detachAll(refs []ecs.Ref) {
	for _, ref := range refs {
		for c := m.firstChild.Get(ref); c.IsValid(); {
			next := m.nextSibling.Get(c)
			m.parent.Set(c, ecs.InvalidRef)
			m.nextSibling.Set(c, ecs.InvalidRef)
			c = next
		}
		m.firstChild.Set(ref, ecs.InvalidRef)
		m.DetachChild(ref)
	}
}

func (m *NodeManager) WorldPosition(ref ecs.Ref) mgl32.Vec3    { return m.worldPosition.Get(ref) }
func (m *NodeManager) WorldOrientation(ref ecs.Ref) mgl32.Quat { return m.worldOrientation.Get(ref) }
func (m *NodeManager) WorldSize(ref ecs.Ref) mgl32.Vec3        { return m.worldSize.Get(ref) }

// WorldMatrix composes translation, rotation and scale.
func (m *NodeManager) WorldMatrix(ref ecs.Ref) mgl32.Mat4 {
	p := m.worldPosition.Get(ref)
	s := m.worldSize.Get(ref)
	return mgl32.Translate3D(p[0], p[1], p[2]).
		Mul4(m.worldOrientation.Get(ref).Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// UpdateTransforms recomputes world transforms of the given nodes in order.
// Parents must already be up to date or appear earlier in the slice.
func (m *NodeManager) UpdateTransforms(nodes []ecs.Ref) {
	for _, ref := range nodes {
		if !m.Alive(ref) {
			continue
		}
		pos := m.Position.Get(ref)
		ori := m.Orientation.Get(ref)
		size := m.Size.Get(ref)

		parent := m.parent.Get(ref)
		if m.Alive(parent) {
			pOri := m.worldOrientation.Get(parent)
			pSize := m.worldSize.Get(parent)
			scaled := mgl32.Vec3{pos[0] * pSize[0], pos[1] * pSize[1], pos[2] * pSize[2]}
			pos = m.worldPosition.Get(parent).Add(pOri.Rotate(scaled))
			ori = pOri.Mul(ori)
			size = mgl32.Vec3{size[0] * pSize[0], size[1] * pSize[1], size[2] * pSize[2]}
		}
		m.worldPosition.Set(ref, pos)
		m.worldOrientation.Set(ref, ori.Normalize())
		m.worldSize.Set(ref, size)
	}
}

// RebuildTreeAndUpdateTransforms recomputes the parent-first order of every
// live node and updates all world transforms.
func (m *NodeManager) RebuildTreeAndUpdateTransforms() {
	m.order = m.order[:0]
	var walk func(ecs.Ref)
	walk = func(n ecs.Ref) {
		m.order = append(m.order, n)
		for c := m.firstChild.Get(n); c.IsValid(); c = m.nextSibling.Get(c) {
			walk(c)
		}
	}
	for ref := range m.All() {
		if !m.Alive(m.parent.Get(ref)) {
			walk(ref)
		}
	}
	m.UpdateTransforms(m.order)
}

// UpdateAll updates every node in the order computed by the last rebuild.
func (m *NodeManager) UpdateAll() {
	m.UpdateTransforms(m.order)
}
