package scene_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/intrinsic/engine/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScene(t *testing.T) (*ecs.World, *scene.Scene) {
	t.Helper()
	w := ecs.NewWorld(16, nil)
	nodes := scene.NewNodeManager(16, nil)
	w.RegisterComponent(nodes.ComponentManager)
	s, err := scene.New(w, nodes)
	require.NoError(t, err)
	return w, s
}

func spawn(t *testing.T, w *ecs.World, s *scene.Scene, parent ecs.Ref, name string) ecs.Ref {
	t.Helper()
	e, err := w.CreateEntity(name)
	require.NoError(t, err)
	n, err := s.Nodes().CreateNode(e)
	require.NoError(t, err)
	require.NoError(t, s.Nodes().AttachChild(parent, n))
	return n
}

func TestHierarchy(t *testing.T) {
	w, s := newScene(t)
	nodes := s.Nodes()
	a := spawn(t, w, s, s.Root(), "a")
	b := spawn(t, w, s, s.Root(), "b")
	c := spawn(t, w, s, a, "c")

	assert.Equal(t, []ecs.Ref{a, b}, nodes.Children(s.Root()))
	assert.Equal(t, a, nodes.Parent(c))

	require.NoError(t, nodes.AttachChild(b, c))
	assert.Empty(t, nodes.Children(a))
	assert.Equal(t, []ecs.Ref{c}, nodes.Children(b))

	assert.Error(t, nodes.AttachChild(c, s.Root()), "cycles are rejected")
}

func TestWorldTransforms(t *testing.T) {
	w, s := newScene(t)
	nodes := s.Nodes()
	parent := spawn(t, w, s, s.Root(), "parent")
	child := spawn(t, w, s, parent, "child")

	nodes.Position.Set(parent, mgl32.Vec3{10, 0, 0})
	nodes.Orientation.Set(parent, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	nodes.Size.Set(parent, mgl32.Vec3{2, 2, 2})
	nodes.Position.Set(child, mgl32.Vec3{0, 0, 1})

	nodes.RebuildTreeAndUpdateTransforms()

	got := nodes.WorldPosition(child)
	assert.InDelta(t, 12, got.X(), 1e-4)
	assert.InDelta(t, 0, got.Y(), 1e-4)
	assert.InDelta(t, 0, got.Z(), 1e-4)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, nodes.WorldSize(child))

	m := nodes.WorldMatrix(parent)
	assert.InDelta(t, 10, m.Col(3).X(), 1e-5)
}

func TestDestroyNodeFull(t *testing.T) {
	w, s := newScene(t)
	nodes := s.Nodes()
	a := spawn(t, w, s, s.Root(), "a")
	b := spawn(t, w, s, a, "b")
	c := spawn(t, w, s, b, "c")
	keep := spawn(t, w, s, s.Root(), "keep")
	ea := nodes.Entity(a)

	require.NoError(t, s.DestroyNodeFull(a))

	for _, n := range []ecs.Ref{a, b, c} {
		assert.False(t, nodes.Alive(n))
	}
	assert.False(t, w.Alive(ea))
	assert.True(t, nodes.Alive(keep))
	assert.Equal(t, []ecs.Ref{keep}, nodes.Children(s.Root()))

	assert.ErrorIs(t, s.DestroyNodeFull(a), ecs.ErrInvalidReference)
}

func TestNodeDescriptor(t *testing.T) {
	w, s := newScene(t)
	nodes := s.Nodes()
	n := spawn(t, w, s, s.Root(), "n")
	nodes.Position.Set(n, mgl32.Vec3{1, 2, 3})

	frag, err := nodes.CompileDescriptor(n, ecs.CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, ecs.TypeVec3, frag["position"].Type)
	assert.NotContains(t, frag, "orientation")
	assert.NotContains(t, frag, "parent")
}

func TestSceneClose(t *testing.T) {
	w, s := newScene(t)
	spawn(t, w, s, s.Root(), "a")

	require.NoError(t, s.Close())
	assert.Equal(t, ecs.InvalidRef, s.Root())
	assert.Equal(t, 0, s.Nodes().Len())
	assert.Equal(t, 0, w.Entities().Len())
}
