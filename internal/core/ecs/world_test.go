package ecs_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWorld struct {
	*ecs.World
	samples *sampleResources
	owners  *ownerComponents
	plain   *plainComponents
}

func newTestWorld() testWorld {
	w := testWorld{World: ecs.NewWorld(8, nil)}
	w.samples = newSampleResources(8)
	w.owners = newOwnerComponents(8, w.samples.ResourceManager)
	w.plain = newPlainComponents(8)
	w.RegisterResource(w.samples.ResourceManager)
	w.RegisterComponent(w.plain.ComponentManager)
	w.RegisterComponent(w.owners.ComponentManager)
	return w
}

func TestRegistryLookup(t *testing.T) {
	w := newTestWorld()

	m, err := w.Registry().Component("Plain")
	require.NoError(t, err)
	assert.Same(t, w.plain.ComponentManager, m)

	_, err = w.Registry().Component("Sample")
	assert.ErrorIs(t, err, ecs.ErrUnknownKind)
	_, err = w.Registry().Resource("Nope")
	assert.ErrorIs(t, err, ecs.ErrUnknownKind)

	assert.Panics(t, func() { w.RegisterComponent(ecs.NewComponentManager("Plain", 1, nil)) })
}

func TestDestroyEntityRemovesComponents(t *testing.T) {
	w := newTestWorld()
	e, err := w.CreateEntity("thing")
	require.NoError(t, err)
	p, err := w.AddComponent(e, "Plain")
	require.NoError(t, err)
	o, err := w.AddComponent(e, "Owner")
	require.NoError(t, err)
	dep := w.owners.target.Get(o)

	var destroyedOrder []string
	w.plain.Observe(func(ev ecs.Lifecycle) {
		if ev.Op == ecs.OpDestroyed {
			destroyedOrder = append(destroyedOrder, ev.Kind)
		}
	})
	w.owners.Observe(func(ev ecs.Lifecycle) {
		if ev.Op == ecs.OpDestroyed {
			destroyedOrder = append(destroyedOrder, ev.Kind)
		}
	})

	require.NoError(t, w.DestroyEntity(e))
	assert.False(t, w.Alive(e))
	assert.False(t, w.plain.Alive(p))
	assert.False(t, w.owners.Alive(o))
	assert.False(t, w.samples.Alive(dep))
	assert.Equal(t, []string{"Owner", "Plain"}, destroyedOrder)

	assert.ErrorIs(t, w.DestroyEntity(e), ecs.ErrInvalidReference)
}

func TestAddComponentResets(t *testing.T) {
	w := newTestWorld()
	e, err := w.CreateEntity("e")
	require.NoError(t, err)

	p, err := w.AddComponent(e, "Plain")
	require.NoError(t, err)
	assert.Equal(t, float32(5), w.plain.weight.Get(p))

	_, err = w.AddComponent(e, "Missing")
	assert.ErrorIs(t, err, ecs.ErrUnknownKind)
}

func TestFlushDestroyQueue(t *testing.T) {
	w := newTestWorld()
	a, err := w.CreateEntity("a")
	require.NoError(t, err)
	b, err := w.CreateEntity("b")
	require.NoError(t, err)

	w.MarkForDestruction(a)
	w.MarkForDestruction(a)
	assert.True(t, w.Alive(a), "destruction is deferred")

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(a))
	assert.True(t, w.Alive(b))
	assert.Equal(t, 0, w.FlushDestroyQueue())
}

func TestEntityDocumentRoundTrip(t *testing.T) {
	w := newTestWorld()
	e, err := w.CreateEntity("hero")
	require.NoError(t, err)
	p, err := w.AddComponent(e, "Plain")
	require.NoError(t, err)
	w.plain.weight.Set(p, 12)
	o, err := w.AddComponent(e, "Owner")
	require.NoError(t, err)
	w.owners.speed.Set(o, 7)

	doc, err := w.CompileEntity(e, ecs.CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hero", doc.Name)
	assert.Equal(t, w.Entities().GUID(e), doc.GUID)
	assert.Len(t, doc.Components, 2)
	assert.NotContains(t, doc.Components["Owner"], "target", "cascade links are not exposed")

	other := newTestWorld()
	loaded, err := other.InitEntity(doc)
	require.NoError(t, err)
	assert.Equal(t, doc.GUID, other.Entities().GUID(loaded))

	lp := other.plain.ForEntity(loaded)
	lo := other.owners.ForEntity(loaded)
	require.True(t, lp.IsValid())
	require.True(t, lo.IsValid())
	assert.Equal(t, float32(12), other.plain.weight.Get(lp))
	assert.Equal(t, float32(7), other.owners.speed.Get(lo))
	assert.True(t, other.samples.Alive(other.owners.target.Get(lo)))
}

func TestInitEntitySkipsUnknownKinds(t *testing.T) {
	w := newTestWorld()
	e, err := w.InitEntity(ecs.EntityDocument{
		Name: "odd",
		Components: map[string]ecs.Fragment{
			"Plain":   {},
			"Unknown": {},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, w.Entities().GUID(e))
	assert.True(t, w.plain.ForEntity(e).IsValid())
}

func TestSaveLoadEntities(t *testing.T) {
	w := newTestWorld()
	for _, name := range []string{"a", "b"} {
		e, err := w.CreateEntity(name)
		require.NoError(t, err)
		_, err = w.AddComponent(e, "Plain")
		require.NoError(t, err)
	}
	spawned, err := w.CreateEntity("spawned")
	require.NoError(t, err)
	w.Entities().SetTransient(spawned, true)

	var buf bytes.Buffer
	n, err := w.SaveEntities(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other := newTestWorld()
	n, err = other.LoadEntities(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, other.Entities().Len())
	assert.Equal(t, 2, other.plain.Len())
}
