package ecs_test

import (
	"testing"

	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentCascade(t *testing.T) {
	samples := newSampleResources(4)
	owners := newOwnerComponents(4, samples.ResourceManager)

	entity := ecs.NewRef(0, 1)
	ref, err := owners.Create(entity)
	require.NoError(t, err)

	dep := owners.target.Get(ref)
	require.True(t, samples.Alive(dep))
	assert.True(t, samples.Transient(dep))
	assert.Equal(t, float32(1), samples.intensity.Get(dep), "owned resources start at defaults")
	assert.Equal(t, 1, samples.Len())

	owners.ResetToDefault(ref)
	assert.Equal(t, dep, owners.target.Get(ref), "reset keeps the cascade link")

	require.NoError(t, owners.Destroy(ref))
	assert.False(t, samples.Alive(dep))
	assert.Equal(t, 0, samples.Len())
	assert.Equal(t, ecs.InvalidRef, owners.ForEntity(entity))
}

func TestOwnedResourceOutlivesDirectDestroy(t *testing.T) {
	samples := newSampleResources(2)
	owners := newOwnerComponents(4, samples.ResourceManager)

	ref, err := owners.Create(ecs.NewRef(0, 1))
	require.NoError(t, err)
	dep := owners.target.Get(ref)
	assert.Equal(t, ref, samples.Owner(dep))

	assert.ErrorIs(t, samples.Destroy(dep), ecs.ErrInvalidReference)
	assert.True(t, samples.Alive(dep))

	free, err := samples.Create("free")
	require.NoError(t, err)
	assert.Equal(t, ecs.InvalidRef, samples.Owner(free))
	require.NoError(t, samples.Destroy(free))

	require.NoError(t, owners.Destroy(ref))
	assert.False(t, samples.Alive(dep))
	assert.Equal(t, ecs.InvalidRef, samples.Owner(dep))

	// the slot comes back without an owner
	again, err := samples.Create("again")
	require.NoError(t, err)
	assert.Equal(t, dep.Index(), again.Index())
	assert.Equal(t, ecs.InvalidRef, samples.Owner(again))
	require.NoError(t, samples.Destroy(again))
}

func TestCascadeNamesAreUnique(t *testing.T) {
	samples := newSampleResources(4)
	owners := newOwnerComponents(4, samples.ResourceManager)

	a, err := owners.Create(ecs.NewRef(0, 1))
	require.NoError(t, err)
	b, err := owners.Create(ecs.NewRef(1, 1))
	require.NoError(t, err)

	na := samples.Name(owners.target.Get(a))
	nb := samples.Name(owners.target.Get(b))
	assert.NotEqual(t, na, nb)
	assert.Contains(t, na, "OwnedSample")
}

func TestCascadeMissingDependency(t *testing.T) {
	samples := newSampleResources(1)
	owners := newOwnerComponents(4, samples.ResourceManager)

	_, err := samples.Create("occupies the only slot")
	require.NoError(t, err)

	entity := ecs.NewRef(3, 1)
	ref, err := owners.Create(entity)
	assert.ErrorIs(t, err, ecs.ErrMissingDependency)
	assert.ErrorIs(t, err, ecs.ErrCapacityExceeded)
	assert.Equal(t, ecs.InvalidRef, ref)
	assert.Equal(t, 0, owners.Len(), "owner slot is released")
	assert.Equal(t, ecs.InvalidRef, owners.ForEntity(entity))

	// the same entity can try again once there is room
	require.NoError(t, samples.Destroy(samples.ByName("occupies the only slot")))
	_, err = owners.Create(entity)
	assert.NoError(t, err)
}

func TestCascadeUnwindsInReverse(t *testing.T) {
	first := newSampleResources(2)
	second := ecs.NewResourceManager("Second", 1, nil)
	owners := ecs.NewComponentManager("Twice", 2, nil)
	a := ecs.AddColumn(owners.Table(), "a", ecs.InvalidRef)
	b := ecs.AddColumn(owners.Table(), "b", ecs.InvalidRef)
	owners.Owns(a, first.ResourceManager, "A")
	owners.Owns(b, second, "B")

	_, err := owners.Create(ecs.NewRef(0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	_, err = owners.Create(ecs.NewRef(1, 1))
	assert.ErrorIs(t, err, ecs.ErrMissingDependency)
	assert.Equal(t, 1, first.Len(), "first dependency of the failed create was destroyed")
	assert.Equal(t, 1, owners.Len())
}

func TestComponentPerEntity(t *testing.T) {
	plain := newPlainComponents(4)
	entity := ecs.NewRef(2, 1)

	ref, err := plain.Create(entity)
	require.NoError(t, err)
	assert.Equal(t, ref, plain.ForEntity(entity))
	assert.Equal(t, entity, plain.Entity(ref))

	_, err = plain.Create(entity)
	assert.ErrorIs(t, err, ecs.ErrDuplicateComponent)

	require.NoError(t, plain.Destroy(ref))
	assert.Equal(t, ecs.InvalidRef, plain.Entity(ref))
	assert.ErrorIs(t, plain.Destroy(ref), ecs.ErrInvalidReference)
}

func TestComponentRejectsDeadEntity(t *testing.T) {
	entities := ecs.NewEntityManager(2, nil)
	plain := newPlainComponents(2)
	plain.SetEntitySource(entities)

	e, err := entities.Create("e")
	require.NoError(t, err)
	require.NoError(t, entities.Destroy(e))

	_, err = plain.Create(e)
	assert.ErrorIs(t, err, ecs.ErrInvalidReference)
}

func TestResourceHooks(t *testing.T) {
	plain := newPlainComponents(4)
	var created, destroyed []ecs.Ref
	plain.SetResourceHooks(
		func(refs []ecs.Ref) { created = append(created, refs...) },
		func(refs []ecs.Ref) { destroyed = append(destroyed, refs...) },
	)

	a, err := plain.Create(ecs.NewRef(0, 1))
	require.NoError(t, err)
	b, err := plain.Create(ecs.NewRef(1, 1))
	require.NoError(t, err)
	require.NoError(t, plain.Destroy(b))

	plain.CreateResources([]ecs.Ref{a, b})
	assert.Equal(t, []ecs.Ref{a}, created, "dead refs are filtered")

	plain.DestroyResources([]ecs.Ref{a})
	assert.Equal(t, []ecs.Ref{a}, destroyed)
}

func TestLifecycleObserver(t *testing.T) {
	plain := newPlainComponents(2)
	var seen []ecs.Lifecycle
	plain.Observe(func(ev ecs.Lifecycle) { seen = append(seen, ev) })

	ref, err := plain.Create(ecs.NewRef(0, 1))
	require.NoError(t, err)
	require.NoError(t, plain.Destroy(ref))

	require.Len(t, seen, 2)
	assert.Equal(t, ecs.Lifecycle{Kind: "Plain", Ref: ref, Op: ecs.OpCreated}, seen[0])
	assert.Equal(t, ecs.OpDestroyed, seen[1].Op)
}

func TestEach2(t *testing.T) {
	plain := newPlainComponents(4)
	samples := newSampleResources(4)
	owners := newOwnerComponents(4, samples.ResourceManager)

	for i := range uint32(3) {
		_, err := plain.Create(ecs.NewRef(i, 1))
		require.NoError(t, err)
	}
	_, err := owners.Create(ecs.NewRef(1, 1))
	require.NoError(t, err)

	var entities []ecs.Ref
	ecs.Each2(plain.ComponentManager, owners.ComponentManager, func(e, _, _ ecs.Ref) {
		entities = append(entities, e)
	})
	assert.Equal(t, []ecs.Ref{ecs.NewRef(1, 1)}, entities)
}
