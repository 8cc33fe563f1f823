package ecs_test

import (
	"testing"

	"github.com/intrinsic/engine/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefPacking(t *testing.T) {
	ref := ecs.NewRef(7, 3)

	assert.Equal(t, uint32(7), ref.Index())
	assert.Equal(t, uint32(3), ref.Generation())
	assert.True(t, ref.IsValid())
	assert.False(t, ecs.InvalidRef.IsValid())
	assert.Equal(t, "ref(7:3)", ref.String())
	assert.Equal(t, "ref(invalid)", ecs.InvalidRef.String())
}

func TestAllocatorRoundTrip(t *testing.T) {
	a := ecs.NewSlotAllocator(4)

	ref, err := a.Allocate()
	require.NoError(t, err)
	assert.True(t, a.Alive(ref))
	assert.Equal(t, 1, a.Len())

	require.NoError(t, a.Release(ref))
	assert.False(t, a.Alive(ref))
	assert.Equal(t, 0, a.Len())

	again, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, ref.Index(), again.Index())
	assert.NotEqual(t, ref, again)
	assert.False(t, a.Alive(ref), "stale ref must stay dead after slot reuse")
	assert.True(t, a.Alive(again))
}

func TestAllocatorOrder(t *testing.T) {
	a := ecs.NewSlotAllocator(4)

	var refs []ecs.Ref
	for range 3 {
		ref, err := a.Allocate()
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	for i, ref := range refs {
		assert.Equal(t, uint32(i), ref.Index(), "fresh slots come out lowest first")
	}

	require.NoError(t, a.Release(refs[0]))
	require.NoError(t, a.Release(refs[2]))

	next, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), next.Index(), "most recently released slot is reused first")

	next, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), next.Index())
}

func TestAllocatorCapacity(t *testing.T) {
	a := ecs.NewSlotAllocator(2)

	_, err := a.Allocate()
	require.NoError(t, err)
	last, err := a.Allocate()
	require.NoError(t, err)

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ecs.ErrCapacityExceeded)
	assert.Equal(t, 2, a.Len())

	require.NoError(t, a.Release(last))
	_, err = a.Allocate()
	assert.NoError(t, err)
}

func TestAllocatorReleaseInvalid(t *testing.T) {
	a := ecs.NewSlotAllocator(2)
	ref, err := a.Allocate()
	require.NoError(t, err)
	require.NoError(t, a.Release(ref))

	assert.ErrorIs(t, a.Release(ref), ecs.ErrInvalidReference)
	assert.ErrorIs(t, a.Release(ecs.InvalidRef), ecs.ErrInvalidReference)
	assert.ErrorIs(t, a.Release(ecs.NewRef(99, 1)), ecs.ErrInvalidReference)
	assert.Equal(t, 0, a.Len())
}

func TestAllocatorLive(t *testing.T) {
	a := ecs.NewSlotAllocator(5)
	var refs []ecs.Ref
	for range 5 {
		ref, err := a.Allocate()
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	require.NoError(t, a.Release(refs[1]))
	require.NoError(t, a.Release(refs[3]))

	assert.Equal(t, []ecs.Ref{refs[0], refs[2], refs[4]}, a.Live())
}
