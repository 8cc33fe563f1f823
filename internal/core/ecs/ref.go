package ecs

import (
	"fmt"
	"iter"
)

// Ref encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on release to invalidate stale refs.
// The zero value is the invalid reference.
type Ref uint64

// InvalidRef never resolves to a live slot.
const InvalidRef Ref = 0

func NewRef(index uint32, generation uint32) Ref {
	return Ref(uint64(generation)<<32 | uint64(index))
}

func (r Ref) Index() uint32      { return uint32(r) }
func (r Ref) Generation() uint32 { return uint32(r >> 32) }
func (r Ref) IsValid() bool      { return r.Generation() != 0 }

func (r Ref) String() string {
	if !r.IsValid() {
		return "ref(invalid)"
	}
	return fmt.Sprintf("ref(%d:%d)", r.Index(), r.Generation())
}

// SlotAllocator hands out refs from a fixed number of slots. Fresh slots are
// used lowest index first; released slots go on a stack so the most recently
// released one is reused next, keeping the live range compact. Allocate
// deliberately does not return the lowest free index.
type SlotAllocator struct {
	generations []uint32
	alive       []bool
	freeList    []uint32
	live        int
}

func NewSlotAllocator(capacity int) *SlotAllocator {
	if capacity < 0 {
		capacity = 0
	}
	a := &SlotAllocator{
		generations: make([]uint32, capacity),
		alive:       make([]bool, capacity),
		freeList:    make([]uint32, capacity),
	}
	for i := range a.generations {
		a.generations[i] = 1
		a.freeList[i] = uint32(capacity - 1 - i)
	}
	return a
}

// Allocate marks a free slot as live. Fails with ErrCapacityExceeded when
// every slot is in use.
func (a *SlotAllocator) Allocate() (Ref, error) {
	n := len(a.freeList)
	if n == 0 {
		return InvalidRef, ErrCapacityExceeded
	}
	idx := a.freeList[n-1]
	a.freeList = a.freeList[:n-1]
	a.alive[idx] = true
	a.live++
	return NewRef(idx, a.generations[idx]), nil
}

func (a *SlotAllocator) Alive(ref Ref) bool {
	idx := ref.Index()
	if int(idx) >= len(a.generations) {
		return false
	}
	return a.alive[idx] && a.generations[idx] == ref.Generation()
}

// Release returns the slot to the free stack and bumps its generation.
func (a *SlotAllocator) Release(ref Ref) error {
	if !a.Alive(ref) {
		return ErrInvalidReference
	}
	idx := ref.Index()
	a.alive[idx] = false
	a.generations[idx]++
	if a.generations[idx] == 0 {
		a.generations[idx] = 1
	}
	a.freeList = append(a.freeList, idx)
	a.live--
	return nil
}

func (a *SlotAllocator) Len() int      { return a.live }
func (a *SlotAllocator) Capacity() int { return len(a.generations) }

// All yields every live ref in index order.
func (a *SlotAllocator) All() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for i, alive := range a.alive {
			if !alive {
				continue
			}
			if !yield(NewRef(uint32(i), a.generations[i])) {
				return
			}
		}
	}
}

// Live returns a snapshot of every live ref in index order.
func (a *SlotAllocator) Live() []Ref {
	out := make([]Ref, 0, a.live)
	for ref := range a.All() {
		out = append(out, ref)
	}
	return out
}
